package ipixel

import (
	"encoding/hex"
	"fmt"
)

// glyphMarker 旧版文本字形帧与可变宽位图帧的判别字节
const glyphMarker = 0x80

// DefaultColor 未指定颜色时使用白色
const DefaultColor = "ffffff"

// FontSpec 字形光栅化参数
type FontSpec struct {
	Font     string // 字体标识，"default" 为内置点阵字体
	OffsetX  int
	OffsetY  int
	Size     int // 字号，0 表示与目标高度相同
	MinWidth int
	MaxWidth int
	Step     int // 宽度取值步长
}

// Rasterizer 外部字形光栅化器
// 返回的原始位图按行存储，每行 ceil(width/8) 字节，MSB 在左，置位表示未点亮。
type Rasterizer interface {
	Rasterize(ch rune, height int, font FontSpec) (bitmap []byte, width int, err error)
}

// GlyphRenderer 已绑定字体参数的字形渲染器，返回已完成位变换的位图
type GlyphRenderer interface {
	Render(ch rune, height int) (bitmap []byte, width int, err error)
}

// TransformGlyph 依次执行：按位取反 -> 字节序反转 -> 字节内位序反转
// 三步顺序由设备固件决定，不可调换。
func TransformGlyph(raw []byte) []byte {
	return ReverseBitOrder(SwitchEndian(InvertBits(raw)))
}

// UntransformGlyph TransformGlyph 的逆变换
func UntransformGlyph(data []byte) []byte {
	return InvertBits(SwitchEndian(ReverseBitOrder(data)))
}

// boundRenderer 将 Rasterizer 与 FontSpec 绑定为 GlyphRenderer
type boundRenderer struct {
	r    Rasterizer
	font FontSpec
}

// BindFont 返回一个使用固定字体参数的 GlyphRenderer
func BindFont(r Rasterizer, font FontSpec) GlyphRenderer {
	return boundRenderer{r: r, font: font}
}

func (b boundRenderer) Render(ch rune, height int) ([]byte, int, error) {
	font := b.font
	if font.Size == 0 {
		font.Size = height
	}
	raw, width, err := b.r.Rasterize(ch, height, font)
	if err != nil {
		return nil, 0, fmt.Errorf("rasterize %q: %w", ch, err)
	}
	return TransformGlyph(raw), width, nil
}

// GlyphFrame 旧版文本指令中的单个字符
// 布局: 0x80 + color(3B) + width(1B) + height(1B) + bitmap
type GlyphFrame struct {
	Color  string
	Width  int
	Height int
	Bitmap []byte
}

// legacyGlyphSize 旧版字形位图固定按 16 像素宽打包
func legacyGlyphSize(height int) int {
	return 2 * height
}

// Encode 序列化为十六进制文本
func (g GlyphFrame) Encode() (string, error) {
	if want := legacyGlyphSize(g.Height); len(g.Bitmap) != want {
		return "", fmt.Errorf("%w: glyph %dx%d needs %d bytes, got %d",
			ErrBitmapSizeMismatch, g.Height, g.Width, want, len(g.Bitmap))
	}
	if err := ValidateRange(g.Width, 1, 0xFF, "glyph width"); err != nil {
		return "", err
	}
	return intToHex(glyphMarker) + g.Color + intToHex(g.Width) + intToHex(g.Height) + hex.EncodeToString(g.Bitmap), nil
}

// EncodeGlyph 渲染单个字符并封装为旧版字形帧
func EncodeGlyph(r GlyphRenderer, ch rune, height int, color string) (GlyphFrame, error) {
	bitmap, width, err := r.Render(ch, height)
	if err != nil {
		return GlyphFrame{}, err
	}
	return GlyphFrame{Color: color, Width: width, Height: height, Bitmap: bitmap}, nil
}

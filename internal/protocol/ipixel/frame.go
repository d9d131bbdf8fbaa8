package ipixel

import (
	"encoding/hex"
	"fmt"
)

// FrameKind 新版文本包中的帧类型
type FrameKind uint8

const (
	FrameFixedBitmap FrameKind = iota + 1
	FrameVariableWidthBitmap
	FrameImage
)

// String 返回帧类型名称
func (k FrameKind) String() string {
	switch k {
	case FrameFixedBitmap:
		return "fixed_bitmap"
	case FrameVariableWidthBitmap:
		return "variable_width_bitmap"
	case FrameImage:
		return "image"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// PacketFrame 新版文本包中的一帧，仅限本包定义的三种实现
type PacketFrame interface {
	Kind() FrameKind
	isPacketFrame()
}

// 固定分辨率位图帧判别表（高×宽 -> 判别字节、位图字节数），抓包所得
type resolution struct {
	height, width int
}

type fixedBitmapFormat struct {
	code byte
	size int
}

var fixedBitmapTable = map[resolution]fixedBitmapFormat{
	{16, 8}:  {0x00, 16},
	{16, 16}: {0x01, 32},
	{32, 16}: {0x02, 64},
	{32, 32}: {0x03, 128},
	{48, 24}: {0x04, 144},
	{48, 48}: {0x05, 288},
	{64, 32}: {0x06, 256},
	{64, 64}: {0x07, 512},
}

// 图像帧判别表（正方形边长 -> 判别字节），抓包所得
var imageFrameTable = map[int]byte{
	16: 0x08,
	32: 0x09,
	20: 0x0C,
	24: 0x0B,
	64: 0x0A,
}

// 可变宽位图帧允许的高度
var variableWidthHeights = []int{12, 16, 20, 24, 32}

const maxImageFrameLen = 1<<24 - 1

// FixedBitmapFrame 布局: code(1B) + color(3B) + bitmap
type FixedBitmapFrame struct {
	Resolution byte
	Color      [3]byte
	Bitmap     []byte
}

// VariableWidthBitmapFrame 布局: 0x80 + color(3B) + width(1B) + height(1B) + bitmap
type VariableWidthBitmapFrame struct {
	Color  [3]byte
	Width  int
	Height int
	Bitmap []byte
}

// ImageFrame 布局: code(1B) + length(3B LE) + data
type ImageFrame struct {
	Resolution byte
	Data       []byte
}

func (FixedBitmapFrame) Kind() FrameKind         { return FrameFixedBitmap }
func (VariableWidthBitmapFrame) Kind() FrameKind { return FrameVariableWidthBitmap }
func (ImageFrame) Kind() FrameKind               { return FrameImage }

func (FixedBitmapFrame) isPacketFrame()         {}
func (VariableWidthBitmapFrame) isPacketFrame() {}
func (ImageFrame) isPacketFrame()               {}

// NewFixedBitmapFrame 按 (高, 宽) 查表构造固定分辨率位图帧
func NewFixedBitmapFrame(height, width int, color string, bitmap []byte) (FixedBitmapFrame, error) {
	format, ok := fixedBitmapTable[resolution{height, width}]
	if !ok {
		return FixedBitmapFrame{}, fmt.Errorf("%w: %02dx%02d", ErrUnsupportedResolution, height, width)
	}
	if len(bitmap) != format.size {
		return FixedBitmapFrame{}, fmt.Errorf("%w: %dx%d needs %d bytes, got %d",
			ErrBitmapSizeMismatch, height, width, format.size, len(bitmap))
	}
	rgb, err := parseColor(color)
	if err != nil {
		return FixedBitmapFrame{}, err
	}
	return FixedBitmapFrame{Resolution: format.code, Color: rgb, Bitmap: bitmap}, nil
}

// NewVariableWidthBitmapFrame 构造可变宽位图帧，位图长度须为 height × ceil(width/8)
func NewVariableWidthBitmapFrame(height, width int, color string, bitmap []byte) (VariableWidthBitmapFrame, error) {
	if err := ValidateMembership(height, variableWidthHeights, "bmp height"); err != nil {
		return VariableWidthBitmapFrame{}, err
	}
	if err := ValidateRange(width, 1, 0xFF, "bmp width"); err != nil {
		return VariableWidthBitmapFrame{}, err
	}
	if want := height * ((width + 7) / 8); len(bitmap) != want {
		return VariableWidthBitmapFrame{}, fmt.Errorf("%w: %dx%d needs %d bytes, got %d",
			ErrBitmapSizeMismatch, height, width, want, len(bitmap))
	}
	rgb, err := parseColor(color)
	if err != nil {
		return VariableWidthBitmapFrame{}, err
	}
	return VariableWidthBitmapFrame{Color: rgb, Width: width, Height: height, Bitmap: bitmap}, nil
}

// NewImageFrame 构造内嵌图像帧，数据原样携带（通常为 JPEG）
func NewImageFrame(size int, data []byte) (ImageFrame, error) {
	code, ok := imageFrameTable[size]
	if !ok {
		return ImageFrame{}, fmt.Errorf("%w: image %dx%d", ErrUnsupportedResolution, size, size)
	}
	if err := ValidateRange(len(data), 0, maxImageFrameLen, "image data length"); err != nil {
		return ImageFrame{}, err
	}
	return ImageFrame{Resolution: code, Data: data}, nil
}

// ImageFrameSizes 返回图像帧支持的边长
func ImageFrameSizes() []int {
	sizes := make([]int, 0, len(imageFrameTable))
	for s := range imageFrameTable {
		sizes = append(sizes, s)
	}
	return sizes
}

// encodeFrame 序列化单帧
func encodeFrame(f PacketFrame) []byte {
	switch f := f.(type) {
	case FixedBitmapFrame:
		buf := make([]byte, 0, 4+len(f.Bitmap))
		buf = append(buf, f.Resolution)
		buf = append(buf, f.Color[:]...)
		return append(buf, f.Bitmap...)
	case VariableWidthBitmapFrame:
		buf := make([]byte, 0, 6+len(f.Bitmap))
		buf = append(buf, glyphMarker)
		buf = append(buf, f.Color[:]...)
		buf = append(buf, byte(f.Width), byte(f.Height))
		return append(buf, f.Bitmap...)
	case ImageFrame:
		n := len(f.Data)
		buf := make([]byte, 0, 4+n)
		buf = append(buf, f.Resolution, byte(n), byte(n>>8), byte(n>>16))
		return append(buf, f.Data...)
	default:
		panic(fmt.Sprintf("ipixel: unknown frame type %T", f))
	}
}

// parseColor 规范化颜色并转换为 3 字节 RGB
func parseColor(color string) ([3]byte, error) {
	var rgb [3]byte
	if color == "" {
		color = DefaultColor
	}
	c, err := NormalizeColor(color)
	if err != nil {
		return rgb, err
	}
	b, _ := hex.DecodeString(c)
	copy(rgb[:], b)
	return rgb, nil
}

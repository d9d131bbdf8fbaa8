package ipixel

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// 旧版文本指令长度字段的经验常量（抓包逆向所得，含义未完全明确，原样保留）
const (
	legacyTotalMagic   = 0x1D // 第一个长度字段的偏移
	legacyPayloadMagic = 0x0E // 第二个长度字段的偏移
	legacyCharBase     = 0x06 // 每字符固定开销
	legacyCharPerRow   = 0x02 // 每像素行的字节数
)

const (
	legacyHeaderMid  = "000100"
	legacyHeaderTail = "0000"
	// 属性块：000101 + animation + speed + rainbow + ffffff00000000
	legacyPropsHead = "000101"
	legacyPropsTail = "ffffff00000000"
)

// legacyFontWidth 旧版字形宽度范围
var legacyFontWidth = WidthRange{Min: 9, Max: 16, Step: 1}

// TextOptions 旧版文本指令参数
type TextOptions struct {
	Text         string
	RainbowMode  int
	Animation    int
	SaveSlot     int
	Speed        int
	Color        string
	Font         string
	FontOffsetX  int
	FontOffsetY  int
	FontSize     int
	MatrixHeight int
}

// DefaultTextOptions 返回旧版文本指令的默认参数
func DefaultTextOptions(text string) TextOptions {
	return TextOptions{
		Text:         text,
		SaveSlot:     1,
		Speed:        80,
		Color:        DefaultColor,
		Font:         "default",
		MatrixHeight: 16,
	}
}

// legacyCharCost 每个字符在指令流中占用的字节数：6 + 2 × 矩阵高度
func legacyCharCost(matrixHeight int) int {
	return legacyCharBase + matrixHeight*legacyCharPerRow
}

// SendText 构造旧版“显示文本”指令
// 布局: len1(2B) + 000100 + len2(2B) + 0000 + crc(4B) + slot(2B BE) + count(1B) + props + glyphs
// 校验和为对 count+props+glyphs 十六进制文本的 CRC32。
func (e *Encoder) SendText(opts TextOptions) (Command, error) {
	// 3、4 号动画会导致设备反复重启
	if opts.Animation == 3 || opts.Animation == 4 {
		return nil, errUnsupportedAnimation(opts.Animation)
	}
	textLen := utf8.RuneCountInString(opts.Text)
	if err := validateRanges(
		rangeCheck{opts.RainbowMode, 0, 9, "rainbow mode"},
		rangeCheck{opts.Animation, 0, 7, "animation"},
		rangeCheck{opts.SaveSlot, 1, 10, "save slot"},
		rangeCheck{opts.Speed, 0, 100, "speed"},
		rangeCheck{textLen, 1, 100, "text length"},
		rangeCheck{opts.MatrixHeight, 1, 128, "matrix height"},
	); err != nil {
		return nil, err
	}
	color := opts.Color
	if color == "" {
		color = DefaultColor
	}
	color, err := NormalizeColor(color)
	if err != nil {
		return nil, err
	}

	font := FontSpec{
		Font:     opts.Font,
		OffsetX:  opts.FontOffsetX,
		OffsetY:  opts.FontOffsetY,
		Size:     opts.FontSize,
		MinWidth: legacyFontWidth.Min,
		MaxWidth: legacyFontWidth.Max,
		Step:     legacyFontWidth.Step,
	}
	if font.Size == 0 {
		font.Size = opts.MatrixHeight
	}
	glyphs, err := e.encodeText(opts.Text, opts.MatrixHeight, color, BindFont(e.raster, font))
	if err != nil {
		return nil, err
	}

	cost := legacyCharCost(opts.MatrixHeight)
	header := leHex16(legacyTotalMagic+textLen*cost) + legacyHeaderMid +
		leHex16(legacyPayloadMagic+textLen*cost) + legacyHeaderTail

	count := intToHex(textLen)
	props := legacyPropsHead + intToHex(opts.Animation) + intToHex(opts.Speed) +
		intToHex(opts.RainbowMode) + legacyPropsTail
	checksum, err := ChecksumHex(count + props + glyphs)
	if err != nil {
		return nil, err
	}
	slot := "00" + intToHex(opts.SaveSlot)

	cmd, err := hexCommand(header, checksum, slot, count, props, glyphs)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("legacy text command", zap.Int("chars", textLen), zap.String("hex", cmd.Hex()))
	return cmd, nil
}

// encodeText 逐字符渲染并拼接字形帧十六进制文本
func (e *Encoder) encodeText(text string, height int, color string, r GlyphRenderer) (string, error) {
	var sb strings.Builder
	for _, ch := range text {
		g, err := EncodeGlyph(r, ch, height, color)
		if err != nil {
			return "", err
		}
		h, err := g.Encode()
		if err != nil {
			return "", err
		}
		sb.WriteString(h)
		e.logger.Debug("glyph encoded", zap.String("char", string(ch)), zap.Int("width", g.Width))
	}
	return sb.String(), nil
}

package ipixel

import (
	"encoding/binary"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// PacketOptions 新版文本包的显示属性
type PacketOptions struct {
	LEDType     int
	Animation   int
	Speed       int
	ColorMode   int
	Color       string
	BgColorMode int
	BgColor     string
	HAlign      int
	VAlign      int
}

// DefaultPacketOptions 返回默认显示属性
func DefaultPacketOptions() PacketOptions {
	return PacketOptions{
		LEDType: LEDTypeFixed,
		Speed:   80,
		Color:   DefaultColor,
		BgColor: "000000",
	}
}

// TextPacket 新版文本包构建器：属性头 + 有序帧序列
// 非并发安全，由单一调用方构建并序列化。
type TextPacket struct {
	opts    PacketOptions
	color   [3]byte
	bgColor [3]byte
	frames  []PacketFrame
	skipped int
	logger  *zap.Logger
}

// NewTextPacket 校验属性并创建空的文本包
func NewTextPacket(opts PacketOptions, logger *zap.Logger) (*TextPacket, error) {
	if err := ValidateMembership(opts.LEDType, []int{LEDTypeFixed, LEDTypeVariable}, "led type"); err != nil {
		return nil, err
	}
	if err := validateRanges(
		rangeCheck{opts.Animation, 0, 0xFF, "animation"},
		rangeCheck{opts.Speed, 0, 0xFF, "speed"},
		rangeCheck{opts.ColorMode, 0, 0xFF, "color mode"},
		rangeCheck{opts.BgColorMode, 0, 0xFF, "background color mode"},
		rangeCheck{opts.HAlign, 0, 0xFF, "halign"},
		rangeCheck{opts.VAlign, 0, 0xFF, "valign"},
	); err != nil {
		return nil, err
	}
	color, err := parseColor(opts.Color)
	if err != nil {
		return nil, err
	}
	bg := opts.BgColor
	if bg == "" {
		bg = "000000"
	}
	bgColor, err := parseColor(bg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextPacket{opts: opts, color: color, bgColor: bgColor, logger: logger}, nil
}

// Frames 返回当前帧序列的副本
func (p *TextPacket) Frames() []PacketFrame {
	out := make([]PacketFrame, len(p.frames))
	copy(out, p.frames)
	return out
}

// SkippedImages 因读取失败被跳过的图像帧数量
func (p *TextPacket) SkippedImages() int {
	return p.skipped
}

// AddText 逐字符渲染并追加位图帧；任一字符失败时不追加任何帧
func (p *TextPacket) AddText(r GlyphRenderer, text string, size int, color string) error {
	staged := make([]PacketFrame, 0, len(text))
	for _, ch := range text {
		bmp, width, err := r.Render(ch, size)
		if err != nil {
			return err
		}
		f, err := p.bitmapFrame(size, width, color, bmp)
		if err != nil {
			return fmt.Errorf("char %q: %w", ch, err)
		}
		staged = append(staged, f)
	}
	return p.appendFrames(staged...)
}

// AddImage 读取图像文件并追加图像帧；文件读取失败时跳过该帧，不返回错误
func (p *TextPacket) AddImage(size int, path string) error {
	if _, ok := imageFrameTable[size]; !ok {
		return fmt.Errorf("%w: image %dx%d", ErrUnsupportedResolution, size, size)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		p.skipped++
		p.logger.Warn("image frame skipped", zap.String("path", path), zap.Error(err))
		return nil
	}
	return p.AddImageData(size, data)
}

// AddImageData 追加已在内存中的图像数据
func (p *TextPacket) AddImageData(size int, data []byte) error {
	f, err := NewImageFrame(size, data)
	if err != nil {
		return err
	}
	return p.appendFrames(f)
}

// AddBitmap 按 LED 类型选择帧编码：类型 0 宽度向上取整到 8 的倍数并查表，类型 1 使用可变宽帧
func (p *TextPacket) AddBitmap(height, width int, color string, bitmap []byte) error {
	f, err := p.bitmapFrame(height, width, color, bitmap)
	if err != nil {
		return err
	}
	return p.appendFrames(f)
}

func (p *TextPacket) bitmapFrame(height, width int, color string, bitmap []byte) (PacketFrame, error) {
	if p.opts.LEDType == LEDTypeFixed {
		width = ((width + 7) / 8) * 8
		return NewFixedBitmapFrame(height, width, color, bitmap)
	}
	return NewVariableWidthBitmapFrame(height, width, color, bitmap)
}

func (p *TextPacket) appendFrames(frames ...PacketFrame) error {
	if err := ValidateRange(len(p.frames)+len(frames), 0, 0xFFFF, "frame count"); err != nil {
		return err
	}
	p.frames = append(p.frames, frames...)
	return nil
}

// propertiesSize 属性头长度
const propertiesSize = 2 + 5 + 3 + 1 + 3

// Serialize 序列化为包体；不修改帧序列，可重复调用
// 布局: count(2B LE) + halign + valign + animation + speed + colorMode + color(3B) + bgColorMode + bgColor(3B) + frames
func (p *TextPacket) Serialize() []byte {
	encoded := make([][]byte, len(p.frames))
	n := propertiesSize
	for i, f := range p.frames {
		encoded[i] = encodeFrame(f)
		n += len(encoded[i])
	}

	buf := make([]byte, 0, n)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(p.frames)))
	buf = append(buf,
		byte(p.opts.HAlign), byte(p.opts.VAlign),
		byte(p.opts.Animation), byte(p.opts.Speed), byte(p.opts.ColorMode))
	buf = append(buf, p.color[:]...)
	buf = append(buf, byte(p.opts.BgColorMode))
	buf = append(buf, p.bgColor[:]...)
	for _, e := range encoded {
		buf = append(buf, e...)
	}
	return buf
}

package ipixel

import (
	"encoding/binary"
	"unicode/utf8"

	"go.uber.org/zap"
)

// SaveSlotScratch 临时槽位，不写入 EEPROM
const SaveSlotScratch = 0x65

// 新版文本指令信封
// 布局: size(2B LE) + 00 01 00 + tsize(4B LE) + crc32(4B LE) + 00 slot + body
const (
	packetSizeLen   = 2
	packetFamilyLen = 3
	packetTSizeLen  = 4
	packetCRCLen    = 4
	packetSlotLen   = 2
	packetHeaderLen = packetSizeLen + packetFamilyLen + packetTSizeLen + packetCRCLen + packetSlotLen

	packetSizePlaceholder = 0xFFFF
)

var packetFamily = [packetFamilyLen]byte{0x00, 0x01, 0x00}

// AssembleTextPacket 为包体加上信封
// 先以占位长度构建，再用实际剩余长度回填前两个字节。
func AssembleTextPacket(body []byte, saveSlot int) (Command, error) {
	// 槽位只占低字节，设备接受任意字节值
	if err := ValidateRange(saveSlot, 0, 0xFF, "save slot"); err != nil {
		return nil, err
	}
	if err := ValidateRange(packetHeaderLen+len(body), 0, 0xFFFF, "text packet size"); err != nil {
		return nil, err
	}
	return patchPacketSize(buildPacketEnvelope(body, saveSlot)), nil
}

// buildPacketEnvelope 第一步：带占位长度的完整缓冲区
func buildPacketEnvelope(body []byte, saveSlot int) []byte {
	tsize := uint32(len(body) + packetTSizeLen + packetCRCLen + packetSlotLen)

	buf := make([]byte, 0, packetHeaderLen+len(body))
	buf = binary.LittleEndian.AppendUint16(buf, packetSizePlaceholder)
	buf = append(buf, packetFamily[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, tsize)
	buf = binary.LittleEndian.AppendUint32(buf, ChecksumBinary(body))
	buf = append(buf, 0x00, byte(saveSlot))
	return append(buf, body...)
}

// patchPacketSize 第二步：返回前两个字节替换为缓冲区总长度的新缓冲区
func patchPacketSize(buf []byte) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	binary.LittleEndian.PutUint16(out[:packetSizeLen], uint16(len(buf)))
	return out
}

// PacketTextOptions 一次性构造新版文本指令的参数
type PacketTextOptions struct {
	Text string
	PacketOptions
	SaveSlot     int
	Font         string
	FontOffsetX  int
	FontOffsetY  int
	FontSize     int
	MatrixHeight int
}

// DefaultPacketTextOptions 返回默认参数（临时槽位，16 像素高）
func DefaultPacketTextOptions(text string) PacketTextOptions {
	return PacketTextOptions{
		Text:          text,
		PacketOptions: DefaultPacketOptions(),
		SaveSlot:      SaveSlotScratch,
		Font:          "default",
		MatrixHeight:  16,
	}
}

// SendText1 面向可变宽 LED（类型 1）的新版文本指令
func (e *Encoder) SendText1(opts PacketTextOptions) (Command, error) {
	opts.LEDType = LEDTypeVariable
	return e.SendPacketText(opts)
}

// SendText2 面向固定分辨率 LED（类型 0）的新版文本指令
func (e *Encoder) SendText2(opts PacketTextOptions) (Command, error) {
	opts.LEDType = LEDTypeFixed
	return e.SendPacketText(opts)
}

// SendPacketText 创建文本包、按宽度配置渲染文字并封装信封
func (e *Encoder) SendPacketText(opts PacketTextOptions) (Command, error) {
	if err := ValidateRange(utf8.RuneCountInString(opts.Text), 1, 0xFFFF, "text length"); err != nil {
		return nil, err
	}
	if err := ValidateRange(opts.SaveSlot, 0, 0xFF, "save slot"); err != nil {
		return nil, err
	}
	renderer, err := e.PacketRenderer(opts.LEDType, opts.MatrixHeight, FontSpec{
		Font:    opts.Font,
		OffsetX: opts.FontOffsetX,
		OffsetY: opts.FontOffsetY,
		Size:    opts.FontSize,
	})
	if err != nil {
		return nil, err
	}
	pkt, err := e.NewTextPacket(opts.PacketOptions)
	if err != nil {
		return nil, err
	}
	if err := pkt.AddText(renderer, opts.Text, opts.MatrixHeight, opts.Color); err != nil {
		return nil, err
	}
	cmd, err := AssembleTextPacket(pkt.Serialize(), opts.SaveSlot)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("text packet command",
		zap.Int("led_type", opts.LEDType),
		zap.Int("frames", len(pkt.frames)),
		zap.Int("size", len(cmd)))
	return cmd, nil
}

// NewTextPacket 创建共享本 Encoder 日志的文本包
func (e *Encoder) NewTextPacket(opts PacketOptions) (*TextPacket, error) {
	return NewTextPacket(opts, e.logger)
}

// PacketRenderer 按 LED 类型与矩阵高度的宽度配置绑定字体，font 中的宽度字段被覆盖
func (e *Encoder) PacketRenderer(ledType, matrixHeight int, font FontSpec) (GlyphRenderer, error) {
	widths, err := e.profiles.Lookup(ledType, matrixHeight)
	if err != nil {
		return nil, err
	}
	font.MinWidth, font.MaxWidth, font.Step = widths.Min, widths.Max, widths.Step
	return BindFont(e.raster, font), nil
}

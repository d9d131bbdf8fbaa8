package service

import (
	"fmt"
	"os"

	"github.com/taoyao-code/ipixel-server/internal/imaging"
	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
)

// 指令名，同时用作 HTTP 路由、日志记录与出站优先级的键
const (
	CmdClock        = "clock"
	CmdRhythm       = "rhythm"
	CmdRhythm2      = "rhythm2"
	CmdTime         = "time"
	CmdFun          = "fun"
	CmdOrientation  = "orientation"
	CmdClear        = "clear"
	CmdBrightness   = "brightness"
	CmdSpeed        = "speed"
	CmdPixel        = "pixel"
	CmdLED          = "led"
	CmdDeleteScreen = "delete-screen"
	CmdText         = "text"
	CmdTextPacket   = "text-packet"
	CmdPNG          = "png"
	CmdGIF          = "gif"
)

// CommandNames 全部指令名
func CommandNames() []string {
	return []string{
		CmdClock, CmdRhythm, CmdRhythm2, CmdTime, CmdFun, CmdOrientation, CmdClear,
		CmdBrightness, CmdSpeed, CmdPixel, CmdLED, CmdDeleteScreen,
		CmdText, CmdTextPacket, CmdPNG, CmdGIF,
	}
}

// buildEnv 构造指令时可用的依赖
type buildEnv struct {
	enc         *ipixel.Encoder
	jpegQuality int
	skipped     int
}

// Request 一种指令的参数
type Request interface {
	CommandName() string
	build(env *buildEnv) (ipixel.Command, error)
}

// ClockRequest 时钟模式
type ClockRequest struct{ ipixel.ClockOptions }

func (ClockRequest) CommandName() string { return CmdClock }
func (r ClockRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.SetClockMode(r.ClockOptions)
}

// RhythmRequest 节奏模式（11 个电平）
type RhythmRequest struct {
	Style  int
	Levels [ipixel.RhythmLevels]int
}

func (RhythmRequest) CommandName() string { return CmdRhythm }
func (r RhythmRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.SetRhythmMode(r.Style, r.Levels)
}

// Rhythm2Request 节奏模式 2
type Rhythm2Request struct {
	Style int
	T     int
}

func (Rhythm2Request) CommandName() string { return CmdRhythm2 }
func (r Rhythm2Request) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.SetRhythmMode2(r.Style, r.T)
}

// TimeRequest 校时，缺省字段取当前时间
type TimeRequest struct {
	Hour, Minute, Second *int
}

func (TimeRequest) CommandName() string { return CmdTime }
func (r TimeRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.SetTime(r.Hour, r.Minute, r.Second)
}

// FunRequest 趣味模式开关
type FunRequest struct{ Enable bool }

func (FunRequest) CommandName() string { return CmdFun }
func (r FunRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.SetFunMode(r.Enable), nil
}

// OrientationRequest 屏幕方向
type OrientationRequest struct{ Orientation int }

func (OrientationRequest) CommandName() string { return CmdOrientation }
func (r OrientationRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.SetOrientation(r.Orientation)
}

// ClearRequest 清屏
type ClearRequest struct{}

func (ClearRequest) CommandName() string { return CmdClear }
func (ClearRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.Clear(), nil
}

// BrightnessRequest 亮度
type BrightnessRequest struct{ Level int }

func (BrightnessRequest) CommandName() string { return CmdBrightness }
func (r BrightnessRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.SetBrightness(r.Level)
}

// SpeedRequest 动画速度
type SpeedRequest struct{ Speed int }

func (SpeedRequest) CommandName() string { return CmdSpeed }
func (r SpeedRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.SetSpeed(r.Speed)
}

// PixelRequest 设置单个像素
type PixelRequest struct {
	X, Y  int
	Color string
}

func (PixelRequest) CommandName() string { return CmdPixel }
func (r PixelRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.SetPixel(r.X, r.Y, r.Color)
}

// LEDRequest 开关屏
type LEDRequest struct{ On bool }

func (LEDRequest) CommandName() string { return CmdLED }
func (r LEDRequest) build(*buildEnv) (ipixel.Command, error) {
	if r.On {
		return ipixel.LedOn(), nil
	}
	return ipixel.LedOff(), nil
}

// DeleteScreenRequest 删除已保存的屏幕
type DeleteScreenRequest struct{ Screen int }

func (DeleteScreenRequest) CommandName() string { return CmdDeleteScreen }
func (r DeleteScreenRequest) build(*buildEnv) (ipixel.Command, error) {
	return ipixel.DeleteScreen(r.Screen)
}

// TextRequest 旧版文本指令
type TextRequest struct{ ipixel.TextOptions }

func (TextRequest) CommandName() string { return CmdText }
func (r TextRequest) build(env *buildEnv) (ipixel.Command, error) {
	return env.enc.SendText(r.TextOptions)
}

// PacketItemKind 文本包条目类型
type PacketItemKind string

const (
	ItemText   PacketItemKind = "text"
	ItemImage  PacketItemKind = "image"
	ItemBitmap PacketItemKind = "bitmap"
)

// PacketItem 文本包中的一段内容
type PacketItem struct {
	Kind PacketItemKind
	// text
	Text  string
	Color string
	// text 与 image 共用 Size：文字为字形高度（0 取包默认高度），图像为边长
	// image：Path 为服务器本地文件，Data 为原始图片（任意格式，转换为 JPEG）
	Size int
	Path string
	Data []byte
	// bitmap
	Width, Height int
	Bitmap        []byte
}

// TextPacketRequest 新版文本包
// Items 为空时按 Options.Text 渲染整段文本。
type TextPacketRequest struct {
	Options ipixel.PacketTextOptions
	Items   []PacketItem
}

func (TextPacketRequest) CommandName() string { return CmdTextPacket }
func (r TextPacketRequest) build(env *buildEnv) (ipixel.Command, error) {
	if len(r.Items) == 0 {
		return env.enc.SendPacketText(r.Options)
	}
	pkt, err := env.enc.NewTextPacket(r.Options.PacketOptions)
	if err != nil {
		return nil, err
	}
	for i, item := range r.Items {
		if err := addItem(env, pkt, r.Options, item); err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, item.Kind, err)
		}
	}
	env.skipped = pkt.SkippedImages()
	return ipixel.AssembleTextPacket(pkt.Serialize(), r.Options.SaveSlot)
}

func addItem(env *buildEnv, pkt *ipixel.TextPacket, opts ipixel.PacketTextOptions, item PacketItem) error {
	switch item.Kind {
	case ItemText:
		// Size 非零时该段文字使用独立高度，宽度范围随高度查表
		height := opts.MatrixHeight
		if item.Size != 0 {
			height = item.Size
		}
		renderer, err := env.enc.PacketRenderer(opts.LEDType, height, ipixel.FontSpec{
			Font:    opts.Font,
			OffsetX: opts.FontOffsetX,
			OffsetY: opts.FontOffsetY,
			Size:    opts.FontSize,
		})
		if err != nil {
			return err
		}
		color := item.Color
		if color == "" {
			color = opts.Color
		}
		return pkt.AddText(renderer, item.Text, height, color)
	case ItemImage:
		if len(item.Data) == 0 {
			return pkt.AddImage(item.Size, item.Path)
		}
		jpg, err := imaging.SquareJPEG(item.Data, item.Size, env.jpegQuality)
		if err != nil {
			return err
		}
		return pkt.AddImageData(item.Size, jpg)
	case ItemBitmap:
		color := item.Color
		if color == "" {
			color = opts.Color
		}
		return pkt.AddBitmap(item.Height, item.Width, color, item.Bitmap)
	default:
		return fmt.Errorf("%w: item kind must be one of bitmap,image,text not %q", ipixel.ErrNotAllowed, item.Kind)
	}
}

// MediaRequest 图片或动画：Source 为文件路径或十六进制，Data 为上传的原始文件
type MediaRequest struct {
	Animated bool
	Source   string
	Data     []byte
}

func (r MediaRequest) CommandName() string {
	if r.Animated {
		return CmdGIF
	}
	return CmdPNG
}

func (r MediaRequest) build(*buildEnv) (ipixel.Command, error) {
	source := r.Source
	if len(r.Data) > 0 {
		// 上传内容写入临时文件，由编码器按扩展名识别
		ext := ".png"
		if r.Animated {
			ext = ".gif"
		}
		f, err := os.CreateTemp("", "ipixel-*"+ext)
		if err != nil {
			return nil, err
		}
		defer os.Remove(f.Name())
		if _, err := f.Write(r.Data); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		source = f.Name()
	}
	if r.Animated {
		return ipixel.SendAnimation(source)
	}
	return ipixel.SendPNG(source)
}

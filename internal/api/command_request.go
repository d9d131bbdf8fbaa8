package api

import (
	"fmt"

	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
	"github.com/taoyao-code/ipixel-server/internal/service"
)

// CommandBody 指令请求体，各指令只读取自己关心的字段
type CommandBody struct {
	Device  string `json:"device"`  // 目标设备地址（可选）
	Enqueue any    `json:"enqueue"` // 是否推入出站队列，缺省取配置

	// clock
	Style    any    `json:"style"`
	Date     string `json:"date"` // d/m/yy
	ShowDate any    `json:"show_date"`
	Format24 any    `json:"format_24"`

	// rhythm / rhythm2
	Levels []any `json:"levels"`
	T      any   `json:"t"`

	// time
	Hour   any `json:"hour"`
	Minute any `json:"minute"`
	Second any `json:"second"`

	// fun / led / orientation / brightness / speed / delete-screen
	Enable      any `json:"enable"`
	On          any `json:"on"`
	Orientation any `json:"orientation"`
	Level       any `json:"level"`
	Speed       any `json:"speed"`
	Screen      any `json:"screen"`

	// pixel
	X     any    `json:"x"`
	Y     any    `json:"y"`
	Color string `json:"color"`

	// text / text-packet
	Text         string `json:"text"`
	RainbowMode  any    `json:"rainbow_mode"`
	Animation    any    `json:"animation"`
	SaveSlot     any    `json:"save_slot"`
	Font         string `json:"font"`
	FontOffsetX  any    `json:"font_offset_x"`
	FontOffsetY  any    `json:"font_offset_y"`
	FontSize     any    `json:"font_size"`
	MatrixHeight any    `json:"matrix_height"`
	LEDType      any    `json:"led_type"`
	ColorMode    any    `json:"color_mode"`
	BgColorMode  any    `json:"bg_color_mode"`
	BgColor      string `json:"bg_color"`
	HAlign       any    `json:"halign"`
	VAlign       any    `json:"valign"`
	Items        []Item `json:"items"`

	// png / gif：source 为服务器本地路径或十六进制，data 为 base64 文件内容
	Source string `json:"source"`
	Data   []byte `json:"data"`
}

// Item 文本包条目
type Item struct {
	Kind   string `json:"kind"` // text | image | bitmap
	Text   string `json:"text"`
	Color  string `json:"color"`
	Size   any    `json:"size"`
	Path   string `json:"path"`
	Data   []byte `json:"data"` // base64 图片，任意格式
	Width  any    `json:"width"`
	Height any    `json:"height"`
	Bitmap string `json:"bitmap"` // 十六进制原始位图
}

// requestBuilder 将请求体转换为服务层请求
type requestBuilder func(svc *service.CommandService, b *CommandBody) (service.Request, error)

var builders = map[string]requestBuilder{
	service.CmdClock:        buildClock,
	service.CmdRhythm:       buildRhythm,
	service.CmdRhythm2:      buildRhythm2,
	service.CmdTime:         buildTime,
	service.CmdFun:          buildFun,
	service.CmdOrientation:  buildOrientation,
	service.CmdClear:        buildClear,
	service.CmdBrightness:   buildBrightness,
	service.CmdSpeed:        buildSpeed,
	service.CmdPixel:        buildPixel,
	service.CmdLED:          buildLED,
	service.CmdDeleteScreen: buildDeleteScreen,
	service.CmdText:         buildText,
	service.CmdTextPacket:   buildTextPacket,
	service.CmdPNG:          buildMedia(false),
	service.CmdGIF:          buildMedia(true),
}

func buildClock(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	opts := ipixel.DefaultClockOptions()
	opts.Date = b.Date
	var err error
	if opts.Style, err = intOr(b.Style, "style", opts.Style); err != nil {
		return nil, err
	}
	if opts.ShowDate, err = boolOr(b.ShowDate, "show_date", opts.ShowDate); err != nil {
		return nil, err
	}
	if opts.Format24, err = boolOr(b.Format24, "format_24", opts.Format24); err != nil {
		return nil, err
	}
	return service.ClockRequest{ClockOptions: opts}, nil
}

func buildRhythm(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	if len(b.Levels) != ipixel.RhythmLevels {
		return nil, fmt.Errorf("%w: levels must have %d values, got %d", ipixel.ErrInvalidInput, ipixel.RhythmLevels, len(b.Levels))
	}
	var req service.RhythmRequest
	var err error
	if req.Style, err = intOr(b.Style, "style", 0); err != nil {
		return nil, err
	}
	for i, v := range b.Levels {
		if req.Levels[i], err = ipixel.ToInt(v, fmt.Sprintf("l%d", i+1)); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func buildRhythm2(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	req := service.Rhythm2Request{}
	err := assignInts(
		intField{b.Style, "style", &req.Style},
		intField{b.T, "t", &req.T},
	)
	return req, err
}

func buildTime(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	var req service.TimeRequest
	var err error
	if req.Hour, err = optInt(b.Hour, "hour"); err != nil {
		return nil, err
	}
	if req.Minute, err = optInt(b.Minute, "minute"); err != nil {
		return nil, err
	}
	if req.Second, err = optInt(b.Second, "second"); err != nil {
		return nil, err
	}
	return req, nil
}

func buildFun(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	enable, err := boolOr(b.Enable, "enable", false)
	return service.FunRequest{Enable: enable}, err
}

func buildOrientation(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	o, err := intOr(b.Orientation, "orientation", 0)
	return service.OrientationRequest{Orientation: o}, err
}

func buildClear(*service.CommandService, *CommandBody) (service.Request, error) {
	return service.ClearRequest{}, nil
}

func buildBrightness(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	if b.Level == nil {
		return nil, fmt.Errorf("%w: level is required", ipixel.ErrInvalidInput)
	}
	level, err := ipixel.ToInt(b.Level, "brightness")
	return service.BrightnessRequest{Level: level}, err
}

func buildSpeed(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	if b.Speed == nil {
		return nil, fmt.Errorf("%w: speed is required", ipixel.ErrInvalidInput)
	}
	speed, err := ipixel.ToInt(b.Speed, "speed")
	return service.SpeedRequest{Speed: speed}, err
}

func buildPixel(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	req := service.PixelRequest{Color: stringOr(b.Color, ipixel.DefaultColor)}
	err := assignInts(
		intField{b.X, "x", &req.X},
		intField{b.Y, "y", &req.Y},
	)
	return req, err
}

func buildLED(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	on, err := boolOr(b.On, "on", true)
	return service.LEDRequest{On: on}, err
}

func buildDeleteScreen(_ *service.CommandService, b *CommandBody) (service.Request, error) {
	if b.Screen == nil {
		return nil, fmt.Errorf("%w: screen is required", ipixel.ErrInvalidInput)
	}
	screen, err := ipixel.ToInt(b.Screen, "screen")
	return service.DeleteScreenRequest{Screen: screen}, err
}

func buildText(svc *service.CommandService, b *CommandBody) (service.Request, error) {
	opts := svc.TextDefaults(b.Text)
	opts.Color = stringOr(b.Color, opts.Color)
	opts.Font = stringOr(b.Font, opts.Font)
	err := assignInts(
		intField{b.RainbowMode, "rainbow_mode", &opts.RainbowMode},
		intField{b.Animation, "animation", &opts.Animation},
		intField{b.SaveSlot, "save_slot", &opts.SaveSlot},
		intField{b.Speed, "speed", &opts.Speed},
		intField{b.FontOffsetX, "font_offset_x", &opts.FontOffsetX},
		intField{b.FontOffsetY, "font_offset_y", &opts.FontOffsetY},
		intField{b.FontSize, "font_size", &opts.FontSize},
		intField{b.MatrixHeight, "matrix_height", &opts.MatrixHeight},
	)
	return service.TextRequest{TextOptions: opts}, err
}

func buildTextPacket(svc *service.CommandService, b *CommandBody) (service.Request, error) {
	opts := svc.PacketDefaults(b.Text)
	opts.Color = stringOr(b.Color, opts.Color)
	opts.BgColor = stringOr(b.BgColor, opts.BgColor)
	opts.Font = stringOr(b.Font, opts.Font)
	if err := assignInts(
		intField{b.LEDType, "led_type", &opts.LEDType},
		intField{b.Animation, "animation", &opts.Animation},
		intField{b.Speed, "speed", &opts.Speed},
		intField{b.ColorMode, "color_mode", &opts.ColorMode},
		intField{b.BgColorMode, "bg_color_mode", &opts.BgColorMode},
		intField{b.HAlign, "halign", &opts.HAlign},
		intField{b.VAlign, "valign", &opts.VAlign},
		intField{b.SaveSlot, "save_slot", &opts.SaveSlot},
		intField{b.FontOffsetX, "font_offset_x", &opts.FontOffsetX},
		intField{b.FontOffsetY, "font_offset_y", &opts.FontOffsetY},
		intField{b.FontSize, "font_size", &opts.FontSize},
		intField{b.MatrixHeight, "matrix_height", &opts.MatrixHeight},
	); err != nil {
		return nil, err
	}

	req := service.TextPacketRequest{Options: opts}
	for i, it := range b.Items {
		item := service.PacketItem{
			Kind:  service.PacketItemKind(it.Kind),
			Text:  it.Text,
			Color: it.Color,
			Path:  it.Path,
			Data:  it.Data,
		}
		if err := assignInts(
			intField{it.Size, fmt.Sprintf("items[%d].size", i), &item.Size},
			intField{it.Width, fmt.Sprintf("items[%d].width", i), &item.Width},
			intField{it.Height, fmt.Sprintf("items[%d].height", i), &item.Height},
		); err != nil {
			return nil, err
		}
		if it.Bitmap != "" {
			bitmap, err := decodeBitmap(it.Bitmap)
			if err != nil {
				return nil, err
			}
			item.Bitmap = bitmap
		}
		req.Items = append(req.Items, item)
	}
	return req, nil
}

func buildMedia(animated bool) requestBuilder {
	return func(_ *service.CommandService, b *CommandBody) (service.Request, error) {
		if b.Source == "" && len(b.Data) == 0 {
			return nil, fmt.Errorf("%w: source or data is required", ipixel.ErrInvalidInput)
		}
		return service.MediaRequest{Animated: animated, Source: b.Source, Data: b.Data}, nil
	}
}

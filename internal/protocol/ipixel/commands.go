package ipixel

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Command 发送给设备的一条完整指令（不可变字节序列）
type Command []byte

// Hex 返回指令的小写十六进制文本
func (c Command) Hex() string {
	return fmt.Sprintf("%x", []byte(c))
}

// 简单指令的固定头（十六进制文本，逆向所得，需原样保留）
const (
	headerClockMode   = "0b000601"
	headerRhythmMode  = "10000102"
	headerRhythmMode2 = "06000002"
	headerSetTime     = "08000180"
	headerFunMode     = "05000401"
	headerOrientation = "05000680"
	headerClear       = "04000380"
	headerBrightness  = "05000480"
	headerSpeed       = "050003"
	headerSetPixel    = "0a00050100"
	headerLedOff      = "0500070100"
	headerLedOn       = "0500070101"
	headerDeleteScr   = "070002010100"
)

// RhythmLevels 节奏模式的 11 个电平
const RhythmLevels = 11

// now 获取当前时间（便于测试时 mock）
var now = time.Now

// ClockOptions 时钟模式参数
type ClockOptions struct {
	Style    int
	Date     string // 格式 d/m/yy，为空时取当前日期
	ShowDate bool
	Format24 bool
}

// DefaultClockOptions 返回设备默认的时钟参数
func DefaultClockOptions() ClockOptions {
	return ClockOptions{Style: 1, ShowDate: true, Format24: true}
}

// SetClockMode 构造时钟模式指令
// 布局: 0b000601 + style + format24 + showDate + year + month + day + weekday
func SetClockMode(opts ClockOptions) (Command, error) {
	var day, month, year, weekday int
	if opts.Date == "" {
		t := now()
		day, month, year = t.Day(), int(t.Month()), t.Year()%100
		weekday = isoWeekday(t)
	} else {
		var err error
		day, month, year, weekday, err = parseDate(opts.Date)
		if err != nil {
			return nil, err
		}
	}

	if err := validateRanges(
		rangeCheck{opts.Style, 0, 8, "clock mode"},
		rangeCheck{weekday, 1, 7, "day of week"},
		rangeCheck{month, 1, 12, "month"},
		rangeCheck{day, 1, 31, "day"},
		rangeCheck{year, 0, 99, "year"},
	); err != nil {
		return nil, err
	}

	return hexCommand(headerClockMode,
		intToHex(opts.Style), boolHex(opts.Format24), boolHex(opts.ShowDate),
		intToHex(year), intToHex(month), intToHex(day), intToHex(weekday))
}

// parseDate 解析 d/m/y，并计算 ISO 星期（周一=1）
func parseDate(s string) (day, month, year, weekday int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return 0, 0, 0, 0, fmt.Errorf("%w: expected d/m/y, got %q", ErrInvalidDate, s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		vals[i], err = strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
		}
	}
	day, month, year = vals[0], vals[1], vals[2]

	// 两位年份按 20xx 计算星期；2000 是 400 的倍数，星期与公元 xx 年一致
	fullYear := year
	if year >= 0 && year < 100 {
		fullYear += 2000
	}
	t := time.Date(fullYear, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != fullYear || int(t.Month()) != month || t.Day() != day {
		return 0, 0, 0, 0, fmt.Errorf("%w: %q is not a calendar date", ErrInvalidDate, s)
	}
	return day, month, year, isoWeekday(t), nil
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func boolHex(v bool) string {
	if v {
		return "01"
	}
	return "00"
}

// SetRhythmMode 构造节奏模式指令：style(0-4) + 11 个电平(0-15)
func SetRhythmMode(style int, levels [RhythmLevels]int) (Command, error) {
	if err := ValidateRange(style, 0, 4, "rhythm mode style"); err != nil {
		return nil, err
	}
	parts := []string{headerRhythmMode, intToHex(style)}
	for i, l := range levels {
		if err := ValidateRange(l, 0, 15, fmt.Sprintf("level %d", i+1)); err != nil {
			return nil, err
		}
		parts = append(parts, intToHex(l))
	}
	return hexCommand(parts...)
}

// SetRhythmMode2 构造节奏模式（第二版）指令：动画时间 t(0-7) + style(0-1)
func SetRhythmMode2(style, t int) (Command, error) {
	if err := validateRanges(
		rangeCheck{style, 0, 1, "rhythm mode style"},
		rangeCheck{t, 0, 7, "level"},
	); err != nil {
		return nil, err
	}
	return hexCommand(headerRhythmMode2, intToHex(t), intToHex(style))
}

// SetTime 构造设置时间指令；任一分量为 nil 时整体使用当前系统时间
func SetTime(hour, minute, second *int) (Command, error) {
	var h, m, s int
	if hour == nil || minute == nil || second == nil {
		t := now()
		h, m, s = t.Hour(), t.Minute(), t.Second()
	} else {
		h, m, s = *hour, *minute, *second
	}
	if err := validateRanges(
		rangeCheck{h, 0, 23, "hour"},
		rangeCheck{m, 0, 59, "minute"},
		rangeCheck{s, 0, 59, "second"},
	); err != nil {
		return nil, err
	}
	return hexCommand(headerSetTime, intToHex(h), intToHex(m), intToHex(s), "00")
}

// SetFunMode 开关 DIY 绘图模式
func SetFunMode(enable bool) Command {
	out, _ := hexCommand(headerFunMode, boolHex(enable))
	return out
}

// SetOrientation 设置屏幕方向(0-3)
func SetOrientation(orientation int) (Command, error) {
	if err := ValidateRange(orientation, 0, 3, "orientation"); err != nil {
		return nil, err
	}
	return hexCommand(headerOrientation, intToHex(orientation))
}

// Clear 清空 EEPROM
func Clear() Command {
	out, _ := hexCommand(headerClear)
	return out
}

// SetBrightness 设置亮度(0-100)
func SetBrightness(value int) (Command, error) {
	if err := ValidateRange(value, 0, 100, "brightness"); err != nil {
		return nil, err
	}
	return hexCommand(headerBrightness, intToHex(value))
}

// SetSpeed 设置速度(0-100)
// 注意：设备端该指令无效，字节布局按已知抓包保留，不做修正
func SetSpeed(value int) (Command, error) {
	if err := ValidateRange(value, 0, 100, "speed"); err != nil {
		return nil, err
	}
	return hexCommand(headerSpeed, intToHex(value))
}

// SetPixel 设置单个像素颜色，color 为 RGB 十六进制（支持 3 位简写）
func SetPixel(x, y int, color string) (Command, error) {
	if err := validateRanges(
		rangeCheck{x, 0, 0xFF, "x"},
		rangeCheck{y, 0, 0xFF, "y"},
	); err != nil {
		return nil, err
	}
	c, err := NormalizeColor(color)
	if err != nil {
		return nil, err
	}
	return hexCommand(headerSetPixel, c, intToHex(x), intToHex(y))
}

// LedOff 关闭 LED
func LedOff() Command {
	out, _ := hexCommand(headerLedOff)
	return out
}

// LedOn 打开 LED
func LedOn() Command {
	out, _ := hexCommand(headerLedOn)
	return out
}

// DeleteScreen 从 EEPROM 删除指定序号的屏幕
func DeleteScreen(index int) (Command, error) {
	if err := ValidateRange(index, 0, 0xFF, "screen index"); err != nil {
		return nil, err
	}
	return hexCommand(headerDeleteScr, intToHex(index))
}

// NormalizeColor 校验 RGB 颜色文本；少于 6 位时每个字符重复一次（fff -> ffffff）
func NormalizeColor(color string) (string, error) {
	c := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(color), "#"))
	if len(c) < 6 {
		var sb strings.Builder
		for _, r := range c {
			sb.WriteRune(r)
			sb.WriteRune(r)
		}
		c = sb.String()
	}
	if len(c) != 6 {
		return "", fmt.Errorf("%w: color must be 3 or 6 hex digits, got %q", ErrInvalidInput, color)
	}
	if _, err := strconv.ParseUint(c, 16, 32); err != nil {
		return "", fmt.Errorf("%w: color %q is not hex", ErrInvalidInput, color)
	}
	return c, nil
}

package ipixel

import "fmt"

// LED 面板类型
const (
	LEDTypeFixed    = 0 // 宽度按 8 的倍数取整，使用固定分辨率位图帧
	LEDTypeVariable = 1 // 使用可变宽位图帧
)

// WidthRange 字形宽度范围 (min, max, step)
type WidthRange struct {
	Min  int `yaml:"min"`
	Max  int `yaml:"max"`
	Step int `yaml:"step"`
}

// WidthProfiles LED 类型 -> 矩阵高度 -> 字形宽度范围
type WidthProfiles map[int]map[int]WidthRange

// DefaultWidthProfiles 实测/估计的默认宽度配置
// 类型 0 的 48、64 与类型 1 除 16 以外的高度尚未在真机验证。
func DefaultWidthProfiles() WidthProfiles {
	return WidthProfiles{
		LEDTypeFixed: {
			16: {8, 16, 8},
			32: {16, 32, 16},
			48: {24, 48, 24},
			64: {32, 64, 32},
		},
		LEDTypeVariable: {
			12: {9, 16, 1},
			16: {9, 16, 1},
			20: {9, 16, 1},
			24: {9, 16, 1},
			32: {17, 24, 1},
		},
	}
}

// Lookup 返回指定类型与高度的宽度范围
func (p WidthProfiles) Lookup(ledType, height int) (WidthRange, error) {
	byHeight, ok := p[ledType]
	if !ok {
		return WidthRange{}, fmt.Errorf("%w: led type %d has no width profile", ErrNotAllowed, ledType)
	}
	heights := make([]int, 0, len(byHeight))
	for h := range byHeight {
		heights = append(heights, h)
	}
	if err := ValidateMembership(height, heights, "matrix height"); err != nil {
		return WidthRange{}, err
	}
	return byHeight[height], nil
}

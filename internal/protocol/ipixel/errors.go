package ipixel

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput 字符串无法解析为布尔值或整数
	ErrInvalidInput = errors.New("invalid input")
	// ErrOutOfRange 数值超出文档范围
	ErrOutOfRange = errors.New("out of range")
	// ErrNotAllowed 取值不在允许集合中
	ErrNotAllowed = errors.New("not allowed")
	// ErrUnsupportedResolution 分辨率不在帧类型的固定表中
	ErrUnsupportedResolution = fmt.Errorf("%w: unsupported resolution", ErrNotAllowed)
	// ErrInvalidDate 日期字符串格式错误
	ErrInvalidDate = errors.New("invalid date")
	// ErrUnsupportedAnimation 会导致设备反复重启的动画编号
	ErrUnsupportedAnimation = errors.New("unsupported animation")
	// ErrBitmapSizeMismatch 位图长度与声明尺寸不符
	ErrBitmapSizeMismatch = errors.New("bitmap size mismatch")
	// ErrResourceUnavailable 文件无法打开或读取
	ErrResourceUnavailable = errors.New("resource unavailable")
)

func errUnsupportedAnimation(animation int) error {
	return fmt.Errorf("%w: animation %d is not supported for text display", ErrUnsupportedAnimation, animation)
}

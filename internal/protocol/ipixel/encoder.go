package ipixel

import (
	"go.uber.org/zap"
)

// Encoder 持有字形光栅化器与诊断日志，负责需要渲染文字的指令
// 简单指令与媒体指令不依赖 Encoder，直接使用包级函数。
type Encoder struct {
	raster   Rasterizer
	profiles WidthProfiles
	logger   *zap.Logger
}

// Option Encoder 可选项
type Option func(*Encoder)

// WithLogger 注入诊断日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *Encoder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWidthProfiles 覆盖默认的字形宽度配置
func WithWidthProfiles(p WidthProfiles) Option {
	return func(e *Encoder) {
		if p != nil {
			e.profiles = p
		}
	}
}

// NewEncoder 创建 Encoder
func NewEncoder(r Rasterizer, opts ...Option) *Encoder {
	e := &Encoder{
		raster:   r,
		profiles: DefaultWidthProfiles(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Profiles 返回当前生效的宽度配置
func (e *Encoder) Profiles() WidthProfiles {
	return e.profiles
}

package health

import (
	"context"
	"time"

	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
)

// EncoderChecker 用内置字体渲染一个字符，确认光栅化器可用
type EncoderChecker struct {
	raster ipixel.Rasterizer
	font   ipixel.FontSpec
}

// NewEncoderChecker 创建编码器自检
func NewEncoderChecker(r ipixel.Rasterizer, font string) *EncoderChecker {
	return &EncoderChecker{
		raster: r,
		font:   ipixel.FontSpec{Font: font, MinWidth: 9, MaxWidth: 16, Step: 1},
	}
}

// Name 返回检查器名称
func (c *EncoderChecker) Name() string {
	return "encoder"
}

// Check 执行健康检查
func (c *EncoderChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	g, err := ipixel.EncodeGlyph(ipixel.BindFont(c.raster, c.font), 'A', 16, ipixel.DefaultColor)
	if err != nil {
		// 字体缺失时仍可生成不含文字的指令
		return CheckResult{Status: StatusDegraded, Message: "rasterizer: " + err.Error(), Latency: time.Since(start)}
	}
	if _, err := g.Encode(); err != nil {
		return CheckResult{Status: StatusDegraded, Message: "glyph: " + err.Error(), Latency: time.Since(start)}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Details: map[string]any{"font": c.font.Font, "glyph_width": g.Width},
		Latency: time.Since(start),
	}
}

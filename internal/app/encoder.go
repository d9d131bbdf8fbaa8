package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/ipixel-server/internal/config"
	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
	"github.com/taoyao-code/ipixel-server/internal/render"
)

// NewEncoder 创建字形光栅化器与编码器，配置了宽度文件时覆盖默认宽度
func NewEncoder(cfg cfgpkg.EncoderConfig, log *zap.Logger) (*render.Rasterizer, *ipixel.Encoder, error) {
	raster := render.New(
		render.WithFontDir(cfg.FontsDir),
		render.WithLogger(log.Named("render")),
	)

	opts := []ipixel.Option{ipixel.WithLogger(log.Named("ipixel"))}
	if cfg.WidthProfilesFile != "" {
		profiles, err := render.LoadWidthProfiles(cfg.WidthProfilesFile)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, ipixel.WithWidthProfiles(profiles))
		log.Info("width profiles loaded", zap.String("path", cfg.WidthProfilesFile))
	}
	return raster, ipixel.NewEncoder(raster, opts...), nil
}

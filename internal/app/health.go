package app

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/ipixel-server/internal/health"
	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
)

// NewHealthAggregator 创建健康检查聚合器，编码器检查始终存在，数据库按需加入
func NewHealthAggregator(raster ipixel.Rasterizer, font string, dbpool *pgxpool.Pool) *health.Aggregator {
	agg := health.NewAggregator(health.NewEncoderChecker(raster, font))
	if dbpool != nil {
		agg.AddChecker(health.NewDatabaseChecker(dbpool))
	}
	return agg
}

// RegisterHealthRoutes 注册健康检查HTTP路由
func RegisterHealthRoutes(r *gin.Engine, aggregator *health.Aggregator) {
	health.RegisterHTTPRoutes(r, aggregator)
}

package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/gorm"

	cfgpkg "github.com/taoyao-code/ipixel-server/internal/config"
	"github.com/taoyao-code/ipixel-server/internal/migrate"
	"github.com/taoyao-code/ipixel-server/internal/storage/gormrepo"
	pgstorage "github.com/taoyao-code/ipixel-server/internal/storage/pg"
)

// ConnectDBAndMigrate 建立数据库连接并按需执行迁移
// 返回的 gorm.DB 与 pgx 连接池共享同一组连接。
func ConnectDBAndMigrate(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, *gorm.DB, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg.DSN, cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, nil, err
	}
	if cfg.AutoMigrate {
		if err = (migrate.Runner{}).Up(ctx, dbpool); err != nil {
			log.Error("db migrate error", zap.Error(err))
			return dbpool, nil, err
		}
		log.Info("db migrations applied")
	}
	db, err := gormrepo.Open(dbpool)
	if err != nil {
		log.Error("gorm open error", zap.Error(err))
		return dbpool, nil, err
	}
	return dbpool, db, nil
}

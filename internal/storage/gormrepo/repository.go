package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taoyao-code/ipixel-server/internal/storage"
	"github.com/taoyao-code/ipixel-server/internal/storage/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Open 复用 pgx 连接池创建 *gorm.DB
func Open(pool *pgxpool.Pool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: stdlib.OpenDBFromPool(pool),
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, nil
}

// Repository 基于 GORM 的 CommandRepo 实现。
// 使用 isTx 标记区分事务上下文，避免嵌套事务重复 Begin/Commit。
type Repository struct {
	db   *gorm.DB
	isTx bool
}

// New 返回一个使用给定 *gorm.DB 的 CommandRepo 实例。
func New(db *gorm.DB) storage.CommandRepo {
	return &Repository{db: db}
}

// WithTx 复用现有事务或开启新事务执行 fn。
func (r *Repository) WithTx(ctx context.Context, fn func(storage.CommandRepo) error) error {
	if r.isTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	child := &Repository{db: tx, isTx: true}
	if err := fn(child); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// RecordCommand 写入指令日志
func (r *Repository) RecordCommand(ctx context.Context, log *models.CommandLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// MarkQueued 更新 queued_at
func (r *Repository) MarkQueued(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.CommandLog{}).
		Where("id = ?", id).
		Update("queued_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetCommand 按 ID 查询
func (r *Repository) GetCommand(ctx context.Context, id string) (*models.CommandLog, error) {
	var rec models.CommandLog
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCommands 按条件倒序列出
func (r *Repository) ListCommands(ctx context.Context, f storage.CommandFilter) ([]models.CommandLog, error) {
	q := r.db.WithContext(ctx).Model(&models.CommandLog{})
	if f.Name != "" {
		q = q.Where("name = ?", f.Name)
	}
	if f.Device != "" {
		q = q.Where("device = ?", f.Device)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	limit, offset := normalizePage(f.Limit, f.Offset)

	var out []models.CommandLog
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, err
}

// normalizePage 限制分页参数
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

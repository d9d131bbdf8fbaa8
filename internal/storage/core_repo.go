package storage

import (
	"context"
	"errors"
	"time"

	"github.com/taoyao-code/ipixel-server/internal/storage/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// CommandFilter 指令日志查询条件，零值字段不参与过滤
type CommandFilter struct {
	Name   string
	Device string
	Since  time.Time
	Limit  int
	Offset int
}

// CommandRepo 指令日志存储抽象
// 实现需要提供事务封装 WithTx，嵌套调用复用当前事务。
type CommandRepo interface {
	WithTx(ctx context.Context, fn func(repo CommandRepo) error) error

	// RecordCommand 写入一条指令日志
	RecordCommand(ctx context.Context, log *models.CommandLog) error
	// MarkQueued 记录指令推入出站队列的时间
	MarkQueued(ctx context.Context, id string, at time.Time) error
	// GetCommand 按 ID 查询，不存在时返回 ErrNotFound
	GetCommand(ctx context.Context, id string) (*models.CommandLog, error)
	// ListCommands 按创建时间倒序列出
	ListCommands(ctx context.Context, f CommandFilter) ([]models.CommandLog, error)
}

package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CommandStat 按指令名聚合的统计
type CommandStat struct {
	Name       string    `json:"name"`
	Count      int64     `json:"count"`
	TotalBytes int64     `json:"total_bytes"`
	Queued     int64     `json:"queued"`
	LastAt     time.Time `json:"last_at"`
}

// Repository 直接使用 pgx 的只读统计查询
type Repository struct {
	Pool *pgxpool.Pool
}

// CommandStats 返回 since 之后各指令的生成次数与字节数
func (r *Repository) CommandStats(ctx context.Context, since time.Time) ([]CommandStat, error) {
	const q = `SELECT name, COUNT(*), COALESCE(SUM(size), 0), COUNT(queued_at), MAX(created_at)
               FROM command_logs
               WHERE created_at >= $1
               GROUP BY name
               ORDER BY COUNT(*) DESC, name`
	rows, err := r.Pool.Query(ctx, q, since)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CommandStat, error) {
		var s CommandStat
		err := row.Scan(&s.Name, &s.Count, &s.TotalBytes, &s.Queued, &s.LastAt)
		return s, err
	})
}

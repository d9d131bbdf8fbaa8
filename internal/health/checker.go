package health

import (
	"context"
	"time"
)

// Status 健康状态
type Status string

const (
	StatusHealthy   Status = "healthy"   // 健康
	StatusDegraded  Status = "degraded"  // 降级（部分功能受损但仍可服务）
	StatusUnhealthy Status = "unhealthy" // 不健康（无法服务）
)

// CheckResult 健康检查结果
type CheckResult struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency"`
}

// Checker 健康检查器接口
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// utilizationStatus 连接池利用率超过 90% 降级，满载不健康
func utilizationStatus(utilization float64) (Status, string) {
	switch {
	case utilization >= 1.0:
		return StatusUnhealthy, "connection pool exhausted"
	case utilization > 0.9:
		return StatusDegraded, "connection pool near limit"
	default:
		return StatusHealthy, "ok"
	}
}

func unhealthy(start time.Time, format string, err error) CheckResult {
	return CheckResult{
		Status:  StatusUnhealthy,
		Message: format + ": " + err.Error(),
		Latency: time.Since(start),
	}
}

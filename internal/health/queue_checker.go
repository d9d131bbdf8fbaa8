package health

import (
	"context"
	"time"
)

// PendingCounter 出站队列待发送数量
type PendingCounter interface {
	GetPendingCount(ctx context.Context) (int64, error)
	GetDeadCount(ctx context.Context) (int64, error)
}

// QueueChecker 出站队列积压检查器：积压超过阈值降级
type QueueChecker struct {
	queue      PendingCounter
	maxPending int64
}

// NewQueueChecker 创建队列检查器，maxPending <= 0 时只报告不降级
func NewQueueChecker(queue PendingCounter, maxPending int64) *QueueChecker {
	return &QueueChecker{queue: queue, maxPending: maxPending}
}

// Name 返回检查器名称
func (c *QueueChecker) Name() string {
	return "outbound_queue"
}

// Check 执行健康检查
func (c *QueueChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	pending, err := c.queue.GetPendingCount(ctx)
	if err != nil {
		return unhealthy(start, "pending count failed", err)
	}
	dead, err := c.queue.GetDeadCount(ctx)
	if err != nil {
		return unhealthy(start, "dead count failed", err)
	}

	status, message := StatusHealthy, "ok"
	if c.maxPending > 0 && pending > c.maxPending {
		status, message = StatusDegraded, "outbound backlog"
	}
	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]any{
			"pending":     pending,
			"dead":        dead,
			"max_pending": c.maxPending,
		},
		Latency: time.Since(start),
	}
}

package outbound

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	redisstorage "github.com/taoyao-code/ipixel-server/internal/storage/redis"
)

// Queue 出站队列，*redisstorage.OutboundQueue 满足
type Queue interface {
	Dequeue(ctx context.Context) (*redisstorage.OutboundMessage, error)
	MarkProcessing(ctx context.Context, msg *redisstorage.OutboundMessage) error
	MarkSuccess(ctx context.Context, msg *redisstorage.OutboundMessage) error
	MarkFailed(ctx context.Context, msg *redisstorage.OutboundMessage, errMsg string) error
	GetPendingCount(ctx context.Context) (int64, error)
}

// Sender 将已编码指令写到设备（例如 BLE 网关）
type Sender interface {
	Send(ctx context.Context, device string, command []byte) error
}

// SenderFunc 函数适配器
type SenderFunc func(ctx context.Context, device string, command []byte) error

// Send 调用 f
func (f SenderFunc) Send(ctx context.Context, device string, command []byte) error {
	return f(ctx, device, command)
}

// LogSender 只记录日志的发送端，用于没有真实网关的环境
func LogSender(logger *zap.Logger) Sender {
	return SenderFunc(func(_ context.Context, device string, command []byte) error {
		logger.Info("outbound command (dry run)",
			zap.String("device", device),
			zap.Int("bytes", len(command)),
			zap.String("hex", hex.EncodeToString(command)))
		return nil
	})
}

// Dispatcher 按优先级消费出站队列并交给 Sender
type Dispatcher struct {
	queue    Queue
	sender   Sender
	logger   *zap.Logger
	throttle time.Duration
	onDepth  func(int64)
	stopC    chan struct{}
	stopOnce sync.Once

	// 统计
	sent      atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	deadCount atomic.Int64
}

// NewDispatcher 创建消费者
func NewDispatcher(queue Queue, sender Sender, throttleMs int, logger *zap.Logger) *Dispatcher {
	if throttleMs <= 0 {
		throttleMs = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:    queue,
		sender:   sender,
		logger:   logger,
		throttle: time.Duration(throttleMs) * time.Millisecond,
		stopC:    make(chan struct{}),
	}
}

// OnDepth 每轮处理后回调当前积压数量，用于更新指标
func (d *Dispatcher) OnDepth(fn func(int64)) {
	d.onDepth = fn
}

// Start 启动消费循环（阻塞）
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("outbound dispatcher started", zap.Duration("throttle", d.throttle))

	ticker := time.NewTicker(d.throttle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbound dispatcher stopping")
			return
		case <-d.stopC:
			d.logger.Info("outbound dispatcher stopped")
			return
		case <-ticker.C:
			d.processOne(ctx)
			d.reportDepth(ctx)
		}
	}
}

// Stop 停止消费，可重复调用
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopC) })
}

// processOne 处理一条消息，队列为空时返回 false
func (d *Dispatcher) processOne(ctx context.Context) bool {
	msg, err := d.queue.Dequeue(ctx)
	if err != nil {
		d.logger.Error("dequeue failed", zap.Error(err))
		return false
	}
	if msg == nil {
		return false
	}

	if err := d.queue.MarkProcessing(ctx, msg); err != nil {
		// 消息已出队，交回重试/死信流程，避免丢失
		d.logger.Error("mark processing failed", zap.String("msg_id", msg.ID), zap.Error(err))
		d.markFailed(ctx, msg, fmt.Sprintf("mark processing failed: %v", err))
		return true
	}

	sendCtx := ctx
	if msg.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, time.Duration(msg.Timeout)*time.Millisecond)
		defer cancel()
	}
	if err := d.sender.Send(sendCtx, msg.Device, msg.Command); err != nil {
		d.logger.Warn("send command failed",
			zap.String("msg_id", msg.ID),
			zap.String("device", msg.Device),
			zap.String("name", msg.Name),
			zap.Error(err))
		d.markFailed(ctx, msg, fmt.Sprintf("send failed: %v", err))
		return true
	}

	if err := d.queue.MarkSuccess(ctx, msg); err != nil {
		d.logger.Error("mark success failed", zap.String("msg_id", msg.ID), zap.Error(err))
		return true
	}

	d.sent.Add(1)
	d.logger.Debug("outbound command sent",
		zap.String("msg_id", msg.ID),
		zap.String("device", msg.Device),
		zap.String("name", msg.Name),
		zap.Int("bytes", len(msg.Command)))
	return true
}

// markFailed 重试或进入死信
func (d *Dispatcher) markFailed(ctx context.Context, msg *redisstorage.OutboundMessage, errMsg string) {
	// MarkFailed 会递增 Retries
	willRetry := msg.Retries+1 < msg.MaxRetry
	if err := d.queue.MarkFailed(ctx, msg, errMsg); err != nil {
		d.logger.Error("mark failed error", zap.String("msg_id", msg.ID), zap.Error(err))
		return
	}

	d.failed.Add(1)
	if willRetry {
		d.retried.Add(1)
		d.logger.Debug("outbound command retrying", zap.String("msg_id", msg.ID), zap.Int("retry", msg.Retries))
		return
	}
	d.deadCount.Add(1)
	d.logger.Warn("outbound command moved to dead queue",
		zap.String("msg_id", msg.ID),
		zap.String("device", msg.Device),
		zap.String("error", errMsg))
}

func (d *Dispatcher) reportDepth(ctx context.Context) {
	if d.onDepth == nil {
		return
	}
	n, err := d.queue.GetPendingCount(ctx)
	if err != nil {
		return
	}
	d.onDepth(n)
}

// DispatcherStats 消费统计
type DispatcherStats struct {
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
	DeadCount int64 `json:"dead_count"`
}

// Stats 获取统计信息
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Sent:      d.sent.Load(),
		Failed:    d.failed.Load(),
		Retried:   d.retried.Load(),
		DeadCount: d.deadCount.Load(),
	}
}

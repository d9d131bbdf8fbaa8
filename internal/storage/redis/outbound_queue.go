package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	outboundQueueKey      = "ipixel:outbound:queue"         // 待发送（Sorted Set，按优先级+时间排序）
	outboundProcessingKey = "ipixel:outbound:processing:%s" // 发送中（Hash，按设备）
	outboundDeadKey       = "ipixel:outbound:dead"          // 死信（List）

	// priorityWeight 大于任意毫秒时间戳（至 2286 年），保证优先级先于时间
	priorityWeight = 1e13
)

// OutboundMessage 等待 BLE 发送端取走的已编码指令
type OutboundMessage struct {
	ID        string    `json:"id"`
	Device    string    `json:"device"` // 目标设备地址，空表示任意设备
	Name      string    `json:"name"`   // 指令名，例如 clock、text
	Command   []byte    `json:"command"`
	Priority  int       `json:"priority"` // 数值越小越先发送
	Retries   int       `json:"retries"`
	MaxRetry  int       `json:"max_retry"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Timeout   int       `json:"timeout"` // 毫秒
}

// QueueStats 队列统计
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// OutboundQueue Redis 出站指令队列
type OutboundQueue struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewOutboundQueue 创建出站队列
func NewOutboundQueue(client redis.Cmdable) *OutboundQueue {
	return &OutboundQueue{client: client, now: time.Now}
}

// Enqueue 入队
func (q *OutboundQueue) Enqueue(ctx context.Context, msg *OutboundMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = q.now()
	}
	member, err := encodeMember(msg)
	if err != nil {
		return err
	}
	return q.client.ZAdd(ctx, outboundQueueKey, redis.Z{
		Score:  queueScore(msg.Priority, msg.CreatedAt),
		Member: member,
	}).Err()
}

// Dequeue 取出一条待发送指令，队列为空时返回 nil, nil
func (q *OutboundQueue) Dequeue(ctx context.Context) (*OutboundMessage, error) {
	result, err := q.client.ZPopMin(ctx, outboundQueueKey, 1).Result()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}
	member, ok := result[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected member type %T", result[0].Member)
	}
	msg, err := parseMessage(member)
	if err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return msg, nil
}

// MarkProcessing 标记为发送中，超过两倍超时后自动过期
func (q *OutboundQueue) MarkProcessing(ctx context.Context, msg *OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := processingKey(msg.Device)
	pipe := q.client.Pipeline()
	pipe.HSet(ctx, key, msg.ID, data)
	if msg.Timeout > 0 {
		pipe.Expire(ctx, key, time.Duration(msg.Timeout)*time.Millisecond*2)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// MarkSuccess 发送成功，移出发送中
func (q *OutboundQueue) MarkSuccess(ctx context.Context, msg *OutboundMessage) error {
	return q.client.HDel(ctx, processingKey(msg.Device), msg.ID).Err()
}

// MarkFailed 发送失败：未超过重试上限时重新入队，否则进入死信
func (q *OutboundQueue) MarkFailed(ctx context.Context, msg *OutboundMessage, errMsg string) error {
	if err := q.client.HDel(ctx, processingKey(msg.Device), msg.ID).Err(); err != nil {
		return err
	}

	msg.Retries++
	msg.UpdatedAt = q.now()
	if msg.Retries < msg.MaxRetry {
		return q.Enqueue(ctx, msg)
	}

	data, err := json.Marshal(struct {
		Message  *OutboundMessage `json:"message"`
		Error    string           `json:"error"`
		FailedAt time.Time        `json:"failed_at"`
	}{msg, errMsg, msg.UpdatedAt})
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, outboundDeadKey, data).Err()
}

// GetPendingCount 待发送数量
func (q *OutboundQueue) GetPendingCount(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, outboundQueueKey).Result()
}

// GetProcessingCount 所有设备的发送中数量
func (q *OutboundQueue) GetProcessingCount(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		count  int64
	)
	for {
		keys, next, err := q.client.Scan(ctx, cursor, processingKey("*"), 100).Result()
		if err != nil {
			return 0, err
		}
		for _, key := range keys {
			n, err := q.client.HLen(ctx, key).Result()
			if err != nil {
				return 0, err
			}
			count += n
		}
		if cursor = next; cursor == 0 {
			return count, nil
		}
	}
}

// GetDeadCount 死信数量
func (q *OutboundQueue) GetDeadCount(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, outboundDeadKey).Result()
}

// Stats 队列统计
func (q *OutboundQueue) Stats(ctx context.Context) (QueueStats, error) {
	var s QueueStats
	var err error
	if s.Pending, err = q.GetPendingCount(ctx); err != nil {
		return s, err
	}
	if s.Processing, err = q.GetProcessingCount(ctx); err != nil {
		return s, err
	}
	if s.Dead, err = q.GetDeadCount(ctx); err != nil {
		return s, err
	}
	s.Total = s.Pending + s.Processing
	return s, nil
}

// queueScore 优先级 × 1e13 + 毫秒时间戳，ZPOPMIN 先取优先级数值小、时间早的
func queueScore(priority int, createdAt time.Time) float64 {
	return float64(priority)*priorityWeight + float64(createdAt.UnixMilli())
}

func processingKey(device string) string {
	if device == "" {
		device = "_"
	}
	return fmt.Sprintf(outboundProcessingKey, device)
}

// encodeMember 成员格式 "ID:JSON"，ID 保证同一内容的重试不会被去重
func encodeMember(msg *OutboundMessage) (string, error) {
	if msg.ID == "" || strings.Contains(msg.ID, ":") {
		return "", fmt.Errorf("invalid message id %q", msg.ID)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return msg.ID + ":" + string(data), nil
}

func parseMessage(member string) (*OutboundMessage, error) {
	_, data, ok := strings.Cut(member, ":")
	if !ok {
		return nil, fmt.Errorf("invalid message format")
	}
	var msg OutboundMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

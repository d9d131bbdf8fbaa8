package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/ipixel-server/internal/bridge"
	cfgpkg "github.com/taoyao-code/ipixel-server/internal/config"
	"github.com/taoyao-code/ipixel-server/internal/health"
	"github.com/taoyao-code/ipixel-server/internal/metrics"
	"github.com/taoyao-code/ipixel-server/internal/outbound"
	redisstorage "github.com/taoyao-code/ipixel-server/internal/storage/redis"
)

// NewRedisClient 创建Redis客户端，未启用时返回 nil
func NewRedisClient(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}

	client, err := redisstorage.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))

	return client, nil
}

// NewRedisOutboundQueue 创建Redis出站队列
func NewRedisOutboundQueue(client *redisstorage.Client) *redisstorage.OutboundQueue {
	return redisstorage.NewOutboundQueue(client)
}

// NewSender 配置了网关地址时返回 HTTP 网关客户端，否则返回只记录日志的发送端
func NewSender(cfg cfgpkg.OutboundConfig, logger *zap.Logger) (outbound.Sender, error) {
	if cfg.Gateway.URL == "" {
		logger.Warn("no ble gateway configured, outbound commands are only logged")
		return outbound.LogSender(logger), nil
	}
	client, err := bridge.NewClient(bridge.Config{
		Endpoint:         cfg.Gateway.URL,
		APIKey:           cfg.Gateway.APIKey,
		Secret:           cfg.Gateway.Secret,
		Timeout:          time.Duration(cfg.TimeoutMs) * time.Millisecond,
		Retries:          cfg.Gateway.Retries,
		BreakerThreshold: cfg.Gateway.BreakerThreshold,
		BreakerTimeout:   cfg.Gateway.BreakerTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("ble gateway configured", zap.String("url", cfg.Gateway.URL))
	return client, nil
}

// NewDispatcher 创建出站消费者，队列长度同步到指标
func NewDispatcher(queue *redisstorage.OutboundQueue, sender outbound.Sender, cfg cfgpkg.OutboundConfig, appm *metrics.AppMetrics, logger *zap.Logger) *outbound.Dispatcher {
	d := outbound.NewDispatcher(queue, sender, cfg.ThrottleMs, logger)
	d.OnDepth(func(n int64) { appm.QueueDepth.Set(float64(n)) })
	return d
}

// AddRedisCheckers 添加Redis与队列检查器到聚合器
func AddRedisCheckers(aggregator *health.Aggregator, redisClient *redisstorage.Client, queue *redisstorage.OutboundQueue, maxPending int64) {
	if redisClient == nil {
		return
	}
	aggregator.AddChecker(health.NewRedisChecker(redisClient))
	if queue != nil {
		aggregator.AddChecker(health.NewQueueChecker(queue, maxPending))
	}
}

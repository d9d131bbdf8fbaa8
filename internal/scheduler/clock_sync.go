// Package scheduler 定时向面板下发维护类指令
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taoyao-code/ipixel-server/internal/service"
)

// Encoder 指令编码入口，*service.CommandService 满足
type Encoder interface {
	Encode(ctx context.Context, target service.Target, req service.Request) (*service.Result, error)
}

// ClockSync 按 cron 表达式为设备生成校时指令并入队
// 面板没有 RTC 电池，断电后时间会漂移，需要周期性校正。
type ClockSync struct {
	cron    *cron.Cron
	svc     Encoder
	devices []string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewClockSync 解析调度表达式并登记任务；devices 为空时生成一条不指定设备的指令
func NewClockSync(svc Encoder, spec string, devices []string, logger *zap.Logger) (*ClockSync, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ClockSync{
		svc:     svc,
		devices: devices,
		timeout: 5 * time.Second,
		logger:  logger,
		now:     time.Now,
	}
	cl := cronLogger{logger.Sugar()}
	s.cron = cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("clock sync schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start 启动调度，ctx 结束时停止并等待正在执行的任务
func (s *ClockSync) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("clock sync scheduler started", zap.Int("devices", len(s.targets())))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("clock sync scheduler stopped")
}

func (s *ClockSync) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.Sync(ctx)
}

// Sync 立即为全部设备生成校时指令，返回成功入队的数量
func (s *ClockSync) Sync(ctx context.Context) int {
	now := s.now()
	h, m, sec := now.Hour(), now.Minute(), now.Second()
	enqueue := true

	ok := 0
	for _, device := range s.targets() {
		res, err := s.svc.Encode(ctx, service.Target{Device: device, Enqueue: &enqueue},
			service.TimeRequest{Hour: &h, Minute: &m, Second: &sec})
		if err != nil || res == nil || !res.Queued {
			s.logger.Warn("clock sync failed", zap.String("device", device), zap.Error(err))
			continue
		}
		ok++
	}
	s.logger.Debug("clock sync done", zap.Int("queued", ok), zap.String("time", now.Format("15:04:05")))
	return ok
}

func (s *ClockSync) targets() []string {
	if len(s.devices) == 0 {
		return []string{""}
	}
	return s.devices
}

// cronLogger 将 cron 内部日志转到 zap
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

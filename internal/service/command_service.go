package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/ipixel-server/internal/config"
	"github.com/taoyao-code/ipixel-server/internal/metrics"
	"github.com/taoyao-code/ipixel-server/internal/outbound"
	"github.com/taoyao-code/ipixel-server/internal/protocol/ipixel"
	"github.com/taoyao-code/ipixel-server/internal/storage"
	"github.com/taoyao-code/ipixel-server/internal/storage/models"
	redisstorage "github.com/taoyao-code/ipixel-server/internal/storage/redis"
)

// Enqueuer 出站队列写入端，*redisstorage.OutboundQueue 满足
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *redisstorage.OutboundMessage) error
}

// Target 指令的投递目标
type Target struct {
	Device  string
	Enqueue *bool // nil 表示使用配置中的默认值
}

// Result 一次编码的结果
type Result struct {
	ID            string
	Name          string
	Command       ipixel.Command
	Priority      int
	Queued        bool
	SkippedImages int
}

// Hex 指令十六进制文本
func (r Result) Hex() string { return r.Command.Hex() }

// CommandService 指令编码业务服务
// 编码本身无副作用；日志落库与入队都是可选的，失败不影响编码结果。
type CommandService struct {
	enc      *ipixel.Encoder
	defaults config.EncoderConfig
	repo     storage.CommandRepo
	queue    Enqueuer
	maxRetry int
	timeout  int
	metrics  *metrics.AppMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// CommandServiceOption 可选依赖
type CommandServiceOption func(*CommandService)

// WithCommandRepo 开启指令日志落库
func WithCommandRepo(repo storage.CommandRepo) CommandServiceOption {
	return func(s *CommandService) { s.repo = repo }
}

// WithEnqueuer 开启出站入队
func WithEnqueuer(q Enqueuer) CommandServiceOption {
	return func(s *CommandService) { s.queue = q }
}

// WithOutboundLimits 出站消息的最大重试次数与发送超时（毫秒），非正数保持默认
func WithOutboundLimits(maxRetry, timeoutMs int) CommandServiceOption {
	return func(s *CommandService) {
		if maxRetry > 0 {
			s.maxRetry = maxRetry
		}
		if timeoutMs > 0 {
			s.timeout = timeoutMs
		}
	}
}

// WithMetrics 注入业务指标
func WithMetrics(m *metrics.AppMetrics) CommandServiceOption {
	return func(s *CommandService) { s.metrics = m }
}

// WithServiceLogger 注入日志
func WithServiceLogger(logger *zap.Logger) CommandServiceOption {
	return func(s *CommandService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewCommandService 创建指令服务
func NewCommandService(enc *ipixel.Encoder, defaults config.EncoderConfig, opts ...CommandServiceOption) *CommandService {
	s := &CommandService{
		enc:      enc,
		defaults: defaults,
		maxRetry: 3,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profiles 编码器当前的字形宽度配置
func (s *CommandService) Profiles() ipixel.WidthProfiles {
	return s.enc.Profiles()
}

// TextDefaults 旧版文本参数，未设置的字段取配置默认值
func (s *CommandService) TextDefaults(text string) ipixel.TextOptions {
	opts := ipixel.DefaultTextOptions(text)
	if s.defaults.MatrixHeight > 0 {
		opts.MatrixHeight = s.defaults.MatrixHeight
	}
	if s.defaults.SaveSlot > 0 {
		opts.SaveSlot = s.defaults.SaveSlot
	}
	if s.defaults.Speed > 0 {
		opts.Speed = s.defaults.Speed
	}
	if s.defaults.Font != "" {
		opts.Font = s.defaults.Font
	}
	return opts
}

// PacketDefaults 新版文本包参数，未设置的字段取配置默认值
// 新版默认写入临时槽位，配置中的 saveSlot 只作用于旧版文本。
func (s *CommandService) PacketDefaults(text string) ipixel.PacketTextOptions {
	opts := ipixel.DefaultPacketTextOptions(text)
	opts.LEDType = s.defaults.LEDType
	if s.defaults.MatrixHeight > 0 {
		opts.MatrixHeight = s.defaults.MatrixHeight
	}
	if s.defaults.Speed > 0 {
		opts.Speed = s.defaults.Speed
	}
	if s.defaults.Font != "" {
		opts.Font = s.defaults.Font
	}
	return opts
}

// Encode 编码一条指令，并按需记录日志、推入出站队列
func (s *CommandService) Encode(ctx context.Context, target Target, req Request) (*Result, error) {
	name := req.CommandName()

	// 1. 编码
	env := &buildEnv{enc: s.enc, jpegQuality: s.defaults.JPEGQuality}
	cmd, err := req.build(env)
	s.metrics.ObserveEncode(name, len(cmd), err)
	if err != nil {
		s.logger.Debug("encode failed", zap.String("command", name), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if env.skipped > 0 && s.metrics != nil {
		s.metrics.SkippedImages.Add(float64(env.skipped))
	}

	res := &Result{
		ID:            uuid.NewString(),
		Name:          name,
		Command:       cmd,
		Priority:      outbound.GetCommandPriority(name),
		SkippedImages: env.skipped,
	}

	// 2. 记录指令日志
	if s.repo != nil {
		s.recordCommand(ctx, target, res)
	}

	// 3. 推入出站队列
	if s.shouldEnqueue(target) {
		if err := s.enqueue(ctx, target, res); err != nil {
			return res, err
		}
	}

	s.logger.Info("command encoded",
		zap.String("id", res.ID),
		zap.String("command", name),
		zap.Int("size", len(cmd)),
		zap.Bool("queued", res.Queued))
	return res, nil
}

func (s *CommandService) shouldEnqueue(target Target) bool {
	if s.queue == nil {
		return false
	}
	if target.Enqueue != nil {
		return *target.Enqueue
	}
	return s.defaults.Enqueue
}

func (s *CommandService) recordCommand(ctx context.Context, target Target, res *Result) {
	log := &models.CommandLog{
		ID:       res.ID,
		Name:     res.Name,
		Hex:      res.Hex(),
		Size:     len(res.Command),
		Priority: res.Priority,
	}
	if d := strings.TrimSpace(target.Device); d != "" {
		log.Device = &d
	}
	if err := s.repo.RecordCommand(ctx, log); err != nil {
		if s.metrics != nil {
			s.metrics.CommandLogFailure.Inc()
		}
		s.logger.Warn("record command log failed", zap.String("id", res.ID), zap.Error(err))
	}
}

func (s *CommandService) enqueue(ctx context.Context, target Target, res *Result) error {
	msg := &redisstorage.OutboundMessage{
		ID:       res.ID,
		Device:   strings.TrimSpace(target.Device),
		Name:     res.Name,
		Command:  res.Command,
		Priority: res.Priority,
		MaxRetry: s.maxRetry,
		Timeout:  s.timeout,
	}
	if err := s.queue.Enqueue(ctx, msg); err != nil {
		if s.metrics != nil {
			s.metrics.EnqueueTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("enqueue %s: %w", res.Name, err)
	}
	if s.metrics != nil {
		s.metrics.EnqueueTotal.WithLabelValues("ok").Inc()
	}
	res.Queued = true

	if s.repo != nil {
		if err := s.repo.MarkQueued(ctx, res.ID, s.now()); err != nil {
			s.logger.Warn("mark command queued failed", zap.String("id", res.ID), zap.Error(err))
		}
	}
	return nil
}

// ListCommands 查询指令日志，未启用数据库时返回 ErrHistoryDisabled
func (s *CommandService) ListCommands(ctx context.Context, f storage.CommandFilter) ([]models.CommandLog, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.repo.ListCommands(ctx, f)
}

// GetCommand 按 ID 查询指令日志
func (s *CommandService) GetCommand(ctx context.Context, id string) (*models.CommandLog, error) {
	if s.repo == nil {
		return nil, ErrHistoryDisabled
	}
	return s.repo.GetCommand(ctx, id)
}

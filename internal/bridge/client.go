// Package bridge 将出站指令以签名 HTTP 请求转发给外部 BLE 网关
package bridge

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// SendRequest 发送给网关的请求体
type SendRequest struct {
	Device  string `json:"device"`
	Command string `json:"command"` // 十六进制
	Size    int    `json:"size"`
	SentAt  int64  `json:"sent_at"`
}

// Config 网关客户端配置
type Config struct {
	Endpoint         string
	APIKey           string
	Secret           string
	Timeout          time.Duration
	Retries          int
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

// Client BLE 网关 HTTP 客户端，满足 outbound.Sender
type Client struct {
	http     *http.Client
	endpoint string
	path     string
	apiKey   string
	secret   string
	retries  int
	backoff  []time.Duration
	breaker  *CircuitBreaker
	logger   *zap.Logger
	now      func() time.Time
}

// NewClient 创建网关客户端
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway endpoint %q", cfg.Endpoint)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	c := &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		path:     u.Path,
		apiKey:   cfg.APIKey,
		secret:   cfg.Secret,
		retries:  cfg.Retries,
		backoff:  []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 500 * time.Millisecond, time.Second},
		breaker:  NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerTimeout),
		logger:   logger,
		now:      time.Now,
	}
	c.breaker.OnStateChange(func(from, to State) {
		logger.Warn("gateway circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})
	return c, nil
}

// Breaker 返回熔断器，用于健康检查与测试
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

// Send 将一条指令发送给网关；熔断期内直接返回 ErrCircuitOpen
func (c *Client) Send(ctx context.Context, device string, command []byte) error {
	body, err := json.Marshal(SendRequest{
		Device:  device,
		Command: hex.EncodeToString(command),
		Size:    len(command),
		SentAt:  c.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	// 4xx 表示指令被拒绝而非网关故障，不计入熔断
	var rejected *RejectedError
	err = c.breaker.Call(func() error {
		postErr := c.post(ctx, body)
		if errors.As(postErr, &rejected) {
			return nil
		}
		return postErr
	})
	if err != nil {
		return err
	}
	if rejected != nil {
		return rejected
	}
	return nil
}

// RejectedError 网关以 4xx 拒绝指令
type RejectedError struct {
	StatusCode int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway rejected command: http %d", e.StatusCode)
}

// post 带签名发送，仅对网络错误与 5xx 重试
func (c *Client) post(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		code, err := c.do(ctx, body)
		switch {
		case err != nil:
			lastErr = err
		case code >= 200 && code < 300:
			return nil
		case code < 500:
			return &RejectedError{StatusCode: code}
		default:
			lastErr = fmt.Errorf("gateway error: http %d", code)
		}
		if attempt == c.retries {
			break
		}
		backoff := c.backoff[min(attempt, len(c.backoff)-1)]
		c.logger.Debug("gateway send retry", zap.Int("attempt", attempt+1), zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, body []byte) (int, error) {
	ts := c.now().Unix()
	nonce := fmt.Sprintf("%08x", rand.Uint32())
	sig := SignHMAC(c.secret, buildCanonical(http.MethodPost, c.path, ts, nonce, hashHex(body)))

	// 每次尝试重新构造请求，body 只能读取一次
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Signature", sig)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Nonce", nonce)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

package bridge

import (
	"errors"
	"sync"
	"time"
)

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 正常状态，允许请求通过
	StateOpen                  // 熔断状态，拒绝所有请求
	StateHalfOpen              // 半开状态，允许少量请求试探
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen 网关连续失败，熔断期内拒绝发送
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests 半开状态请求过多
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitBreaker 保护 BLE 网关的熔断器
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	lastFailTime time.Time
	tripCount    int64

	threshold   int           // 连续失败次数阈值
	timeout     time.Duration // Open → HalfOpen
	halfOpenMax int           // 半开状态最大试探请求数
	now         func() time.Time

	onStateChange func(from, to State)
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:       StateClosed,
		threshold:   threshold,
		timeout:     timeout,
		halfOpenMax: 4,
		now:         time.Now,
	}
}

// OnStateChange 设置状态变化回调（同步调用，回调内不得再调用熔断器）
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Call 执行函数，受熔断器保护
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) > cb.timeout {
			cb.transitionTo(StateHalfOpen)
			cb.failureCount = 0
			cb.successCount = 0
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.successCount+cb.failureCount >= cb.halfOpenMax {
			return ErrTooManyRequests
		}
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailTime = cb.now()
		switch cb.state {
		case StateClosed:
			if cb.failureCount >= cb.threshold {
				cb.transitionTo(StateOpen)
				cb.tripCount++
			}
		case StateHalfOpen:
			// 半开状态失败，立即熔断
			cb.transitionTo(StateOpen)
			cb.tripCount++
		}
		return
	}

	cb.successCount++
	switch cb.state {
	case StateHalfOpen:
		if cb.successCount >= cb.halfOpenMax/2 {
			cb.transitionTo(StateClosed)
			cb.failureCount = 0
			cb.successCount = 0
		}
	case StateClosed:
		// 只统计连续失败
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}
	old := cb.state
	cb.state = newState
	if cb.onStateChange != nil {
		cb.onStateChange(old, newState)
	}
}

// State 当前状态
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// TripCount 累计熔断次数
func (cb *CircuitBreaker) TripCount() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.tripCount
}

package ami

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"ura-call-bridge/pkg/logger"
)

// ErrRetriesExhausted 重连次数用尽，进程应退出
var ErrRetriesExhausted = errors.New("ami: reconnect retries exhausted")

// Session Manager 持有的一条已登录连接
type Session interface {
	Action(ctx context.Context, name string, params map[string]string) (Message, error)
	Done() <-chan struct{}
	Err() error
	Close() error
}

// DialFunc 建立一条已登录的会话，事件通过 onEvent 回调
type DialFunc func(ctx context.Context, onEvent func(Event)) (Session, error)

// Options Manager 配置
type Options struct {
	Addr           string
	Username       string
	Secret         string
	DialTimeout    time.Duration
	ActionTimeout  time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxElapsed     time.Duration
}

// Manager 进程内唯一的 AMI 连接持有者，负责断线重连与事件分发
type Manager struct {
	opts Options
	dial DialFunc

	mu      sync.RWMutex
	session Session

	handlersMu sync.RWMutex
	handlers   []func(Event)
}

// NewManager 创建 Manager，默认通过 TCP 连接 opts.Addr
func NewManager(opts Options) *Manager {
	m := &Manager{opts: opts}
	m.dial = func(ctx context.Context, onEvent func(Event)) (Session, error) {
		c, err := Dial(ctx, opts.Addr, opts.Username, opts.Secret, opts.DialTimeout, onEvent)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return m
}

// SetDialer 替换建连方式
func (m *Manager) SetDialer(dial DialFunc) {
	m.dial = dial
}

// Subscribe 注册事件处理函数，处理函数在读协程中调用，不得阻塞
func (m *Manager) Subscribe(h func(Event)) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Connected 当前是否有可用连接
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session != nil
}

// Action 在当前连接上执行动作；断线期间直接返回 ErrNotConnected
func (m *Manager) Action(ctx context.Context, name string, params map[string]string) (Message, error) {
	m.mu.RLock()
	s := m.session
	m.mu.RUnlock()
	if s == nil {
		return nil, ErrNotConnected
	}

	if _, ok := ctx.Deadline(); !ok && m.opts.ActionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.ActionTimeout)
		defer cancel()
	}
	return s.Action(ctx, name, params)
}

// Run 建立连接并在断线后重连，直到 ctx 结束或重试用尽
func (m *Manager) Run(ctx context.Context) error {
	for {
		s, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		m.setSession(s)
		logger.Info("[AMI] 已连接 %s", m.opts.Addr)

		select {
		case <-ctx.Done():
			m.setSession(nil)
			s.Close()
			logger.Info("[AMI] 连接已关闭")
			return nil
		case <-s.Done():
			m.setSession(nil)
			logger.Warning("[AMI] 连接丢失: %v", s.Err())
		}
	}
}

func (m *Manager) connect(ctx context.Context) (Session, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.opts.InitialBackoff
	bo.MaxInterval = m.opts.MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2

	attempt := 0
	operation := func() (Session, error) {
		attempt++
		s, err := m.dial(ctx, m.dispatch)
		if errors.Is(err, ErrAuthentication) {
			return nil, backoff.Permanent(err)
		}
		return s, err
	}

	tries := m.opts.MaxRetries
	if tries < 1 {
		tries = 1
	}
	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(tries)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warning("[AMI] 第%d次连接失败: %v，%v 后重试", attempt, err, next)
		}),
	}
	if m.opts.MaxElapsed > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxElapsedTime(m.opts.MaxElapsed))
	}

	s, err := backoff.Retry(ctx, operation, retryOpts...)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrAuthentication) {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt, err)
	}
	return s, nil
}

func (m *Manager) setSession(s Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()
}

func (m *Manager) dispatch(ev Event) {
	m.handlersMu.RLock()
	handlers := m.handlers
	m.handlersMu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}
}

package services

import (
	"sync"

	"github.com/google/uuid"

	"ura-call-bridge/internal/domain/models"
	"ura-call-bridge/pkg/logger"
)

// Subscriber 单个客户端的发送缓冲；满时丢弃最旧的事件
type Subscriber struct {
	id   string
	size int

	mu      sync.Mutex
	buf     []models.CallEvent
	dropped int64

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewSubscriber 创建容量为 size 的订阅者
func NewSubscriber(size int) *Subscriber {
	if size < 1 {
		size = 1
	}
	return &Subscriber{
		id:     uuid.NewString(),
		size:   size,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID 订阅者标识
func (s *Subscriber) ID() string {
	return s.id
}

// Notify 有新事件时可读
func (s *Subscriber) Notify() <-chan struct{} {
	return s.notify
}

// Done 订阅者被释放时关闭
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Close 释放订阅者，可重复调用
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Closed 是否已释放
func (s *Subscriber) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Drain 取出当前缓冲的全部事件，保持入队顺序
func (s *Subscriber) Drain() []models.CallEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf
	s.buf = nil
	return out
}

// Dropped 因缓冲溢出丢弃的事件数
func (s *Subscriber) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscriber) push(ev models.CallEvent) {
	if s.Closed() {
		return
	}

	s.mu.Lock()
	if len(s.buf) >= s.size {
		s.buf = s.buf[1:]
		s.dropped++
	}
	s.buf = append(s.buf, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// InterfaceEventHub defines the fan-out hub interface
type InterfaceEventHub interface {
	Register(clientID string, sub *Subscriber)
	Unregister(sub *Subscriber)
	Attach(sub *Subscriber)
	Broadcast(ev models.CallEvent)
	ClientCount() int
	NewSubscriber() *Subscriber
}

// EventHub 客户端注册表与事件广播
type EventHub struct {
	bufferSize int

	mu        sync.RWMutex
	clients   map[string]*Subscriber
	observers map[*Subscriber]struct{} // 服务内部订阅，不占用客户端 ID
}

// NewEventHub 创建广播中心，bufferSize 为每个客户端的缓冲长度
func NewEventHub(bufferSize int) *EventHub {
	return &EventHub{
		bufferSize: bufferSize,
		clients:    make(map[string]*Subscriber),
		observers:  make(map[*Subscriber]struct{}),
	}
}

// NewSubscriber 按中心配置的缓冲长度创建订阅者
func (h *EventHub) NewSubscriber() *Subscriber {
	return NewSubscriber(h.bufferSize)
}

// Register 绑定 clientID；已有的不同句柄会被释放，已释放的句柄不再登记
func (h *EventHub) Register(clientID string, sub *Subscriber) {
	h.mu.Lock()
	if sub.Closed() {
		h.mu.Unlock()
		logger.Debug("[Hub] 忽略已断开连接的注册: %s", clientID)
		return
	}
	old, exists := h.clients[clientID]
	h.clients[clientID] = sub
	h.mu.Unlock()

	if exists && old != sub {
		old.Close()
		logger.Info("[Hub] 客户端 %s 重新注册，旧连接已释放", clientID)
		return
	}
	logger.Info("[Hub] 客户端注册: %s", clientID)
}

// Unregister 释放句柄并移除它的所有注册
func (h *EventHub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub.Close()
	delete(h.observers, sub)
	for id, s := range h.clients {
		if s == sub {
			delete(h.clients, id)
			logger.Info("[Hub] 客户端断开: %s", id)
		}
	}
}

// Attach 以服务内部身份接收广播，不会被客户端注册顶替；用 Unregister 释放
func (h *EventHub) Attach(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.Closed() {
		return
	}
	h.observers[sub] = struct{}{}
}

// Broadcast 向每个已注册句柄投递一次，不会阻塞
func (h *EventHub) Broadcast(ev models.CallEvent) {
	h.mu.RLock()
	targets := make(map[*Subscriber]struct{}, len(h.clients)+len(h.observers))
	for _, s := range h.clients {
		targets[s] = struct{}{}
	}
	for s := range h.observers {
		targets[s] = struct{}{}
	}
	h.mu.RUnlock()

	for s := range targets {
		s.push(ev)
	}
}

// ClientCount 当前注册数
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

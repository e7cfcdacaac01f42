package services

import (
	"context"
	"sync/atomic"
	"time"

	"ura-call-bridge/internal/domain/models"
	"ura-call-bridge/internal/infrastructure/ami"
	"ura-call-bridge/pkg/logger"
)

// Broadcaster 领域事件的接收方
type Broadcaster interface {
	Broadcast(ev models.CallEvent)
}

// EventPipeline AMI 读协程与广播之间的有界队列，单协程消费以保持顺序
type EventPipeline struct {
	queue   chan ami.Event
	filter  TenantFilter
	out     Broadcaster
	now     func() time.Time
	dropped atomic.Int64
}

// NewEventPipeline 创建事件管道
func NewEventPipeline(filter TenantFilter, out Broadcaster, queueSize int) *EventPipeline {
	if queueSize < 1 {
		queueSize = 1
	}
	return &EventPipeline{
		queue:  make(chan ami.Event, queueSize),
		filter: filter,
		out:    out,
		now:    time.Now,
	}
}

// Enqueue 由 AMI 读协程调用；队列满时丢弃并告警，不阻塞读协程
func (p *EventPipeline) Enqueue(ev ami.Event) {
	switch ev.(type) {
	case ami.ChannelStateChanged, ami.ChannelHungUp, ami.QueueMemberPaused, ami.QueueMemberRemoved:
	default:
		return
	}

	select {
	case p.queue <- ev:
	default:
		n := p.dropped.Add(1)
		logger.Warning("[Pipeline] 事件队列已满，丢弃 %s 事件 (累计 %d)", ev.EventName(), n)
	}
}

// Dropped 因队列满丢弃的事件数
func (p *EventPipeline) Dropped() int64 {
	return p.dropped.Load()
}

// Run 按到达顺序翻译并广播，直到 ctx 结束
func (p *EventPipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-p.queue:
			if out, ok := Translate(ev, p.filter, p.now()); ok {
				p.out.Broadcast(out)
			}
		}
	}
}

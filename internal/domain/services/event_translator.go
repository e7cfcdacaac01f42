package services

import (
	"strings"
	"time"

	"ura-call-bridge/internal/domain/models"
	"ura-call-bridge/internal/infrastructure/ami"
)

const channelStateUp = "Up"

// TenantFilter 租户过滤条件：允许的拨号计划上下文和队列前缀
type TenantFilter struct {
	contexts    map[string]struct{}
	queuePrefix string
}

// NewTenantFilter 创建租户过滤器
func NewTenantFilter(contexts []string, queuePrefix string) TenantFilter {
	f := TenantFilter{
		contexts:    make(map[string]struct{}, len(contexts)),
		queuePrefix: queuePrefix,
	}
	for _, c := range contexts {
		f.contexts[c] = struct{}{}
	}
	return f
}

func (f TenantFilter) allowCall(state, context string) bool {
	if state != channelStateUp {
		return false
	}
	_, ok := f.contexts[context]
	return ok
}

func (f TenantFilter) queue(name string) (string, bool) {
	if !strings.HasPrefix(name, f.queuePrefix) {
		return "", false
	}
	return strings.TrimPrefix(name, f.queuePrefix), true
}

// Translate 将 AMI 事件转换为领域事件；不符合过滤条件的事件返回 false
func Translate(ev ami.Event, f TenantFilter, now time.Time) (models.CallEvent, bool) {
	switch e := ev.(type) {
	case ami.ChannelStateChanged:
		if !f.allowCall(e.ChannelStateDesc, e.Context) {
			return models.CallEvent{}, false
		}
		return callerEvent(models.CallEventCallerJoined, e.ConnectedLineNum, e.CallerIDNum, e.Uniqueid, e.Linkedid, now), true

	case ami.ChannelHungUp:
		if !f.allowCall(e.ChannelStateDesc, e.Context) {
			return models.CallEvent{}, false
		}
		return callerEvent(models.CallEventCallerLeft, e.ConnectedLineNum, e.CallerIDNum, e.Uniqueid, e.Linkedid, now), true

	case ami.QueueMemberPaused:
		queue, ok := f.queue(e.Queue)
		if !ok {
			return models.CallEvent{}, false
		}
		paused := e.Paused == "1"
		return models.CallEvent{
			Event: models.CallEventMemberPaused,
			Data: models.CallEventData{
				Extension: e.MemberName,
				Paused:    &paused,
				Reason:    e.PausedReason,
				LastPause: e.LastPause,
				Queue:     queue,
				Timestamp: now,
			},
		}, true

	case ami.QueueMemberRemoved:
		queue, ok := f.queue(e.Queue)
		if !ok {
			return models.CallEvent{}, false
		}
		return models.CallEvent{
			Event: models.CallEventMemberRemoved,
			Data: models.CallEventData{
				Extension: e.MemberName,
				Queue:     queue,
				Timestamp: now,
			},
		}, true
	}

	// CoreShowChannel 系列只给挂断服务使用
	return models.CallEvent{}, false
}

func callerEvent(kind models.CallEventType, callerNumber, extension, callID, linkedCallID string, now time.Time) models.CallEvent {
	return models.CallEvent{
		Event: kind,
		Data: models.CallEventData{
			CallerNumber: callerNumber,
			Extension:    extension,
			CallID:       callID,
			LinkedCallID: linkedCallID,
			Timestamp:    now,
		},
	}
}

package models

import "time"

// CallEventType 推送给坐席前端的事件类型
type CallEventType string

const (
	CallEventCallerJoined  CallEventType = "callerJoined"
	CallEventCallerLeft    CallEventType = "callerLeft"
	CallEventMemberPaused  CallEventType = "memberPaused"
	CallEventMemberRemoved CallEventType = "memberRemoved"
)

// CallEventData 事件内容；不同类型只填充各自的字段
type CallEventData struct {
	CallerNumber string    `json:"callerNumber,omitempty"`
	Extension    string    `json:"extension"`
	CallID       string    `json:"callId,omitempty"`
	LinkedCallID string    `json:"linkedCallId,omitempty"`
	Paused       *bool     `json:"paused,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	LastPause    string    `json:"lastPause,omitempty"`
	Queue        string    `json:"queue,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// CallEvent 领域事件，只在内存中流转，不落库
type CallEvent struct {
	Event CallEventType `json:"event"`
	Data  CallEventData `json:"data"`
}

package ami

import (
	"reflect"
	"strings"
)

// Event 已解码的 AMI 事件
type Event interface {
	EventName() string
}

// ChannelStateChanged 通道状态变化（Newstate）
type ChannelStateChanged struct {
	Channel           string `ami:"Channel"`
	ChannelState      string `ami:"ChannelState"`
	ChannelStateDesc  string `ami:"ChannelStateDesc"`
	CallerIDNum       string `ami:"CallerIDNum"`
	CallerIDName      string `ami:"CallerIDName"`
	ConnectedLineNum  string `ami:"ConnectedLineNum"`
	ConnectedLineName string `ami:"ConnectedLineName"`
	Context           string `ami:"Context"`
	Exten             string `ami:"Exten"`
	Uniqueid          string `ami:"Uniqueid"`
	Linkedid          string `ami:"Linkedid"`
}

// ChannelHungUp 通道挂断（Hangup）
type ChannelHungUp struct {
	Channel          string `ami:"Channel"`
	ChannelStateDesc string `ami:"ChannelStateDesc"`
	CallerIDNum      string `ami:"CallerIDNum"`
	ConnectedLineNum string `ami:"ConnectedLineNum"`
	Context          string `ami:"Context"`
	Uniqueid         string `ami:"Uniqueid"`
	Linkedid         string `ami:"Linkedid"`
	Cause            string `ami:"Cause"`
	CauseTxt         string `ami:"Cause-txt"`
}

// QueueMemberPaused 坐席暂停/恢复（QueueMemberPause / QueueMemberPaused）
type QueueMemberPaused struct {
	Queue        string `ami:"Queue"`
	MemberName   string `ami:"MemberName"`
	Interface    string `ami:"Interface"`
	Paused       string `ami:"Paused"`
	PausedReason string `ami:"PausedReason"`
	LastPause    string `ami:"LastPause"`
}

// QueueMemberRemoved 坐席被移出队列
type QueueMemberRemoved struct {
	Queue      string `ami:"Queue"`
	MemberName string `ami:"MemberName"`
	Interface  string `ami:"Interface"`
}

// ChannelSnapshot CoreShowChannels 返回的单个通道
type ChannelSnapshot struct {
	ActionID         string `ami:"ActionID" json:"-"`
	Channel          string `ami:"Channel" json:"channel"`
	ChannelStateDesc string `ami:"ChannelStateDesc" json:"channelStateDesc"`
	CallerIDNum      string `ami:"CallerIDNum" json:"callerIdNum"`
	ConnectedLineNum string `ami:"ConnectedLineNum" json:"connectedLineNum"`
	Context          string `ami:"Context" json:"context"`
	Uniqueid         string `ami:"Uniqueid" json:"uniqueid"`
	Linkedid         string `ami:"Linkedid" json:"linkedid"`
	Application      string `ami:"Application" json:"application"`
	Duration         string `ami:"Duration" json:"duration"`
	BridgeID         string `ami:"BridgeId" json:"bridgeId"`
}

// ChannelSnapshotComplete CoreShowChannels 列表结束
type ChannelSnapshotComplete struct {
	ActionID  string `ami:"ActionID"`
	ListItems string `ami:"ListItems"`
}

// UnknownEvent 未注册的事件，保留原始字段
type UnknownEvent struct {
	Name   string
	Fields Message
}

func (ChannelStateChanged) EventName() string     { return "Newstate" }
func (ChannelHungUp) EventName() string           { return "Hangup" }
func (QueueMemberPaused) EventName() string       { return "QueueMemberPause" }
func (QueueMemberRemoved) EventName() string      { return "QueueMemberRemoved" }
func (ChannelSnapshot) EventName() string         { return "CoreShowChannel" }
func (ChannelSnapshotComplete) EventName() string { return "CoreShowChannelsComplete" }
func (e UnknownEvent) EventName() string          { return e.Name }

// eventTrap 事件名（小写）到事件原型的映射
var eventTrap = map[string]Event{
	"newstate":                 ChannelStateChanged{},
	"hangup":                   ChannelHungUp{},
	"queuememberpause":         QueueMemberPaused{},
	"queuememberpaused":        QueueMemberPaused{},
	"queuememberremoved":       QueueMemberRemoved{},
	"coreshowchannel":          ChannelSnapshot{},
	"coreshowchannelscomplete": ChannelSnapshotComplete{},
}

// DecodeEvent 将原始消息解码为类型化事件
func DecodeEvent(msg Message) Event {
	name := msg.Get("Event")
	proto, ok := eventTrap[strings.ToLower(name)]
	if !ok {
		return UnknownEvent{Name: name, Fields: msg}
	}

	v := reflect.New(reflect.TypeOf(proto)).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("ami")
		if tag == "" || v.Field(i).Kind() != reflect.String {
			continue
		}
		v.Field(i).SetString(msg.Get(tag))
	}
	return v.Interface().(Event)
}

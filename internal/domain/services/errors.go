package services

import (
	"errors"
	"fmt"

	"ura-call-bridge/internal/infrastructure/ami"
)

var (
	// ErrInvalidHangupRequest ivr_id 或 uniqueid 缺失
	ErrInvalidHangupRequest = errors.New("ivr_id 和 uniqueid 不能为空")
	// ErrTooManyCommands 同时执行的挂断请求达到上限
	ErrTooManyCommands = errors.New("挂断请求过多，请稍后重试")
	// ErrCommandTimeout 等待 CoreShowChannelsComplete 超时
	ErrCommandTimeout = errors.New("等待通道列表超时")
	// ErrCorrelatorClosed 服务关闭时仍在等待的挂断请求
	ErrCorrelatorClosed = errors.New("挂断服务已关闭")
	// ErrCallRecordNotFound 按 uniqueid 找不到通话记录
	ErrCallRecordNotFound = errors.New("通话记录不存在")
	// ErrInvalidQuery 搜索条件格式错误
	ErrInvalidQuery = errors.New("查询参数无效")
	// ErrSweepInProgress 对账任务正在执行
	ErrSweepInProgress = errors.New("对账任务正在执行")
)

// 未找到的资源
const (
	ResourceChannel = "channel"
	ResourceRecord  = "record"
)

// NotFoundError 找不到目标通道或通话记录
// Resource 为 record 时挂断动作已经成功，Channel 为被挂断的通道
type NotFoundError struct {
	Resource string
	CallID   string
	Channel  *ami.ChannelSnapshot
}

func (e *NotFoundError) Error() string {
	if e.Resource == ResourceRecord {
		return fmt.Sprintf("通道已挂断，但通话记录不存在: %s", e.CallID)
	}
	return fmt.Sprintf("未找到通话 %s 的对端通道", e.CallID)
}

// UpstreamActionError Asterisk 拒绝了动作
type UpstreamActionError struct {
	Action  string
	Message string
}

func (e *UpstreamActionError) Error() string {
	return fmt.Sprintf("AMI 动作 %s 执行失败: %s", e.Action, e.Message)
}

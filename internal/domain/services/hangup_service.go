package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"ura-call-bridge/internal/domain/models"
	"ura-call-bridge/internal/infrastructure/ami"
	"ura-call-bridge/pkg/logger"
)

// ActionSender 在共享 AMI 连接上执行动作
type ActionSender interface {
	Action(ctx context.Context, name string, params map[string]string) (ami.Message, error)
}

// CallRecordStore 挂断后需要读写的通话记录
type CallRecordStore interface {
	FindByCallID(ctx context.Context, callID string) (*models.CallRecord, error)
	MarkInactive(ctx context.Context, callID string, update models.HangupUpdate) error
}

// HangupResult 挂断成功后返回被挂断的通道
type HangupResult struct {
	Channel ami.ChannelSnapshot `json:"channel"`
}

// InterfaceHangupService defines the hangup-by-call-id service interface
type InterfaceHangupService interface {
	Hangup(ctx context.Context, ivrReference, callID string) (*HangupResult, error)
	HandleEvent(ev ami.Event)
	PendingCount() int
	Close()
}

// pendingCommand 一次 CoreShowChannels 请求收集到的通道
type pendingCommand struct {
	snapshots []ami.ChannelSnapshot
	complete  chan struct{}
	finished  bool
}

// HangupService 按 uniqueid 定位对端通道并挂断
type HangupService struct {
	sender  ActionSender
	records CallRecordStore
	timeout time.Duration
	slots   *semaphore.Weighted

	now   func() time.Time
	newID func() string

	mu      sync.Mutex
	pending map[string]*pendingCommand

	closed    chan struct{}
	closeOnce sync.Once
}

// NewHangupService 创建挂断服务；maxInFlight 为同时执行的挂断上限
func NewHangupService(sender ActionSender, records CallRecordStore, timeout time.Duration, maxInFlight int) *HangupService {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	return &HangupService{
		sender:  sender,
		records: records,
		timeout: timeout,
		slots:   semaphore.NewWeighted(int64(maxInFlight)),
		now:     time.Now,
		newID:   uuid.NewString,
		pending: make(map[string]*pendingCommand),
		closed:  make(chan struct{}),
	}
}

// Hangup 列出通道，找到 Linkedid 等于 callID 的另一条腿，挂断并更新通话记录
func (s *HangupService) Hangup(ctx context.Context, ivrReference, callID string) (*HangupResult, error) {
	ivrReference = strings.TrimSpace(ivrReference)
	callID = strings.TrimSpace(callID)
	if ivrReference == "" || callID == "" {
		return nil, ErrInvalidHangupRequest
	}

	if !s.slots.TryAcquire(1) {
		return nil, ErrTooManyCommands
	}
	defer s.slots.Release(1)

	select {
	case <-s.closed:
		return nil, ErrCorrelatorClosed
	default:
	}

	actionID := s.newID()
	cmd := s.register(actionID)
	defer s.remove(actionID)

	cmdCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.sender.Action(cmdCtx, "CoreShowChannels", map[string]string{"ActionID": actionID}); err != nil {
		return nil, s.actionFailure("CoreShowChannels", err)
	}

	select {
	case <-cmd.complete:
	case <-cmdCtx.Done():
		if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
			logger.Warning("[Hangup] 等待通道列表超时: uniqueid=%s actionID=%s", callID, actionID)
			return nil, ErrCommandTimeout
		}
		return nil, cmdCtx.Err()
	case <-s.closed:
		return nil, ErrCorrelatorClosed
	}

	target, ok := findOtherLeg(s.snapshots(actionID), callID)
	if !ok {
		logger.Info("[Hangup] 未找到对端通道: uniqueid=%s", callID)
		return nil, &NotFoundError{Resource: ResourceChannel, CallID: callID}
	}

	// 挂断动作单独计时，不受前面等待列表所耗时间的影响
	hangupCtx, cancelHangup := context.WithTimeout(ctx, s.timeout)
	defer cancelHangup()
	if _, err := s.sender.Action(hangupCtx, "Hangup", map[string]string{"Channel": target.Channel}); err != nil {
		return nil, s.actionFailure("Hangup", err)
	}
	logger.Info("[Hangup] 已挂断通道 %s (uniqueid=%s, ivr_id=%s)", target.Channel, callID, ivrReference)

	// 通道已经挂断；记录更新失败只影响返回结果
	if err := s.closeRecord(ctx, ivrReference, callID); err != nil {
		if errors.Is(err, ErrCallRecordNotFound) {
			logger.Warning("[Hangup] 通道 %s 已挂断，但通话记录不存在: uniqueid=%s", target.Channel, callID)
			return nil, &NotFoundError{Resource: ResourceRecord, CallID: callID, Channel: &target}
		}
		logger.Error("[Hangup] 通道 %s 已挂断，但更新通话记录失败: %v", target.Channel, err)
		return nil, err
	}

	return &HangupResult{Channel: target}, nil
}

func (s *HangupService) closeRecord(ctx context.Context, ivrReference, callID string) error {
	if _, err := s.records.FindByCallID(ctx, callID); err != nil {
		return err
	}
	return s.records.MarkInactive(ctx, callID, models.HangupUpdate{
		Cause:        models.HangupCauseAPI,
		Time:         s.now(),
		IvrReference: ivrReference,
	})
}

// HandleEvent 由 AMI 读协程调用，按 ActionID 分发 CoreShowChannel 事件
func (s *HangupService) HandleEvent(ev ami.Event) {
	switch e := ev.(type) {
	case ami.ChannelSnapshot:
		s.mu.Lock()
		if cmd, ok := s.pending[e.ActionID]; ok && !cmd.finished {
			cmd.snapshots = append(cmd.snapshots, e)
		}
		s.mu.Unlock()
	case ami.ChannelSnapshotComplete:
		s.mu.Lock()
		if cmd, ok := s.pending[e.ActionID]; ok && !cmd.finished {
			cmd.finished = true
			close(cmd.complete)
		}
		s.mu.Unlock()
	}
}

// PendingCount 正在等待通道列表的请求数
func (s *HangupService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close 让所有等待中的请求立即失败
func (s *HangupService) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		logger.Info("[Hangup] 挂断服务已关闭")
	})
}

func (s *HangupService) register(actionID string) *pendingCommand {
	cmd := &pendingCommand{complete: make(chan struct{})}
	s.mu.Lock()
	s.pending[actionID] = cmd
	s.mu.Unlock()
	return cmd
}

func (s *HangupService) remove(actionID string) {
	s.mu.Lock()
	delete(s.pending, actionID)
	s.mu.Unlock()
}

func (s *HangupService) snapshots(actionID string) []ami.ChannelSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmd, ok := s.pending[actionID]
	if !ok {
		return nil
	}
	out := make([]ami.ChannelSnapshot, len(cmd.snapshots))
	copy(out, cmd.snapshots)
	return out
}

func (s *HangupService) actionFailure(action string, err error) error {
	var actionErr *ami.ActionError
	switch {
	case errors.As(err, &actionErr):
		logger.Error("[Hangup] AMI 拒绝 %s: %s", action, actionErr.Message)
		return &UpstreamActionError{Action: action, Message: actionErr.Message}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCommandTimeout
	default:
		logger.Error("[Hangup] 执行 %s 失败: %v", action, err)
		return fmt.Errorf("%s: %w", action, err)
	}
}

// findOtherLeg 第一条 Linkedid 等于 callID 且自身 Uniqueid 不同的通道
func findOtherLeg(channels []ami.ChannelSnapshot, callID string) (ami.ChannelSnapshot, bool) {
	for _, ch := range channels {
		if ch.Linkedid == callID && ch.Uniqueid != callID {
			return ch, true
		}
	}
	return ami.ChannelSnapshot{}, false
}

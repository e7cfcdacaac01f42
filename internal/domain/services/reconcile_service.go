package services

import (
	"context"
	"fmt"
	stdlog "log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ura-call-bridge/pkg/logger"
)

const reconcileLockKey = "ura:reconcile:lock"

// RecordSweeper 批量结束进行中的通话记录
type RecordSweeper interface {
	MarkAllInactive(ctx context.Context) (int64, error)
}

// SweepLocker 跨实例互斥
type SweepLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// ReconcileStatus 最近一次对账的结果
type ReconcileStatus struct {
	Running      bool       `json:"running"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastModified int64      `json:"last_modified"`
	LastError    string     `json:"last_error,omitempty"`
	NextRun      *time.Time `json:"next_run,omitempty"`
}

// InterfaceReconcileService defines the reconcile service interface
type InterfaceReconcileService interface {
	Sweep(ctx context.Context) (int64, error)
	Run(ctx context.Context) error
	Status() ReconcileStatus
}

// ReconcileService 定时把所有 active=true 的记录置为 false
type ReconcileService struct {
	records  RecordSweeper
	locker   SweepLocker
	schedule string
	location *time.Location
	lockTTL  time.Duration

	running sync.Mutex

	mu     sync.Mutex
	status ReconcileStatus
	cron   *cron.Cron
	entry  cron.EntryID
}

// NewReconcileService 创建对账服务；locker 为 nil 时只做进程内互斥
func NewReconcileService(records RecordSweeper, locker SweepLocker, schedule string, loc *time.Location, lockTTL time.Duration) *ReconcileService {
	if loc == nil {
		loc = time.Local
	}
	return &ReconcileService{
		records:  records,
		locker:   locker,
		schedule: schedule,
		location: loc,
		lockTTL:  lockTTL,
	}
}

// Sweep 执行一次对账；已有对账在执行时返回 ErrSweepInProgress
func (s *ReconcileService) Sweep(ctx context.Context) (int64, error) {
	if !s.running.TryLock() {
		return 0, ErrSweepInProgress
	}
	defer s.running.Unlock()

	if s.locker != nil {
		release, ok, err := s.locker.AcquireLock(ctx, reconcileLockKey, s.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("获取对账锁失败: %w", err)
		}
		if !ok {
			return 0, ErrSweepInProgress
		}
		defer release()
	}

	s.setRunning(true)
	logger.Info("[Reconcile] 开始将进行中的通话标记为结束")
	modified, err := s.records.MarkAllInactive(ctx)
	s.finish(modified, err)
	if err != nil {
		logger.Error("[Reconcile] 对账失败: %v", err)
		return 0, err
	}

	logger.Info("[Reconcile] 对账完成: %d 条通话记录已结束", modified)
	return modified, nil
}

// Run 按计划执行对账，直到 ctx 结束
func (s *ReconcileService) Run(ctx context.Context) error {
	cronLogger := cron.PrintfLogger(stdlog.New(logger.Writer(), "[Cron] ", 0))
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	id, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err == ErrSweepInProgress {
			logger.Warning("[Reconcile] 上一次对账仍在执行，跳过本次")
		}
	})
	if err != nil {
		return fmt.Errorf("无效的对账计划 %q: %w", s.schedule, err)
	}

	s.mu.Lock()
	s.cron, s.entry = c, id
	s.mu.Unlock()

	c.Start()
	logger.Info("[Reconcile] 已按计划 %q (%s) 启动", s.schedule, s.location)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Status 最近一次对账的结果和下一次计划时间
func (s *ReconcileService) Status() ReconcileStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	if s.cron != nil {
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}

func (s *ReconcileService) setRunning(running bool) {
	s.mu.Lock()
	s.status.Running = running
	s.mu.Unlock()
}

func (s *ReconcileService) finish(modified int64, err error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.LastRun = &now
	s.status.LastModified = modified
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
}

package container

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"ura-call-bridge/internal/domain/services"
	"ura-call-bridge/internal/infrastructure/ami"
	"ura-call-bridge/internal/infrastructure/config"
	"ura-call-bridge/pkg/logger"
)

// ConnectionStatus AMI 连接状态
type ConnectionStatus interface {
	Connected() bool
}

// HealthChecker 数据库健康检查
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Services 容器持有的组件
type Services struct {
	Config     *config.Config
	Database   HealthChecker
	AMI        ConnectionStatus
	Redis      services.InterfaceRedisService
	CallRecord services.InterfaceCallRecordService
	EventHub   services.InterfaceEventHub
	Pipeline   *services.EventPipeline
	Hangup     services.InterfaceHangupService
	Reconcile  services.InterfaceReconcileService
	MQTTEvent  services.InterfaceMQTTEventService
}

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	services Services
	mu       sync.RWMutex
}

// NewServiceContainer 创建服务容器并把事件处理挂到 AMI 连接上
// redisService 为 nil 时对账只做进程内互斥
func NewServiceContainer(cfg *config.Config, db *gorm.DB, health HealthChecker, manager *ami.Manager, redisService services.InterfaceRedisService) *ServiceContainer {
	if cfg == nil {
		panic("配置为空")
	}
	if manager == nil {
		panic("AMI 连接为空")
	}

	s := Services{
		Config:   cfg,
		Database: health,
		AMI:      manager,
		Redis:    redisService,
	}

	// 初始化业务服务
	callRecordService := services.NewCallRecordService(db, cfg)
	s.CallRecord = callRecordService

	hub := services.NewEventHub(cfg.HubClientBuffer)
	s.EventHub = hub
	s.Pipeline = services.NewEventPipeline(
		services.NewTenantFilter(cfg.TenantContexts, cfg.TenantQueuePrefix),
		hub,
		cfg.EventQueueSize,
	)

	hangupService := services.NewHangupService(manager, callRecordService, cfg.HangupTimeout, cfg.HangupMaxInFlight)
	s.Hangup = hangupService

	var locker services.SweepLocker
	if redisService != nil {
		locker = redisService
	}
	s.Reconcile = services.NewReconcileService(callRecordService, locker, cfg.ReconcileSchedule, cfg.Location(), cfg.ReconcileLockTTL)

	if cfg.MQTTEnabled {
		s.MQTTEvent = services.NewMQTTEventService(cfg, hub)
	}

	// 读协程里只做入队和追加，不阻塞
	manager.Subscribe(s.Pipeline.Enqueue)
	manager.Subscribe(hangupService.HandleEvent)

	logger.Info("服务容器初始化完成")
	return New(s)
}

// New 用已构造好的组件创建容器
func New(s Services) *ServiceContainer {
	return &ServiceContainer{services: s}
}

// Services 返回全部组件
func (c *ServiceContainer) Services() Services {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.services.Config
	case "database":
		return c.services.Database
	case "ami":
		return c.services.AMI
	case "redis":
		return c.services.Redis
	case "call_record":
		return c.services.CallRecord
	case "event_hub":
		return c.services.EventHub
	case "hangup":
		return c.services.Hangup
	case "reconcile":
		return c.services.Reconcile
	case "mqtt_event":
		return c.services.MQTTEvent
	default:
		return nil
	}
}

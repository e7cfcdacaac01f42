package controllers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"ura-call-bridge/internal/domain/services"
	"ura-call-bridge/internal/domain/services/container"
	"ura-call-bridge/internal/error/code"
	"ura-call-bridge/internal/error/response"
)

// HealthCheckController 健康检查控制器
type HealthCheckController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewHealthCheckController 创建健康检查控制器实例
func NewHealthCheckController(ctx *gin.Context, container *container.ServiceContainer) *HealthCheckController {
	return &HealthCheckController{
		Ctx:       ctx,
		Container: container,
	}
}

// HealthStatus 各组件状态
type HealthStatus struct {
	Status         string                    `json:"status" example:"healthy"`
	AMIConnected   bool                      `json:"ami_connected"`
	Database       string                    `json:"database" example:"ok"`
	Redis          string                    `json:"redis,omitempty" example:"ok"`
	HubClients     int                       `json:"hub_clients"`
	PendingHangups int                       `json:"pending_hangups"`
	DroppedEvents  int64                     `json:"dropped_events"`
	MQTTPublished  int64                     `json:"mqtt_published,omitempty"`
	Reconcile      *services.ReconcileStatus `json:"reconcile,omitempty"`
}

// HandleHealthFunc 返回一个处理健康检查请求的Gin处理函数
func HandleHealthFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewHealthCheckController(ctx, container)

		switch method {
		case "ping":
			controller.Ping()
		case "status":
			controller.Status()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

// Ping 健康检查端点
// @Summary      Ping
// @Tags         Health
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /ping [get]
func (h *HealthCheckController) Ping() {
	response.Success(h.Ctx, gin.H{
		"status":  "healthy",
		"message": "pong",
	})
}

// Status 汇总 AMI、数据库、Redis 和广播中心的状态
// @Summary      服务状态
// @Description  AMI 连接、数据库、广播客户端数量和进行中的挂断请求数
// @Tags         Health
// @Produce      json
// @Success      200  {object}  response.Response{data=HealthStatus}
// @Failure      503  {object}  response.Response{data=HealthStatus}
// @Router       /health/status [get]
func (h *HealthCheckController) Status() {
	svc := h.Container.Services()
	ctx, cancel := context.WithTimeout(h.Ctx.Request.Context(), 3*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:   "healthy",
		Database: "ok",
	}
	if svc.AMI != nil {
		status.AMIConnected = svc.AMI.Connected()
	}
	if !status.AMIConnected {
		status.Status = "degraded"
	}
	if svc.Database != nil {
		if err := svc.Database.HealthCheck(ctx); err != nil {
			status.Database = err.Error()
			status.Status = "degraded"
		}
	}
	if svc.Redis != nil {
		status.Redis = "ok"
		if err := svc.Redis.Ping(ctx); err != nil {
			status.Redis = err.Error()
		}
	}
	if svc.EventHub != nil {
		status.HubClients = svc.EventHub.ClientCount()
	}
	if svc.Hangup != nil {
		status.PendingHangups = svc.Hangup.PendingCount()
	}
	if svc.Pipeline != nil {
		status.DroppedEvents = svc.Pipeline.Dropped()
	}
	if svc.MQTTEvent != nil {
		status.MQTTPublished = svc.MQTTEvent.Published()
	}
	if svc.Reconcile != nil {
		st := svc.Reconcile.Status()
		status.Reconcile = &st
	}

	if status.Status != "healthy" {
		response.FailWithMessage(h.Ctx, code.ErrConnectionFailed, status.Status, status)
		return
	}
	response.Success(h.Ctx, status)
}

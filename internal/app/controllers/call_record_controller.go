package controllers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ura-call-bridge/internal/domain/models"
	"ura-call-bridge/internal/domain/services"
	"ura-call-bridge/internal/domain/services/container"
	"ura-call-bridge/internal/error/code"
	"ura-call-bridge/internal/error/response"
)

// InterfaceCallRecordController 定义通话记录控制器接口
type InterfaceCallRecordController interface {
	GetActiveCallRecords()
	SearchCallRecords()
	Reconcile()
}

// CallRecordController 处理通话记录相关的请求
type CallRecordController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewCallRecordController 创建一个新的通话记录控制器
func NewCallRecordController(ctx *gin.Context, container *container.ServiceContainer) *CallRecordController {
	return &CallRecordController{
		Ctx:       ctx,
		Container: container,
	}
}

// CallRecordListResponse 通话记录搜索结果
type CallRecordListResponse struct {
	Records    []models.CallRecord     `json:"records"`
	Pagination models.PaginationResult `json:"pagination"`
}

// ReconcileResponse 手动对账结果
type ReconcileResponse struct {
	Modified int64 `json:"modified" example:"12"`
}

// HandleCallRecordFunc 返回一个处理通话记录请求的Gin处理函数
func HandleCallRecordFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewCallRecordController(ctx, container)

		switch method {
		case "getActiveCallRecords":
			controller.GetActiveCallRecords()
		case "searchCallRecords":
			controller.SearchCallRecords()
		case "reconcile":
			controller.Reconcile()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

// 1. GetActiveCallRecords 获取进行中的通话
// @Summary      获取进行中的通话
// @Description  返回最近 50 条 active 的通话记录，按时间倒序
// @Tags         CallRecord
// @Produce      json
// @Success      200  {object}  response.Response{data=[]models.CallRecord}
// @Failure      500  {object}  ErrorResponse
// @Router       /call-records/active [get]
func (c *CallRecordController) GetActiveCallRecords() {
	callRecordService := c.Container.GetService("call_record").(services.InterfaceCallRecordService)

	records, err := callRecordService.GetActiveCallRecords(c.Ctx.Request.Context())
	if err != nil {
		response.FailWithMessage(c.Ctx, code.ErrDatabase, "获取通话记录失败: "+err.Error(), nil)
		return
	}

	response.Success(c.Ctx, records)
}

// 2. SearchCallRecords 搜索通话记录
// @Summary      搜索通话记录
// @Description  按号码、uniqueid、协议号或案件号模糊搜索，支持状态、选项、日期过滤和分页
// @Tags         CallRecord
// @Produce      json
// @Param        q query string false "搜索关键字"
// @Param        status query string false "all | active | finished"
// @Param        option query string false "IVR 选项"
// @Param        start_date query string false "开始日期 YYYY-MM-DD"
// @Param        end_date query string false "结束日期 YYYY-MM-DD（含）"
// @Param        page query int false "页码，默认为1"
// @Param        page_size query int false "每页条数，默认为20，最大100"
// @Success      200  {object}  response.Response{data=CallRecordListResponse}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /call-records [get]
func (c *CallRecordController) SearchCallRecords() {
	var query models.CallRecordQuery
	if err := c.Ctx.ShouldBindQuery(&query); err != nil {
		response.ParamError(c.Ctx, "无效的查询参数: "+err.Error())
		return
	}

	callRecordService := c.Container.GetService("call_record").(services.InterfaceCallRecordService)

	records, page, err := callRecordService.SearchCallRecords(c.Ctx.Request.Context(), query)
	if err != nil {
		if errors.Is(err, services.ErrInvalidQuery) {
			response.ParamError(c.Ctx, err.Error())
			return
		}
		response.FailWithMessage(c.Ctx, code.ErrDatabase, "搜索通话记录失败: "+err.Error(), nil)
		return
	}

	response.Success(c.Ctx, CallRecordListResponse{
		Records:    records,
		Pagination: page,
	})
}

// 3. Reconcile 手动触发对账
// @Summary      手动对账
// @Description  立即把所有 active 的通话记录标记为结束
// @Tags         CallRecord
// @Produce      json
// @Success      200  {object}  response.Response{data=ReconcileResponse}
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /call-records/reconcile [post]
func (c *CallRecordController) Reconcile() {
	reconcileService := c.Container.GetService("reconcile").(services.InterfaceReconcileService)

	modified, err := reconcileService.Sweep(c.Ctx.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrSweepInProgress) {
			response.Fail(c.Ctx, code.ErrReconcileInProgress, nil)
			return
		}
		response.FailWithMessage(c.Ctx, code.ErrReconcileFailed, "对账失败: "+err.Error(), nil)
		return
	}

	response.Success(c.Ctx, ReconcileResponse{Modified: modified})
}

package controllers

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"

	"ura-call-bridge/internal/domain/services"
	"ura-call-bridge/internal/domain/services/container"
	"ura-call-bridge/internal/error/code"
	"ura-call-bridge/internal/error/response"
	"ura-call-bridge/internal/infrastructure/ami"
	"ura-call-bridge/pkg/logger"
)

// InterfaceHangupController 定义挂断控制器接口
type InterfaceHangupController interface {
	Hangup()
}

// HangupController 处理 IVR 发起的挂断请求
type HangupController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewHangupController 创建挂断控制器
func NewHangupController(ctx *gin.Context, container *container.ServiceContainer) *HangupController {
	return &HangupController{
		Ctx:       ctx,
		Container: container,
	}
}

// HangupRequest 挂断请求体
type HangupRequest struct {
	IvrID    scalarString `json:"ivr_id" swaggertype:"string" example:"55"`
	Uniqueid scalarString `json:"uniqueid" swaggertype:"string" example:"1700000000.12"`
}

// HangupSuccessResponse 挂断成功响应
type HangupSuccessResponse struct {
	Success bool                `json:"success" example:"true"`
	Channel ami.ChannelSnapshot `json:"channel"`
}

// scalarString IVR 可能把 ivr_id 作为数字发送
type scalarString string

func (s *scalarString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = scalarString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = scalarString(n.String())
	return nil
}

// HandleHangupFunc 返回一个处理挂断请求的Gin处理函数
func HandleHangupFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewHangupController(ctx, container)

		switch method {
		case "hangup":
			controller.Hangup()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

// 1. Hangup 按 uniqueid 挂断对端通道并结束通话记录
// @Summary      挂断通话
// @Description  查找 Linkedid 等于 uniqueid 的另一条通道并挂断，随后把通话记录标记为结束
// @Tags         Hangup
// @Accept       json
// @Produce      json
// @Param        request body HangupRequest true "IVR 标识与通话 uniqueid"
// @Success      200  {object}  HangupSuccessResponse
// @Failure      400  {object}  HangupErrorResponse
// @Failure      404  {object}  HangupErrorResponse
// @Failure      429  {object}  HangupErrorResponse
// @Failure      500  {object}  HangupErrorResponse
// @Router       /hangup [post]
func (c *HangupController) Hangup() {
	var req HangupRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.HangupFail(c.Ctx, code.ErrBind, "", nil, "请求参数格式错误: "+err.Error())
		return
	}

	hangupService := c.Container.GetService("hangup").(services.InterfaceHangupService)

	result, err := hangupService.Hangup(c.Ctx.Request.Context(), string(req.IvrID), string(req.Uniqueid))
	if err != nil {
		c.fail(string(req.Uniqueid), err)
		return
	}

	logger.Info("[Hangup] 通话 %s 已挂断，通道 %s", req.Uniqueid, result.Channel.Channel)
	response.HangupSuccess(c.Ctx, result.Channel)
}

// fail 把服务层错误映射到挂断接口的响应
func (c *HangupController) fail(callID string, err error) {
	var notFound *services.NotFoundError
	var upstream *services.UpstreamActionError

	switch {
	case errors.Is(err, services.ErrInvalidHangupRequest):
		response.HangupFail(c.Ctx, code.ErrValidation, "", nil, err.Error())
	case errors.As(err, &notFound):
		if notFound.Resource == services.ResourceRecord {
			logger.Warning("[Hangup] 通道已挂断但通话记录 %s 不存在", callID)
			response.HangupFail(c.Ctx, code.ErrCallRecordNotFound, notFound.Resource, notFound.Channel, "")
			return
		}
		response.HangupFail(c.Ctx, code.ErrChannelNotFound, notFound.Resource, nil, "")
	case errors.Is(err, services.ErrTooManyCommands):
		response.HangupFail(c.Ctx, code.ErrTooManyCommands, "", nil, "")
	case errors.Is(err, services.ErrCommandTimeout):
		logger.Error("[Hangup] 通话 %s 挂断超时", callID)
		response.HangupFail(c.Ctx, code.ErrCommandTimeout, "", nil, "")
	case errors.As(err, &upstream):
		logger.Error("[Hangup] 通话 %s: %v", callID, err)
		response.HangupFail(c.Ctx, code.ErrUpstreamAction, "", nil, err.Error())
	case errors.Is(err, ami.ErrNotConnected):
		response.HangupFail(c.Ctx, code.ErrAMIDisconnected, "", nil, "")
	case errors.Is(err, services.ErrCorrelatorClosed):
		response.HangupFail(c.Ctx, code.ErrServiceClosing, "", nil, "")
	default:
		logger.Error("[Hangup] 通话 %s 挂断失败: %v", callID, err)
		response.HangupFail(c.Ctx, code.ErrUnknown, "", nil, err.Error())
	}
}

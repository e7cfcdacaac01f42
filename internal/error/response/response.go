package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ura-call-bridge/internal/error/code"
)

// Response 定义统一的响应格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HangupResponse 挂断接口的响应格式
type HangupResponse struct {
	Success bool        `json:"success"`
	Channel interface{} `json:"channel,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Code    int         `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    code.ErrSuccess,
		Message: code.GetMessage(code.ErrSuccess),
		Data:    data,
	})
}

// Fail 失败响应
func Fail(c *gin.Context, errorCode int, data interface{}) {
	httpStatus := code.GetStatus(errorCode)
	message := code.GetMessage(errorCode)

	c.JSON(httpStatus, Response{
		Code:    errorCode,
		Message: message,
		Data:    data,
	})
}

// FailWithMessage 失败响应（自定义消息）
func FailWithMessage(c *gin.Context, errorCode int, message string, data interface{}) {
	httpStatus := code.GetStatus(errorCode)

	c.JSON(httpStatus, Response{
		Code:    errorCode,
		Message: message,
		Data:    data,
	})
}

// ParamError 参数错误响应
func ParamError(c *gin.Context, message string) {
	if message == "" {
		message = code.GetMessage(code.ErrValidation)
	}
	FailWithMessage(c, code.ErrValidation, message, nil)
}

// ServerError 服务器错误响应
func ServerError(c *gin.Context) {
	Fail(c, code.ErrUnknown, nil)
}

// HangupSuccess 挂断成功: {success:true, channel}
func HangupSuccess(c *gin.Context, channel interface{}) {
	c.JSON(http.StatusOK, HangupResponse{
		Success: true,
		Channel: channel,
	})
}

// HangupFail 挂断失败，reason 只在 404 时携带
func HangupFail(c *gin.Context, errorCode int, reason string, channel interface{}, message string) {
	if message == "" {
		message = code.GetMessage(errorCode)
	}
	c.JSON(code.GetStatus(errorCode), HangupResponse{
		Success: false,
		Channel: channel,
		Reason:  reason,
		Code:    errorCode,
		Message: message,
	})
}

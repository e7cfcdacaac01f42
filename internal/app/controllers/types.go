package controllers

// ErrorResponse 表示错误响应
type ErrorResponse struct {
	Code    int         `json:"code" example:"100003"`
	Message string      `json:"message" example:"请求参数验证错误"`
	Data    interface{} `json:"data"`
}

// HangupErrorResponse 表示挂断失败的响应
type HangupErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Reason  string `json:"reason,omitempty" example:"channel"`
	Code    int    `json:"code" example:"104000"`
	Message string `json:"message" example:"未找到通话的对端通道"`
}

package code

// 错误码消息映射
var codeMessageMap = map[int]string{
	// 通用错误码
	ErrSuccess:         "成功",
	ErrUnknown:         "未知错误",
	ErrBind:            "请求参数绑定错误",
	ErrValidation:      "请求参数验证错误",
	ErrTooManyRequests: "请求频率过高，请稍后再试",

	// 挂断相关错误码
	ErrChannelNotFound:    "未找到通话的对端通道",
	ErrCallRecordNotFound: "通道已挂断，但通话记录不存在",
	ErrCommandTimeout:     "等待 AMI 响应超时",
	ErrUpstreamAction:     "AMI 动作执行失败",
	ErrTooManyCommands:    "挂断请求过多，请稍后重试",
	ErrAMIDisconnected:    "AMI 未连接",
	ErrServiceClosing:     "服务正在关闭",

	// 数据库相关错误码
	ErrDatabase:       "数据库错误",
	ErrRecordNotFound: "记录不存在",

	// 对账相关错误码
	ErrReconcileInProgress: "对账任务正在执行",
	ErrReconcileFailed:     "对账失败",

	// 连接相关错误码
	ErrConnectionFailed: "连接失败",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[int]int{
	// 通用错误码
	ErrSuccess:         StatusOK,
	ErrUnknown:         StatusInternalServerError,
	ErrBind:            StatusBadRequest,
	ErrValidation:      StatusBadRequest,
	ErrTooManyRequests: StatusTooManyRequests,

	// 挂断相关错误码
	ErrChannelNotFound:    StatusNotFound,
	ErrCallRecordNotFound: StatusNotFound,
	ErrCommandTimeout:     StatusInternalServerError,
	ErrUpstreamAction:     StatusInternalServerError,
	ErrTooManyCommands:    StatusTooManyRequests,
	ErrAMIDisconnected:    StatusInternalServerError,
	ErrServiceClosing:     StatusInternalServerError,

	// 数据库相关错误码
	ErrDatabase:       StatusInternalServerError,
	ErrRecordNotFound: StatusNotFound,

	// 对账相关错误码
	ErrReconcileInProgress: StatusConflict,
	ErrReconcileFailed:     StatusInternalServerError,

	// 连接相关错误码
	ErrConnectionFailed: StatusServiceUnavailable,
}

// GetMessage 获取错误码对应的消息
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "未知错误"
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}

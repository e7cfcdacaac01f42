package code

// HTTP状态码.
const (
	// StatusOK - 200: 成功.
	StatusOK = 200
	// StatusBadRequest - 400: 请求参数错误.
	StatusBadRequest = 400
	// StatusNotFound - 404: 资源不存在.
	StatusNotFound = 404
	// StatusConflict - 409: 资源状态冲突.
	StatusConflict = 409
	// StatusTooManyRequests - 429: 请求过多.
	StatusTooManyRequests = 429
	// StatusInternalServerError - 500: 服务器内部错误.
	StatusInternalServerError = 500
	// StatusServiceUnavailable - 503: 服务不可用.
	StatusServiceUnavailable = 503
)

// 通用错误码 (100xxx).
const (
	// ErrSuccess - 200: 成功.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: 未知错误.
	ErrUnknown
	// ErrBind - 400: 请求参数绑定错误.
	ErrBind
	// ErrValidation - 400: 请求参数验证错误.
	ErrValidation
	// ErrTooManyRequests - 429: 请求频率过高.
	ErrTooManyRequests
)

// 挂断相关错误码 (104xxx).
const (
	// ErrChannelNotFound - 404: 找不到对端通道.
	ErrChannelNotFound int = iota + 104000
	// ErrCallRecordNotFound - 404: 通道已挂断但通话记录不存在.
	ErrCallRecordNotFound
	// ErrCommandTimeout - 500: 等待 AMI 响应超时.
	ErrCommandTimeout
	// ErrUpstreamAction - 500: Asterisk 拒绝了动作.
	ErrUpstreamAction
	// ErrTooManyCommands - 429: 挂断请求达到上限.
	ErrTooManyCommands
	// ErrAMIDisconnected - 500: AMI 未连接.
	ErrAMIDisconnected
	// ErrServiceClosing - 500: 服务正在关闭.
	ErrServiceClosing
)

// 数据库相关错误码 (105xxx).
const (
	// ErrDatabase - 500: 数据库错误.
	ErrDatabase int = iota + 105000
	// ErrRecordNotFound - 404: 记录不存在.
	ErrRecordNotFound
)

// 对账相关错误码 (106xxx).
const (
	// ErrReconcileInProgress - 409: 对账任务正在执行.
	ErrReconcileInProgress int = iota + 106000
	// ErrReconcileFailed - 500: 对账失败.
	ErrReconcileFailed
)

// 连接相关错误码 (109xxx).
const (
	// ErrConnectionFailed - 503: 依赖服务连接失败.
	ErrConnectionFailed int = iota + 109000
)

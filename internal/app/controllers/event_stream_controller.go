package controllers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ura-call-bridge/internal/domain/services"
	"ura-call-bridge/internal/domain/services/container"
	"ura-call-bridge/internal/error/code"
	"ura-call-bridge/internal/error/response"
	"ura-call-bridge/pkg/logger"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

// clientFrame 客户端发来的消息 {"event":"register","data":"<id>"}
type clientFrame struct {
	Event string       `json:"event"`
	Data  scalarString `json:"data"`
}

// EventStreamController 坐席端的事件推送连接
type EventStreamController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewEventStreamController 创建事件推送控制器
func NewEventStreamController(ctx *gin.Context, container *container.ServiceContainer) *EventStreamController {
	return &EventStreamController{
		Ctx:       ctx,
		Container: container,
	}
}

// HandleEventStreamFunc 返回一个处理 websocket 连接的Gin处理函数
func HandleEventStreamFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewEventStreamController(ctx, container)

		switch method {
		case "stream":
			controller.Stream()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

// Stream 升级为 websocket，客户端注册后接收通话事件
// @Summary      通话事件推送
// @Description  websocket 连接。发送 {"event":"register","data":"<坐席ID>"} 注册后接收 callerJoined、callerLeft、memberPaused、memberRemoved 事件
// @Tags         Events
// @Success      101  {string}  string  "Switching Protocols"
// @Router       /socket [get]
func (c *EventStreamController) Stream() {
	cfg := c.Container.Services().Config
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r, cfg.WSAllowedOrigins)
		},
	}

	conn, err := upgrader.Upgrade(c.Ctx.Writer, c.Ctx.Request, nil)
	if err != nil {
		logger.Warning("[Hub] websocket 升级失败 %s: %v", c.Ctx.ClientIP(), err)
		return
	}

	hub := c.Container.GetService("event_hub").(services.InterfaceEventHub)
	sub := hub.NewSubscriber()

	remote := conn.RemoteAddr().String()
	logger.Debug("[Hub] websocket 已连接: %s", remote)

	readDone := make(chan struct{})
	go c.readLoop(conn, hub, sub, readDone)

	// 先关闭连接并等读协程退出，之后不会再有迟到的注册
	defer func() {
		conn.Close()
		<-readDone
		hub.Unregister(sub)
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Ctx.Request.Context().Done():
			writeClose(conn, websocket.CloseGoingAway, "server shutting down")
			return
		case <-readDone:
			logger.Debug("[Hub] websocket 已断开: %s", remote)
			return
		case <-sub.Done():
			writeClose(conn, websocket.ClosePolicyViolation, "superseded by a newer connection")
			return
		case <-sub.Notify():
			for _, ev := range sub.Drain() {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(ev); err != nil {
					logger.Warning("[Hub] 推送到 %s 失败: %v", remote, err)
					return
				}
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				logger.Warning("[Hub] 向 %s 发送 ping 失败: %v", remote, err)
				return
			}
		}
	}
}

// readLoop 处理注册消息；读失败或超时时关闭 done
func (c *EventStreamController) readLoop(conn *websocket.Conn, hub services.InterfaceEventHub, sub *services.Subscriber, done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warning("[Hub] websocket 读取失败: %v", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var frame clientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			logger.Debug("[Hub] 忽略无法解析的消息: %s", payload)
			continue
		}
		switch frame.Event {
		case "register":
			clientID := strings.TrimSpace(string(frame.Data))
			if clientID == "" {
				logger.Warning("[Hub] 忽略空的注册 ID")
				continue
			}
			hub.Register(clientID, sub)
		default:
			logger.Debug("[Hub] 忽略未知消息: %s", frame.Event)
		}
	}
}

// originAllowed 未带 Origin 的客户端（非浏览器）始终允许
func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
			return true
		}
	}
	return false
}

func writeClose(conn *websocket.Conn, closeCode int, text string) {
	msg := websocket.FormatCloseMessage(closeCode, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

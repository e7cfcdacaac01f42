package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"ura-call-bridge/internal/domain/models"
	"ura-call-bridge/internal/infrastructure/config"
	"ura-call-bridge/pkg/logger"
)

// MQTTPublisher MQTT 发布端
type MQTTPublisher interface {
	Connect() error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

// InterfaceMQTTEventService defines the MQTT mirror interface
type InterfaceMQTTEventService interface {
	Run(ctx context.Context) error
	Published() int64
}

// MQTTEventService 把广播给坐席的领域事件同步发布到 MQTT，供大屏等订阅
type MQTTEventService struct {
	Config    *config.Config
	hub       InterfaceEventHub
	publisher MQTTPublisher
	published atomic.Int64
}

// NewMQTTEventService 使用 paho 客户端创建 MQTT 镜像服务
func NewMQTTEventService(cfg *config.Config, hub InterfaceEventHub) *MQTTEventService {
	return NewMQTTEventServiceWithPublisher(cfg, hub, &pahoPublisher{client: setupMQTTClient(cfg)})
}

// NewMQTTEventServiceWithPublisher 使用指定的发布端
func NewMQTTEventServiceWithPublisher(cfg *config.Config, hub InterfaceEventHub, publisher MQTTPublisher) *MQTTEventService {
	return &MQTTEventService{
		Config:    cfg,
		hub:       hub,
		publisher: publisher,
	}
}

// Run 连接 MQTT 并以订阅者身份接收广播，直到 ctx 结束
// 连接失败只记录日志，不影响其他组件
func (s *MQTTEventService) Run(ctx context.Context) error {
	if err := s.connect(ctx); err != nil {
		if ctx.Err() == nil {
			logger.Error("[MQTT] 连接失败，事件镜像已停用: %v", err)
		}
		return nil
	}
	defer s.publisher.Disconnect()

	sub := s.hub.NewSubscriber()
	s.hub.Attach(sub)
	defer s.hub.Unregister(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Notify():
			for _, ev := range sub.Drain() {
				s.publish(ev)
			}
		}
	}
}

// Published 已发布的事件数
func (s *MQTTEventService) Published() int64 {
	return s.published.Load()
}

func (s *MQTTEventService) connect(ctx context.Context) error {
	logger.Info("[MQTT] 正在连接到 %s...", s.Config.MQTTBrokerURL)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 16 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.publisher.Connect()
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(5),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warning("[MQTT] 连接失败: %v, 将在 %v 后重试", err, next)
		}),
	)
	if err != nil {
		return err
	}
	logger.Info("[MQTT] 成功连接到 %s", s.Config.MQTTBrokerURL)
	return nil
}

// publish 发布到 <前缀>/<事件名>
func (s *MQTTEventService) publish(ev models.CallEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Error("[MQTT] 序列化事件失败: %v", err)
		return
	}

	topic := strings.TrimSuffix(s.Config.MQTTTopicPrefix, "/") + "/" + string(ev.Event)
	if err := s.publisher.Publish(topic, byte(s.Config.MQTTQoS), s.Config.MQTTRetained, payload); err != nil {
		logger.Warning("[MQTT] 发布到 %s 失败: %v", topic, err)
		return
	}
	s.published.Add(1)
	logger.Debug("[MQTT] 已发布 %s 事件到主题: %s", ev.Event, topic)
}

// setupMQTTClient 设置MQTT客户端
func setupMQTTClient(cfg *config.Config) mqtt.Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBrokerURL)
	// 使用唯一的客户端ID，避免同一服务多实例冲突
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.MQTTClientID, uuid.New().String()[:8]))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	if strings.HasPrefix(cfg.MQTTBrokerURL, "ssl://") || strings.HasPrefix(cfg.MQTTBrokerURL, "tls://") || cfg.MQTTSSLEnabled {
		logger.Info("[MQTT] 使用TLS连接")
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Warning("[MQTT] 连接丢失: %v", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		logger.Info("[MQTT] 正在尝试重连...")
	})

	return mqtt.NewClient(opts)
}

// pahoPublisher 基于 paho 客户端的发布端
type pahoPublisher struct {
	client mqtt.Client
}

func (p *pahoPublisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("连接超时")
	}
	return token.Error()
}

func (p *pahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	// 设置超时时间，避免无限等待
	if !token.WaitTimeout(3 * time.Second) {
		return errors.New("发布消息超时")
	}
	return token.Error()
}

func (p *pahoPublisher) Disconnect() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

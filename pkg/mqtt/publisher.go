// Package mqtt 领域事件发布。
// 冲突检测结果、排班状态变更与工作量快照以 JSON 发布到 MQTT，供审批流等外部系统消费。
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/hgj313/hr2-sub000/config"
)

// Publisher 事件发布接口
type Publisher interface {
	Publish(topic string, event any) error
	Close()
}

// Client MQTT 客户端封装
type Client struct {
	client paho.Client
	prefix string
	qos    byte
	logger *zap.Logger
}

// NewClient 连接 Broker，失败时返回错误由调用方决定是否降级
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT 连接断开", zap.Error(err))
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("连接 MQTT Broker 失败: %w", token.Error())
	}

	logger.Info("MQTT 连接成功", zap.String("broker", cfg.Broker))

	return &Client{
		client: client,
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:    1,
		logger: logger,
	}, nil
}

// Publish 序列化事件并发布到 <prefix>/<topic>
func (c *Client) Publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	full := Topic(c.prefix, topic)
	token := c.client.Publish(full, c.qos, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("发布事件超时: %s", full)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("发布事件到 %s 失败: %w", full, err)
	}
	return nil
}

// Close 断开连接
func (c *Client) Close() {
	c.client.Disconnect(250)
}

// Topic 拼接主题前缀
func Topic(prefix, topic string) string {
	topic = strings.TrimPrefix(topic, "/")
	if prefix == "" {
		return topic
	}
	return prefix + "/" + topic
}

// ── 未启用 MQTT 时的空实现 ──

// NopPublisher 丢弃所有事件
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) error { return nil }

func (NopPublisher) Close() {}

// ── 事件主题 ──

// ScheduleConflictsTopic 冲突检测完成
func ScheduleConflictsTopic(scheduleID string) string {
	return "schedules/" + scheduleID + "/conflicts"
}

// ScheduleStatusTopic 排班状态变更
func ScheduleStatusTopic(scheduleID string) string {
	return "schedules/" + scheduleID + "/status"
}

// ResourceWorkloadTopic 工作量快照
func ResourceWorkloadTopic(resourceID string) string {
	return "resources/" + resourceID + "/workload"
}

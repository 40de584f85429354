/*
 * @module service/event/event_service
 * @description 批处理事件发布：导入、重算、重训完成后发布 PipelineEvent 到日志或 Kafka
 * @architecture 事件驱动架构 - 基础设施层
 * @documentReference DESIGN.md
 * @stateFlow 批处理完成 -> 构造事件 -> 序列化 -> 日志/Kafka
 * @rules 发布失败只记录日志，由调用方决定是否忽略；消息键为批次ID
 * @dependencies github.com/segmentio/kafka-go, github.com/google/uuid
 * @refs service/pipeline/pipeline.go
 */

package event

import (
	"clientrisk-service/service/config"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EventType 批处理事件类型
type EventType string

const (
	EventImportCompleted  EventType = "import.completed"
	EventRefreshCompleted EventType = "refresh.completed"
	EventRetrainCompleted EventType = "retrain.completed"
)

// PipelineEvent 批处理完成事件
type PipelineEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	BatchID    string    `json:"batch_id,omitempty"`
	Committed  int       `json:"committed,omitempty"`
	Dropped    int       `json:"dropped,omitempty"`
	Scored     int       `json:"scored,omitempty"`
	Trained    bool      `json:"trained"`
	Warning    string    `json:"warning,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewPipelineEvent 创建带ID和时间戳的事件
func NewPipelineEvent(eventType EventType) PipelineEvent {
	return PipelineEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, evt PipelineEvent) error
	Close() error
}

// NewPublisher 根据配置选择发布器；未启用 Kafka 时输出到日志
func NewPublisher(cfg config.KafkaConfig) Publisher {
	if cfg.Enabled && len(cfg.Brokers) > 0 {
		slog.Info("事件发布使用Kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	}
	return LogPublisher{}
}

// LogPublisher 将事件写入结构化日志
type LogPublisher struct{}

// Publish 记录事件
func (LogPublisher) Publish(_ context.Context, evt PipelineEvent) error {
	slog.Info("批处理事件",
		"event_id", evt.ID,
		"type", evt.Type,
		"batch_id", evt.BatchID,
		"committed", evt.Committed,
		"dropped", evt.Dropped,
		"scored", evt.Scored,
		"trained", evt.Trained,
		"duration_ms", evt.DurationMs)
	return nil
}

// Close 无需释放资源
func (LogPublisher) Close() error { return nil }

// messageWriter kafka.Writer 的最小接口
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 将事件以 JSON 发布到 Kafka 主题
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher 创建Kafka发布器
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
		timeout: 10 * time.Second,
	}
}

// Publish 发送事件
func (p *KafkaPublisher) Publish(ctx context.Context, evt PipelineEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	key := evt.BatchID
	if key == "" {
		key = evt.ID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("发送事件失败: %w", err)
	}
	slog.Debug("事件已发送到Kafka", "event_id", evt.ID, "type", evt.Type)
	return nil
}

// Close 关闭生产者
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

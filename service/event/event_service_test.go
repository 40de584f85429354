package event

import (
	"clientrisk-service/service/config"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewPublisher(t *testing.T) {
	_, ok := NewPublisher(config.KafkaConfig{}).(LogPublisher)
	assert.True(t, ok)

	_, ok = NewPublisher(config.KafkaConfig{Enabled: true}).(LogPublisher)
	assert.True(t, ok, "没有 broker 时回退到日志")

	p, ok := NewPublisher(config.KafkaConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "clientrisk.events"}).(*KafkaPublisher)
	require.True(t, ok)
	assert.NoError(t, p.Close())
}

func TestKafkaPublisher(t *testing.T) {
	writer := &recordingWriter{}
	p := &KafkaPublisher{writer: writer, timeout: time.Second}

	evt := NewPipelineEvent(EventImportCompleted)
	evt.BatchID = "batch-1"
	evt.Committed = 42
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "batch-1", string(msg.Key))
	assert.Equal(t, "import.completed", string(msg.Headers[0].Value))

	var decoded PipelineEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, 42, decoded.Committed)

	// 无批次ID时用事件ID作为键
	refresh := NewPipelineEvent(EventRefreshCompleted)
	require.NoError(t, p.Publish(context.Background(), refresh))
	assert.Equal(t, refresh.ID, string(writer.messages[1].Key))

	writer.err = errors.New("broker 不可用")
	assert.Error(t, p.Publish(context.Background(), refresh))

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestLogPublisher(t *testing.T) {
	p := LogPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewPipelineEvent(EventRetrainCompleted)))
	assert.NoError(t, p.Close())
}

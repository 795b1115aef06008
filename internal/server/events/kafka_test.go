package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, logger: logging.Nop()}

	p.Publish(context.Background(), ChangeEvent{
		LocationID: "loc-1",
		UserID:     "u-1",
		ClientID:   "c-1",
		Timestamp:  42,
		Applied:    []protocol.EntityRef{{Family: domain.FamilyTickets, ID: "t-1"}},
	})

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "loc-1", string(w.msgs[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, float64(42), got["timestamp"])
	assert.Equal(t, "c-1", got["clientId"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublish_WriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, logger: logging.Nop()}

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), ChangeEvent{LocationID: "loc-1"})
	})
	assert.Len(t, w.msgs, 1)
}

func TestNewKafkaPublisher_NoBrokersIsNoop(t *testing.T) {
	p := NewKafkaPublisher(nil, DefaultTopic, logging.Nop())
	assert.Nil(t, p.writer)
	p.Publish(context.Background(), ChangeEvent{LocationID: "loc-1"})
	assert.NoError(t, p.Close())

	p = NewKafkaPublisher([]string{"127.0.0.1:9092"}, DefaultTopic, logging.Nop())
	assert.NotNil(t, p.writer)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Nil(t, ParseBrokers(""))
}

// Package events publishes committed sync changes to Kafka so other
// services can follow a location's stream. Publishing is best effort and
// never fails a push.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/donets/jtrack/internal/logging"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "jtrack.sync.changes"

// ChangeEvent describes one committed push.
type ChangeEvent struct {
	LocationID string               `json:"locationId"`
	UserID     string               `json:"userId"`
	ClientID   string               `json:"clientId"`
	Timestamp  int64                `json:"timestamp"`
	Applied    []protocol.EntityRef `json:"applied"`
}

type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent)
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by location id, which keeps the
// events of one location in one partition and therefore in commit order.
type KafkaPublisher struct {
	writer messageWriter
	logger logging.Logger
}

// NewKafkaPublisher returns a publisher that drops every event when
// brokers or topic are empty.
func NewKafkaPublisher(brokers []string, topic string, logger logging.Logger) *KafkaPublisher {
	if len(brokers) == 0 || topic == "" {
		return &KafkaPublisher{logger: logger}
	}
	return &KafkaPublisher{
		logger: logger,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev ChangeEvent) {
	if p.writer == nil {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error(ctx, "marshal change event", "error", err)
		return
	}
	msg := kafka.Message{Key: []byte(ev.LocationID), Value: body}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn(ctx, "publish change event", "location", ev.LocationID, "error", err)
	}
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers splits "host1:9092,host2:9092" into addresses.
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// publishBatchTimeout bounds how long WriteMessages waits to fill a batch.
// Events are written one at a time.
const publishBatchTimeout = 10 * time.Millisecond

// Publisher writes one event to the broker.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
	Close() error
}

// KafkaPublisher publishes events to Kafka, routing each event type to a topic.
type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
	defaultTopic string
}

// NewKafkaPublisher creates a publisher. Event types missing from
// topicByEvent go to defaultTopic.
func NewKafkaPublisher(brokers []string, defaultTopic string, topicByEvent map[string]string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           publishBatchTimeout,
		},
		topicByEvent: topicByEvent,
		defaultTopic: defaultTopic,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	topic := p.defaultTopic
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		topic = mapped
	}
	if topic == "" {
		topic = eventType
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     []byte(partitionKey),
		Value:   payload,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

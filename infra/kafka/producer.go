// Package kafka publishes exchange events to a Kafka topic with kafka-go.
package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"

	"tokex/infra/outbox"
)

// Header names set on every message.
const (
	HeaderType = "tokex-event-type"
	HeaderSeq  = "tokex-seq"
)

// Producer writes outbox events synchronously, hashing keys to partitions.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
			WriteTimeout: 5 * time.Second,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish sends one encoded event. The envelope is decoded only to tag
// the message; the value goes out unchanged.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	msg, err := message(key, value)
	if err != nil {
		return err
	}
	return errors.Wrapf(p.writer.WriteMessages(ctx, msg), "write to %s", p.writer.Topic)
}

func message(key, value []byte) (kafka.Message, error) {
	ev, err := outbox.DecodeEvent(value)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderType, Value: []byte(ev.Type)},
			{Key: HeaderSeq, Value: []byte(strconv.FormatUint(ev.Seq, 10))},
		},
	}, nil
}

func (p *Producer) Topic() string {
	return p.writer.Topic
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

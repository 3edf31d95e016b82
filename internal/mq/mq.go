package mq

import (
	"context"
	"errors"

	"github.com/cadforge/meshgen/internal/config"
)

var (
	ErrTopicNotExists = errors.New("topic does not exist")
	ErrQueueFull      = errors.New("queue is full")
	ErrQueueClosed    = errors.New("queue closed")
	ErrTopicClosed    = errors.New("topic closed")
)

// Message pairs a payload with its acknowledgement. Ack is a no-op for the
// in-memory queue.
type Message struct {
	Data []byte

	acker func() error
}

func (m *Message) Ack() error {
	if m.acker == nil {
		return nil
	}
	return m.acker()
}

type MQ interface {
	Publish(ctx context.Context, topic string, message []byte) error
	Receive(ctx context.Context, topic string) (*Message, error)
	CloseTopic(topic string) error
	Close() error
}

func NewMQ(cfg *config.Config) (MQ, error) {
	if cfg != nil && cfg.Pulsar != nil {
		return NewPulsarMQ(cfg.Pulsar)
	}
	return NewInMemoryMQ(16)
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/jrjocham/apihub/internal/model"
)

// Producer publishes command envelopes keyed by sender so one sender's
// commands stay ordered on a partition.
type Producer struct {
	w *kafka.Writer
}

func NewProducerFromConfig(c Config) *Producer {
	wt := c.WriteTimeout
	if wt <= 0 {
		wt = 5 * time.Second
	}

	return &Producer{w: &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           wt,
		AllowAutoTopicCreation: true,
	}}
}

func (p *Producer) PublishCommand(ctx context.Context, env model.CommandEnvelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	if err := p.w.WriteMessages(ctx, kafka.Message{Key: []byte(env.From), Value: b}); err != nil {
		return fmt.Errorf("publish command %s: %w", env.ID, err)
	}

	return nil
}

func (p *Producer) Close() error { return p.w.Close() }

// Ping dials the brokers in order and returns nil on the first that answers.
func Ping(ctx context.Context, brokers []string) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	var last error
	for _, b := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err != nil {
			last = err
			continue
		}
		_, err = conn.Brokers()
		_ = conn.Close()
		if err == nil {
			return nil
		}
		last = err
	}

	return fmt.Errorf("kafka unreachable: %w", last)
}

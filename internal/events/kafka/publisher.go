package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fastprodman/custbalance/internal/config"
	"github.com/fastprodman/custbalance/internal/events"
	"github.com/segmentio/kafka-go"
)

var _ events.Publisher = (*Publisher)(nil)

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher writes to cfg.Topic. Messages are keyed by account id and
// hash-balanced, so events of one account keep their order.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, ev events.BalanceChanged) error {
	msg, err := message(ev)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("write balance changed event: %w", err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(ev events.BalanceChanged) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal balance changed event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(strconv.FormatUint(ev.AccountID, 10)),
		Value: data,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("balance.changed")},
		},
	}, nil
}

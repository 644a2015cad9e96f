// Package kafka publishes sale events for external consumers (notification
// dispatch, seller dashboards). The engine only ever writes; nothing here is
// read back.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/For-Hives/beswib-sub000/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

const DefaultTopic = "bib.sold"

type Publisher struct {
	writer *kafkago.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

// PublishSale emits one sale event, keyed by listing id so all events for a
// listing stay ordered within a partition.
func (p *Publisher) PublishSale(ctx context.Context, ev domain.SaleEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(ev.ListingID),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("write sale event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishSale(context.Context, domain.SaleEvent) error {
	return nil
}

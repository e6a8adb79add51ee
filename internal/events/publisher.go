// Package events forwards committed carts to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/shoes_cart/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTopic   = "cart-updates"
	EventTypeCart  = "cart.updated"
	defaultBacklog = 64
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type CartUpdated struct {
	EventID   string          `json:"event_id"`
	CartKey   string          `json:"cart_key"`
	Items     domain.Cart     `json:"items"`
	Size      int             `json:"size"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// Publisher is a cart subscriber. Handle never blocks the cart store: events are
// queued and written by Run; when the queue is full the event is dropped.
type Publisher struct {
	writer       MessageWriter
	cartKey      string
	queue        chan CartUpdated
	timeout      time.Duration
	drainTimeout time.Duration // budget for flushing the queue once Run's ctx is done
	log          *logrus.Entry
}

func NewPublisher(writer MessageWriter, cartKey string, log *logrus.Entry) *Publisher {
	return &Publisher{
		writer:       writer,
		cartKey:      cartKey,
		queue:        make(chan CartUpdated, defaultBacklog),
		timeout:      5 * time.Second,
		drainTimeout: 10 * time.Second,
		log:          log,
	}
}

func (p *Publisher) Handle(cart domain.Cart) {
	event := CartUpdated{
		EventID:   uuid.NewString(),
		CartKey:   p.cartKey,
		Items:     cart,
		Size:      cart.Size(),
		Total:     cart.Total(),
		UpdatedAt: time.Now().UTC(),
	}

	select {
	case p.queue <- event:
	default:
		p.log.WithField("event_id", event.EventID).Warn("event queue full, dropping cart update")
	}
}

// Run writes queued events until ctx is done, then flushes what is still queued
// within drainTimeout before returning. A write already started is not aborted by
// cancellation; publish bounds it with p.timeout.
func (p *Publisher) Run(ctx context.Context) {
	for ctx.Err() == nil {
		select {
		case event := <-p.queue:
			p.write(context.WithoutCancel(ctx), event)
		case <-ctx.Done():
		}
	}
	p.drain(ctx)
}

func (p *Publisher) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-p.queue:
			if ctx.Err() != nil {
				p.log.WithField("event_id", event.EventID).Warn("shutdown deadline passed, dropping cart update")
				continue
			}
			p.write(ctx, event)
		default:
			return
		}
	}
}

func (p *Publisher) write(ctx context.Context, event CartUpdated) {
	if err := p.publish(ctx, event); err != nil {
		p.log.WithError(err).WithField("event_id", event.EventID).Error("failed to publish cart update")
	}
}

func (p *Publisher) Close() {
	if err := p.writer.Close(); err != nil {
		p.log.WithError(err).Error("error closing writer")
	}
}

func (p *Publisher) publish(ctx context.Context, event CartUpdated) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.CartKey), // one partition per cart keeps updates ordered
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeCart)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

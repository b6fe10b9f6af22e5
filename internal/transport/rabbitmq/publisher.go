package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/asquebay/blueflow/internal/model"
)

// Channel: подмножество *amqp.Channel, которое нужно издателю
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher рассылает события по заказам через fanout-обменник
// все кухонные экраны и уведомлялки получают копию каждого события
type Publisher struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
	mu       sync.Mutex
}

// NewPublisher подключается к брокеру и объявляет durable fanout-обменник
func NewPublisher(url, exchange string) (*Publisher, error) {
	const op = "transport.rabbitmq.NewPublisher"

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: failed to open channel: %w", op, err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: failed to declare exchange %q: %w", op, exchange, err)
	}

	p := NewPublisherWithChannel(ch, exchange)
	p.conn = conn
	return p, nil
}

// NewPublisherWithChannel собирает издателя поверх готового канала
func NewPublisherWithChannel(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish отправляет событие как persistent JSON-сообщение
func (p *Publisher) Publish(ctx context.Context, event model.OrderEvent) error {
	const op = "transport.rabbitmq.Publisher.Publish"

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID.String(),
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, p.exchange, "", false, false, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает канал и соединение
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

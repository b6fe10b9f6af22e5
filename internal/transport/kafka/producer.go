package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/asquebay/blueflow/internal/model"
)

// MessageWriter: подмножество kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer публикует события по заказам в топик, ключ сообщения: номер заказа
type Producer struct {
	writer MessageWriter
}

// NewProducer создаёт продюсер с балансировкой LeastBytes
func NewProducer(brokers []string, topic string) *Producer {
	return NewProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	})
}

// NewProducerWithWriter собирает продюсер поверх готового writer-а
func NewProducerWithWriter(w MessageWriter) *Producer {
	return &Producer{writer: w}
}

// Publish сериализует событие в JSON и отправляет его
func (p *Producer) Publish(ctx context.Context, event model.OrderEvent) error {
	const op = "transport.kafka.Producer.Publish"

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal event: %w", op, err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает writer
func (p *Producer) Close() error {
	return p.writer.Close()
}

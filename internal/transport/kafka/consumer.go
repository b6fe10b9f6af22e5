package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/asquebay/blueflow/internal/model"
	"github.com/asquebay/blueflow/internal/queue"

	"github.com/segmentio/kafka-go"
)

// OrderPlacer это интерфейс, который абстрагирует консьюмер
// от конкретной реализации сервисного слоя
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.Order, error)
}

// MessageReader: подмножество kafka.Reader, которое нужно консьюмеру
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	defaultRetryDelay = 500 * time.Millisecond
	defaultMaxDelay   = 30 * time.Second
)

// Consumer читает заказы от киосков из топика и передаёт их в сервис
// ридер с GroupID не возвращается к неподтверждённому сообщению, поэтому сбой
// хранилища повторяется на месте, пока сообщение не обработается или не отменят контекст
type Consumer struct {
	reader  MessageReader
	service OrderPlacer
	log     *slog.Logger

	retryDelay time.Duration
	maxDelay   time.Duration
}

// NewConsumer создает новый экземпляр консьюмера
func NewConsumer(brokers []string, topic, groupID string, service OrderPlacer, log *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
	return NewConsumerWithReader(reader, service, log)
}

// NewConsumerWithReader собирает консьюмер поверх готового ридера
func NewConsumerWithReader(reader MessageReader, service OrderPlacer, log *slog.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		service:    service,
		log:        log.With(slog.String("component", "kafka_consumer")),
		retryDelay: defaultRetryDelay,
		maxDelay:   defaultMaxDelay,
	}
}

// Run запускает цикл чтения сообщений из Kafka
// эта функция блокирующая, поэтому она запускается в отдельной горутине
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("Kafka consumer started")

	for {
		// FetchMessage блокирует до тех пор, пока не придет новое сообщение или не возникнет ошибка
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			// если контекст был отменен во время ожидания, это нормальное завершение
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				c.log.Info("Context cancelled, stopping consumer.")
				return
			}
			// если ридер был закрыт, тоже выходим
			if errors.Is(err, io.EOF) {
				c.log.Info("Kafka reader closed")
				return
			}
			c.log.Error("failed to fetch message", slog.String("error", err.Error()))
			continue // пробуем снова
		}

		c.log.Debug("received message", slog.String("topic", msg.Topic), slog.Int("partition", msg.Partition), slog.Int64("offset", msg.Offset))

		// 1. Обрабатываем, при сбое повторяем это же сообщение
		if !c.process(ctx, msg) {
			c.log.Info("Context cancelled, message left uncommitted", slog.Int64("offset", msg.Offset))
			return
		}

		// 2. Всё прошло: фиксируем offset
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("failed to commit message", slog.String("error", err.Error()))
		}
	}
}

// process вызывает handleMessage, пока тот не вернёт nil; false означает отмену контекста
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	delay := c.retryDelay
	for {
		err := c.handleMessage(ctx, msg)
		if err == nil {
			return true
		}
		c.log.Error("failed to handle message, retrying",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay = min(delay*2, c.maxDelay)
	}
}

// handleMessage парсит и обрабатывает одно сообщение
// ошибка возвращается только тогда, когда обработку имеет смысл повторить
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var req model.OrderRequest

	if err := json.Unmarshal(msg.Value, &req); err != nil {
		// сообщение невалидно, перечитывать его бессмысленно
		c.log.Warn("failed to unmarshal message, skipping", slog.String("error", err.Error()))
		return nil
	}

	order, err := c.service.PlaceOrder(ctx, req)
	switch {
	case err == nil:
		c.log.Info("order placed from kafka", slog.Int64("order_id", order.ID), slog.String("key", string(msg.Key)))
		return nil
	case errors.Is(err, queue.ErrEmptyOrder),
		errors.Is(err, queue.ErrInvalidRequest),
		errors.Is(err, queue.ErrKitchenFull):
		// отказ это ответ, а не сбой: киоск увидит его по отсутствию события order.created
		c.log.Warn("order request rejected, skipping",
			slog.String("reason", err.Error()),
			slog.String("key", string(msg.Key)),
		)
		return nil
	default:
		return err
	}
}

// Close: graceful shutdown консьюмера
func (c *Consumer) Close() error {
	c.log.Info("Closing kafka consumer")
	return c.reader.Close()
}

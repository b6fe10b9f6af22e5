package service

import (
	"context"

	"github.com/asquebay/blueflow/internal/model"
)

// OrderStore определяет контракт для хранилища заказов
// реализации: repository/memory, repository/file, repository/postgres
type OrderStore interface {
	List(ctx context.Context) ([]model.Order, error)
	Append(ctx context.Context, order model.Order) error
	// Update перезаписывает всю коллекцию результатом fn; ошибка fn отменяет запись
	Update(ctx context.Context, fn func([]model.Order) ([]model.Order, error)) error
	NextID(ctx context.Context) (int64, error)
}

// EventPublisher определяет контракт для публикации событий по заказам (kafka или rabbitmq)
type EventPublisher interface {
	Publish(ctx context.Context, event model.OrderEvent) error
}

// NopPublisher ничего не публикует, используется при events.backend: none
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.OrderEvent) error { return nil }

package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType: тип события жизненного цикла заказа
type EventType string

const (
	EventOrderCreated  EventType = "order.created"
	EventOrderReady    EventType = "order.ready"
	EventOrderServed   EventType = "order.served"
	EventOrdersCleared EventType = "orders.cleared"
)

// OrderEvent публикуется в kafka или rabbitmq после каждой мутации хранилища
type OrderEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Type       EventType `json:"type"`
	OrderID    int64     `json:"order_id,omitempty"`
	Status     Status    `json:"status,omitempty"`
	ItemCount  int       `json:"item_count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent создаёт событие без привязки к заказу
func NewEvent(t EventType, now time.Time) OrderEvent {
	return OrderEvent{
		EventID:    uuid.New(),
		Type:       t,
		OccurredAt: now.UTC(),
	}
}

// NewOrderEvent создаёт событие по заказу со свежим идентификатором
func NewOrderEvent(t EventType, o Order, now time.Time) OrderEvent {
	e := NewEvent(t, now)
	e.OrderID = o.ID
	e.Status = o.Status
	e.ItemCount = o.ItemCount
	return e
}

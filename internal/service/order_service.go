package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/asquebay/blueflow/internal/kitchen"
	"github.com/asquebay/blueflow/internal/model"
	"github.com/asquebay/blueflow/internal/queue"
)

// TrafficLevel: сценарий для кнопок разработчика
type TrafficLevel string

const (
	TrafficWarning  TrafficLevel = "warning"
	TrafficCritical TrafficLevel = "critical"
)

// ErrUnknownTrafficLevel: неизвестный сценарий симуляции
var ErrUnknownTrafficLevel = errors.New("unknown traffic level")

// OrderService инкапсулирует бизнес-логику работы с заказами
type OrderService struct {
	store  OrderStore
	events EventPublisher
	rules  queue.Rules
	mode   queue.Mode
	log    *slog.Logger
	now    func() time.Time

	// admitMu сериализует проверку загрузки и добавление заказа
	admitMu sync.Mutex
}

// NewOrderService создаёт новый экземпляр сервиса заказов
// он принимает интерфейсы, а не конкретные типы, для гибкости и тестируемости
func NewOrderService(store OrderStore, events EventPublisher, rules queue.Rules, mode queue.Mode, log *slog.Logger) *OrderService {
	if events == nil {
		events = NopPublisher{}
	}
	return &OrderService{
		store:  store,
		events: events,
		rules:  rules,
		mode:   mode,
		log:    log,
		now:    time.Now,
	}
}

// Menu возвращает позиции меню
func (s *OrderService) Menu() []queue.MenuItem {
	return s.rules.Menu
}

// Mode возвращает схему продвижения заказов
func (s *OrderService) Mode() queue.Mode {
	return s.mode
}

// Metrics пересчитывает загрузку кухни по текущему содержимому хранилища
func (s *OrderService) Metrics(ctx context.Context) (queue.Metrics, error) {
	const op = "service.OrderService.Metrics"

	orders, err := s.store.List(ctx)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.String("error", err.Error()))
		return queue.Metrics{}, fmt.Errorf("%s: %w", op, err)
	}
	return queue.ComputeMetrics(orders, s.rules.Params), nil
}

// ListOrders возвращает заказы с заданным статусом, пустой статус: все заказы
func (s *OrderService) ListOrders(ctx context.Context, status model.Status) ([]model.Order, error) {
	const op = "service.OrderService.ListOrders"

	orders, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return model.Filter(orders, status), nil
}

// Summary собирает сводку по позициям для кухни
func (s *OrderService) Summary(ctx context.Context) (kitchen.Summary, error) {
	const op = "service.OrderService.Summary"

	orders, err := s.store.List(ctx)
	if err != nil {
		return kitchen.Summary{}, fmt.Errorf("%s: %w", op, err)
	}

	summary := kitchen.Summarize(orders, s.rules.Menu)
	if summary.Skipped > 0 {
		s.log.Debug("some orders skipped in summary", slog.String("op", op), slog.Int("skipped", summary.Skipped))
	}
	return summary, nil
}

// PlaceOrder принимает заказ студента, если кухня не перегружена
// отказы (ErrEmptyOrder, ErrKitchenFull, ErrInvalidRequest) не меняют хранилище
func (s *OrderService) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.Order, error) {
	const op = "service.OrderService.PlaceOrder"
	log := s.log.With(slog.String("op", op))

	s.admitMu.Lock()
	defer s.admitMu.Unlock()

	orders, err := s.store.List(ctx)
	if err != nil {
		log.Error("failed to list orders", slog.String("error", err.Error()))
		return model.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	// 1. Решение о приёме по снимку очереди
	order, err := s.rules.CreateOrder(orders, req, 0, s.now())
	if err != nil {
		log.Info("order rejected", slog.String("reason", err.Error()), slog.Int("items", req.TotalItems()))
		return model.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	// 2. Номер выдаём только принятым заказам
	order.ID, err = s.store.NextID(ctx)
	if err != nil {
		log.Error("failed to allocate order id", slog.String("error", err.Error()))
		return model.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.Append(ctx, order); err != nil {
		log.Error("failed to save order", slog.String("error", err.Error()))
		return model.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("order placed",
		slog.Int64("order_id", order.ID),
		slog.Int("items", order.ItemCount),
		slog.String("type", string(order.Type)),
	)
	s.publish(ctx, model.NewOrderEvent(model.EventOrderCreated, order, s.now()))

	return order, nil
}

// MarkReady отмечает заказ готовым: в одноэтапной схеме он сразу удаляется,
// в двухэтапной переходит в Ready и ждёт выдачи
func (s *OrderService) MarkReady(ctx context.Context, id int64) (model.Order, error) {
	const op = "service.OrderService.MarkReady"

	var advanced model.Order
	err := s.store.Update(ctx, func(orders []model.Order) ([]model.Order, error) {
		next, order, err := queue.MarkReady(orders, id, s.mode)
		advanced = order
		return next, err
	})
	if err != nil {
		return model.Order{}, s.advanceError(op, id, err)
	}

	s.log.Info("order ready", slog.String("op", op), slog.Int64("order_id", id))
	s.publish(ctx, model.NewOrderEvent(model.EventOrderReady, advanced, s.now()))

	return advanced, nil
}

// Serve убирает выданный заказ (двухэтапная схема)
func (s *OrderService) Serve(ctx context.Context, id int64) (model.Order, error) {
	const op = "service.OrderService.Serve"

	var served model.Order
	err := s.store.Update(ctx, func(orders []model.Order) ([]model.Order, error) {
		next, order, err := queue.Serve(orders, id)
		served = order
		return next, err
	})
	if err != nil {
		return model.Order{}, s.advanceError(op, id, err)
	}

	s.log.Info("order served", slog.String("op", op), slog.Int64("order_id", id))
	s.publish(ctx, model.NewOrderEvent(model.EventOrderServed, served, s.now()))

	return served, nil
}

// ClearOrders удаляет все заказы
func (s *OrderService) ClearOrders(ctx context.Context) error {
	const op = "service.OrderService.ClearOrders"

	err := s.store.Update(ctx, func([]model.Order) ([]model.Order, error) {
		return []model.Order{}, nil
	})
	if err != nil {
		s.log.Error("failed to clear orders", slog.String("op", op), slog.String("error", err.Error()))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Warn("all orders cleared", slog.String("op", op))
	s.publish(ctx, model.NewEvent(model.EventOrdersCleared, s.now()))
	return nil
}

// SimulateTraffic добавляет пачку фиктивных заказов по 5 позиций в обход проверки загрузки:
// warning: 4 заказа (около 20 позиций), critical: 10 заказов (около 50 позиций)
func (s *OrderService) SimulateTraffic(ctx context.Context, level TrafficLevel) (int, error) {
	const op = "service.OrderService.SimulateTraffic"

	var (
		count int
		label string
	)
	switch level {
	case TrafficWarning:
		count, label = 4, "Simulated Busy Crowd"
	case TrafficCritical:
		count, label = 10, "Simulated Bulk Rush"
	default:
		return 0, fmt.Errorf("%s: %w: %q", op, ErrUnknownTrafficLevel, level)
	}

	now := s.now()
	fakes := make([]model.Order, 0, count)
	for range count {
		id, err := s.store.NextID(ctx)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", op, err)
		}
		fakes = append(fakes, model.Order{
			ID:        id,
			Items:     label,
			ItemCount: 5,
			Type:      model.DineIn,
			Time:      now.Format(model.TimeLayout),
			CreatedAt: now,
			Status:    model.StatusPending,
		})
	}

	s.admitMu.Lock()
	defer s.admitMu.Unlock()

	err := s.store.Update(ctx, func(orders []model.Order) ([]model.Order, error) {
		return append(orders, fakes...), nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("traffic simulated", slog.String("op", op), slog.String("level", string(level)), slog.Int("orders", count))
	for _, o := range fakes {
		s.publish(ctx, model.NewOrderEvent(model.EventOrderCreated, o, now))
	}
	return count, nil
}

// не найденный заказ: обычная ситуация (кто-то уже нажал "готово"), пишем на уровне info
func (s *OrderService) advanceError(op string, id int64, err error) error {
	log := s.log.With(slog.String("op", op), slog.Int64("order_id", id))
	switch {
	case errors.Is(err, queue.ErrOrderNotFound), errors.Is(err, queue.ErrInvalidTransition):
		log.Info("order not advanced", slog.String("reason", err.Error()))
	default:
		log.Error("failed to advance order", slog.String("error", err.Error()))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ошибка публикации не должна ломать операцию пользователя
func (s *OrderService) publish(ctx context.Context, event model.OrderEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Error("failed to publish order event",
			slog.String("type", string(event.Type)),
			slog.Int64("order_id", event.OrderID),
			slog.String("error", err.Error()),
		)
	}
}

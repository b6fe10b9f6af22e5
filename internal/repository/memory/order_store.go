package memory

import (
	"context"
	"sync"

	"github.com/asquebay/blueflow/internal/model"
)

// FirstID: первый номер заказа, как у прототипа
const FirstID int64 = 100

// OrderStore: хранилище заказов в памяти процесса, очищается при рестарте
// коллекция неупорядоченная и без индекса: поэтому любой поиск идёт полным проходом
type OrderStore struct {
	mu     sync.Mutex
	orders []model.Order
	nextID int64
}

// NewOrderStore создаёт пустое хранилище
func NewOrderStore() *OrderStore {
	return &OrderStore{nextID: FirstID}
}

// List возвращает копию всех заказов
func (s *OrderStore) List(_ context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Clone(s.orders), nil
}

// Append добавляет заказ в конец коллекции
func (s *OrderStore) Append(_ context.Context, order model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, model.Clone([]model.Order{order})...)
	return nil
}

// Update применяет fn ко всей коллекции и целиком заменяет её результатом
// если fn вернула ошибку, коллекция не меняется
func (s *OrderStore) Update(_ context.Context, fn func([]model.Order) ([]model.Order, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(model.Clone(s.orders))
	if err != nil {
		return err
	}
	s.orders = model.Clone(next)
	return nil
}

// NextID выдаёт следующий номер заказа
func (s *OrderStore) NextID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id, nil
}

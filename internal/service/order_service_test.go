package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/blueflow/internal/lib/logger"
	"github.com/asquebay/blueflow/internal/model"
	"github.com/asquebay/blueflow/internal/queue"
	"github.com/asquebay/blueflow/internal/repository/file"
	"github.com/asquebay/blueflow/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e model.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func setup(t *testing.T, mode queue.Mode) (*OrderService, *memory.OrderStore, *recordingPublisher) {
	t.Helper()
	store := memory.NewOrderStore()
	pub := &recordingPublisher{}
	rules := queue.Rules{Params: queue.DefaultParams(), Menu: queue.DefaultMenu()}
	svc := NewOrderService(store, pub, rules, mode, logger.Discard())
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC) }
	return svc, store, pub
}

func req(burgers, fries int) model.OrderRequest {
	return model.OrderRequest{Lines: []model.LineItem{
		{Name: "Blue Special Burger", Quantity: burgers},
		{Name: "Peri Peri Fries", Quantity: fries},
	}}
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := setup(t, queue.SingleStage)

	order, err := svc.PlaceOrder(ctx, req(2, 3))

	require.NoError(t, err)
	assert.Equal(t, memory.FirstID, order.ID)
	assert.Equal(t, 5, order.ItemCount)
	assert.Equal(t, "12:00", order.Time)

	orders, _ := store.List(ctx)
	require.Len(t, orders, 1)
	assert.Equal(t, order, orders[0])
	assert.Equal(t, []model.EventType{model.EventOrderCreated}, pub.types())
}

func TestPlaceOrder_Rejections(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := setup(t, queue.SingleStage)

	_, err := svc.PlaceOrder(ctx, req(0, 0))
	assert.ErrorIs(t, err, queue.ErrEmptyOrder)

	// 6 заказов по 5 позиций = 30 минут -> CRITICAL
	for range 6 {
		_, err := svc.PlaceOrder(ctx, req(5, 0))
		require.NoError(t, err)
	}
	m, err := svc.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, queue.LevelCritical, m.StatusLevel)

	_, err = svc.PlaceOrder(ctx, req(1, 0))
	assert.ErrorIs(t, err, queue.ErrKitchenFull)

	_, err = svc.PlaceOrder(ctx, req(0, 0))
	assert.ErrorIs(t, err, queue.ErrEmptyOrder)

	orders, _ := store.List(ctx)
	assert.Len(t, orders, 6)
	assert.Len(t, pub.types(), 6)

	// отклонённые заказы не съедают номера
	next, _ := store.NextID(ctx)
	assert.Equal(t, memory.FirstID+6, next)
}

func TestPlaceOrder_ConcurrentAdmissionDoesNotOvershoot(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := setup(t, queue.SingleStage)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.PlaceOrder(ctx, req(5, 5))
		}()
	}
	wg.Wait()

	// по 10 позиций: принимаются заказы, пока ожидание < 30, т.е. ровно 3
	orders, _ := store.List(ctx)
	assert.Len(t, orders, 3)
}

func TestPlaceOrder_PublishFailureIsNotFatal(t *testing.T) {
	svc, _, pub := setup(t, queue.SingleStage)
	pub.err = errors.New("broker down")

	_, err := svc.PlaceOrder(context.Background(), req(1, 0))

	assert.NoError(t, err)
}

func TestMarkReady_SingleStage(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := setup(t, queue.SingleStage)
	order, _ := svc.PlaceOrder(ctx, req(1, 1))

	_, err := svc.MarkReady(ctx, order.ID)
	require.NoError(t, err)

	orders, _ := store.List(ctx)
	assert.Empty(t, orders)
	assert.Equal(t, []model.EventType{model.EventOrderCreated, model.EventOrderReady}, pub.types())
}

func TestMarkReady_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, store, pub := setup(t, queue.SingleStage)
	_, _ = svc.PlaceOrder(ctx, req(1, 1))
	before, _ := store.List(ctx)

	_, err := svc.MarkReady(ctx, 4242)

	assert.ErrorIs(t, err, queue.ErrOrderNotFound)
	after, _ := store.List(ctx)
	assert.Equal(t, before, after)
	assert.Len(t, pub.types(), 1)
}

func TestTwoStage_ReadyThenServed(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := setup(t, queue.TwoStage)
	first, _ := svc.PlaceOrder(ctx, req(1, 0))
	second, _ := svc.PlaceOrder(ctx, req(0, 2))
	require.Equal(t, int64(101), second.ID)

	_, err := svc.Serve(ctx, second.ID)
	assert.ErrorIs(t, err, queue.ErrInvalidTransition)

	ready, err := svc.MarkReady(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, ready.Status)

	readyOrders, _ := svc.ListOrders(ctx, model.StatusReady)
	require.Len(t, readyOrders, 1)

	// готовый заказ больше не нагружает кухню
	m, _ := svc.Metrics(ctx)
	assert.Equal(t, 1, m.PendingItemTotal)

	_, err = svc.Serve(ctx, second.ID)
	require.NoError(t, err)

	for _, status := range []model.Status{model.StatusPending, model.StatusReady, ""} {
		orders, err := svc.ListOrders(ctx, status)
		require.NoError(t, err)
		for _, o := range orders {
			assert.NotEqual(t, second.ID, o.ID)
		}
	}
	all, _ := svc.ListOrders(ctx, "")
	require.Len(t, all, 1)
	assert.Equal(t, first.ID, all[0].ID)

	assert.Equal(t, []model.EventType{
		model.EventOrderCreated, model.EventOrderCreated, model.EventOrderReady, model.EventOrderServed,
	}, pub.types())
}

func TestSimulateTraffic(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, queue.SingleStage)

	n, err := svc.SimulateTraffic(ctx, TrafficWarning)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	m, _ := svc.Metrics(ctx)
	assert.Equal(t, 20, m.PendingItemTotal)
	assert.Equal(t, queue.LevelWarning, m.StatusLevel)

	_, err = svc.SimulateTraffic(ctx, TrafficCritical)
	require.NoError(t, err)
	m, _ = svc.Metrics(ctx)
	assert.Equal(t, 70, m.PendingItemTotal)
	assert.False(t, m.AcceptingOrders)

	_, err = svc.SimulateTraffic(ctx, "apocalypse")
	assert.ErrorIs(t, err, ErrUnknownTrafficLevel)
}

func TestSimulateTraffic_FileStoreUniqueIDs(t *testing.T) {
	ctx := context.Background()
	store := file.NewOrderStore(filepath.Join(t.TempDir(), "orders.json"), logger.Discard())
	rules := queue.Rules{Params: queue.DefaultParams(), Menu: queue.DefaultMenu()}
	svc := NewOrderService(store, nil, rules, queue.SingleStage, logger.Discard())

	n, err := svc.SimulateTraffic(ctx, TrafficWarning)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, req(1, 0))
	require.NoError(t, err)

	orders, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, n+1)

	ids := make(map[int64]struct{}, len(orders))
	for _, o := range orders {
		ids[o.ID] = struct{}{}
	}
	assert.Len(t, ids, n+1)

	// каждый заказ продвигается отдельно
	_, err = svc.MarkReady(ctx, orders[0].ID)
	require.NoError(t, err)
	left, _ := store.List(ctx)
	assert.Len(t, left, n)
}

func TestClearOrders(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := setup(t, queue.SingleStage)
	_, _ = svc.SimulateTraffic(ctx, TrafficCritical)

	require.NoError(t, svc.ClearOrders(ctx))

	m, _ := svc.Metrics(ctx)
	assert.Equal(t, queue.Metrics{StatusLevel: queue.LevelNormal, AcceptingOrders: true, TotalSeats: 10}, m)
	types := pub.types()
	assert.Equal(t, model.EventOrdersCleared, types[len(types)-1])
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t, queue.SingleStage)
	_, _ = svc.PlaceOrder(ctx, req(2, 1))
	_, _ = svc.PlaceOrder(ctx, req(1, 0))
	_, _ = svc.SimulateTraffic(ctx, TrafficWarning)

	s, err := svc.Summary(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, s.Orders)
	assert.Equal(t, 4, s.Skipped)
	assert.Equal(t, 3, s.Lines[0].Quantity)
}

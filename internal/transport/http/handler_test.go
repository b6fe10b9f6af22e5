package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/blueflow/internal/lib/logger"
	"github.com/asquebay/blueflow/internal/model"
	"github.com/asquebay/blueflow/internal/queue"
	"github.com/asquebay/blueflow/internal/repository/memory"
	"github.com/asquebay/blueflow/internal/service"
)

func newTestHandler(t *testing.T, mode queue.Mode) (http.Handler, *service.Monitor) {
	t.Helper()
	log := logger.Discard()
	rules := queue.Rules{Params: queue.DefaultParams(), Menu: queue.DefaultMenu()}
	svc := service.NewOrderService(memory.NewOrderStore(), nil, rules, mode, log)
	monitor := service.NewMonitor(svc, time.Hour, log)
	return WithRequestLog(NewHandler(svc, monitor, log), log), monitor
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const burgerOrder = `{"lines":[{"name":"Blue Special Burger","quantity":5},{"name":"Peri Peri Fries","quantity":5}]}`

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, queue.SingleStage)

	rec := do(t, h, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestPlaceOrderAndMetrics(t *testing.T) {
	h, monitor := newTestHandler(t, queue.SingleStage)

	rec := do(t, h, http.MethodPost, "/api/orders", burgerOrder)
	require.Equal(t, http.StatusCreated, rec.Code)

	var order model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, int64(100), order.ID)
	assert.Equal(t, 10, order.ItemCount)

	rec = do(t, h, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var m queue.Metrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 10, m.PendingItemTotal)
	assert.Equal(t, 10.0, m.EstimatedWaitMinutes)
	assert.Equal(t, queue.LevelNormal, m.StatusLevel)
	assert.True(t, m.AcceptingOrders)

	// после мутации монитор уже пересчитал снимок
	latest, ok := monitor.Latest()
	require.True(t, ok)
	assert.Equal(t, 10, latest.PendingItemTotal)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	h, _ := newTestHandler(t, queue.SingleStage)

	rec := do(t, h, http.MethodPost, "/api/orders", `{"lines":[{"name":"Peri Peri Fries","quantity":0}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty_order")

	rec = do(t, h, http.MethodPost, "/api/orders", `{"lines":[{"name":"Peri Peri Fries","quantity":9}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_request")

	rec = do(t, h, http.MethodPost, "/api/orders", `{"lines": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for range 3 {
		require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/orders", burgerOrder).Code)
	}
	rec = do(t, h, http.MethodPost, "/api/orders", burgerOrder)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "kitchen_full")
}

func TestAdvance_TwoStage(t *testing.T) {
	h, _ := newTestHandler(t, queue.TwoStage)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/orders", burgerOrder).Code)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/orders/100/serve", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/api/orders/100/ready", "").Code)

	rec := do(t, h, http.MethodGet, "/api/orders?status=Ready", "")
	var ready []model.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	require.Len(t, ready, 1)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/api/orders/100/serve", "").Code)

	rec = do(t, h, http.MethodGet, "/api/orders", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAdvance_Errors(t *testing.T) {
	h, _ := newTestHandler(t, queue.SingleStage)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/orders/555/ready", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/orders/abc/ready", "").Code)
}

func TestListOrders_InvalidStatus(t *testing.T) {
	h, _ := newTestHandler(t, queue.SingleStage)

	rec := do(t, h, http.MethodGet, "/api/orders?status=Served", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulateSummaryAndClear(t *testing.T) {
	h, _ := newTestHandler(t, queue.SingleStage)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/dev/simulate?level=storm", "").Code)
	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodPost, "/api/dev/simulate?level=critical", "").Code)

	rec := do(t, h, http.MethodGet, "/api/metrics", "")
	assert.Contains(t, rec.Body.String(), `"status_level":"CRITICAL"`)

	rec = do(t, h, http.MethodGet, "/api/orders/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"skipped":10`)

	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/orders", "").Code)
	rec = do(t, h, http.MethodGet, "/api/metrics", "")
	assert.Contains(t, rec.Body.String(), `"accepting_orders":true`)
}

func TestMenuAndIndex(t *testing.T) {
	h, _ := newTestHandler(t, queue.SingleStage)

	rec := do(t, h, http.MethodGet, "/api/menu", "")
	assert.Contains(t, rec.Body.String(), "Peri Peri Fries")

	rec = do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/ui/stream")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/nope", "").Code)
}

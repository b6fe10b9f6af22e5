package http

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/blueflow/internal/lib/logger"
	"github.com/asquebay/blueflow/internal/model"
	"github.com/asquebay/blueflow/internal/queue"
)

func TestUI_RenderFragments(t *testing.T) {
	handler := NewHandler(nil, nil, logger.Discard())
	out, err := handler.ui.render("status", map[string]any{"Metrics": queue.Metrics{
		PendingItemTotal: 35, EstimatedWaitMinutes: 35.5, StatusLevel: queue.LevelCritical,
		OccupiedSeats: 8, TotalSeats: 10, SeatsNearCapacity: true,
	}})
	require.NoError(t, err)
	assert.Contains(t, out, `id="status-panel"`)
	assert.Contains(t, out, "35 mins")
	assert.Contains(t, out, "kitchen full")
	assert.Contains(t, out, "8/10 tables are busy")

	out, err = handler.ui.render("queue", map[string]any{"Orders": []model.Order{
		{ID: 1773489900, Items: "Peri Peri Fries x2", Time: "12:05", Status: model.StatusPending},
		{ID: 101, Items: "Blue Special Burger x1", Time: "12:06", Status: model.StatusReady, Type: model.Takeaway},
	}})
	require.NoError(t, err)
	assert.Contains(t, out, "#9900")
	assert.Contains(t, out, "#101")
	assert.Contains(t, out, "/ui/orders/1773489900/ready")
	assert.Contains(t, out, "/ui/orders/101/serve")
	assert.Equal(t, 2, strings.Count(out, `class="card"`))
}

func TestUI_PlaceOrderFromSignals(t *testing.T) {
	h, monitor := newTestHandler(t, queue.SingleStage)

	rec := do(t, h, http.MethodPost, "/ui/orders", `{"qty":{"q0":2,"q1":1},"dining":"Takeaway"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Order #100 placed (Takeaway)")

	m, ok := monitor.Refresh(context.Background())
	require.True(t, ok)
	assert.Equal(t, 3, m.PendingItemTotal)

	rec = do(t, h, http.MethodPost, "/ui/orders", `{"qty":{},"dining":"Dine-In"}`)
	assert.Contains(t, rec.Body.String(), "Please add at least one item.")
}

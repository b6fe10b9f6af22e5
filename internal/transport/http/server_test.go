package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/blueflow/internal/lib/logger"
	"github.com/asquebay/blueflow/internal/queue"
	"github.com/asquebay/blueflow/internal/repository/memory"
	"github.com/asquebay/blueflow/internal/service"
)

func TestServer_ShutdownClosesStreams(t *testing.T) {
	log := logger.Discard()
	rules := queue.Rules{Params: queue.DefaultParams(), Menu: queue.DefaultMenu()}
	svc := service.NewOrderService(memory.NewOrderStore(), nil, rules, queue.SingleStage, log)
	// монитор не запущен: снимков нет, поток просто висит
	handler := NewHandler(svc, service.NewMonitor(svc, time.Hour, log), log)

	server := NewServer(":0", handler, time.Second)
	server.RegisterOnShutdown(handler.CloseStreams)

	done := make(chan struct{})
	go func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ui/stream", nil))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("stream returned before shutdown")
	case <-time.After(50 * time.Millisecond):
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))

	assert.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	// повторное закрытие безопасно
	handler.CloseStreams()
}

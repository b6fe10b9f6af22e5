package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/asquebay/blueflow/internal/kitchen"
	"github.com/asquebay/blueflow/internal/model"
	"github.com/asquebay/blueflow/internal/queue"
	"github.com/asquebay/blueflow/internal/service"
)

// OrderService определяет интерфейс сервиса, который нужен хэндлеру
// это позволяет хэндлеру не зависеть от конкретной реализации сервиса
type OrderService interface {
	Metrics(ctx context.Context) (queue.Metrics, error)
	ListOrders(ctx context.Context, status model.Status) ([]model.Order, error)
	Summary(ctx context.Context) (kitchen.Summary, error)
	PlaceOrder(ctx context.Context, req model.OrderRequest) (model.Order, error)
	MarkReady(ctx context.Context, id int64) (model.Order, error)
	Serve(ctx context.Context, id int64) (model.Order, error)
	ClearOrders(ctx context.Context) error
	SimulateTraffic(ctx context.Context, level service.TrafficLevel) (int, error)
	Menu() []queue.MenuItem
}

// MetricsFeed: источник живых метрик для SSE (service.Monitor)
type MetricsFeed interface {
	Subscribe() (<-chan queue.Metrics, func())
	Refresh(ctx context.Context) (queue.Metrics, bool)
}

// Handler обрабатывает HTTP-запросы
type Handler struct {
	service OrderService
	feed    MetricsFeed
	log     *slog.Logger
	mux     *http.ServeMux
	ui      *UI
}

// NewHandler создает новый экземпляр Handler
func NewHandler(service OrderService, feed MetricsFeed, log *slog.Logger) *Handler {
	h := &Handler{
		service: service,
		feed:    feed,
		log:     log,
		mux:     http.NewServeMux(),
	}
	h.ui = NewUI(service, feed, log)
	h.registerRoutes()
	return h
}

// ServeHTTP делает Handler совместимым с http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// CloseStreams закрывает SSE-потоки живого экрана; вызывается из Server.RegisterOnShutdown
func (h *Handler) CloseStreams() {
	h.ui.CloseStreams()
}

// registerRoutes регистрирует все эндпоинты
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.health)

	h.mux.HandleFunc("GET /api/metrics", h.getMetrics)
	h.mux.HandleFunc("GET /api/menu", h.getMenu)
	h.mux.HandleFunc("GET /api/orders", h.listOrders)
	h.mux.HandleFunc("GET /api/orders/summary", h.getSummary)
	h.mux.HandleFunc("POST /api/orders", h.placeOrder)
	h.mux.HandleFunc("DELETE /api/orders", h.clearOrders)
	h.mux.HandleFunc("POST /api/orders/{id}/ready", h.markReady)
	h.mux.HandleFunc("POST /api/orders/{id}/serve", h.serveOrder)
	h.mux.HandleFunc("POST /api/dev/simulate", h.simulate)

	// живой экран на datastar
	h.mux.HandleFunc("GET /{$}", h.ui.Index)
	h.mux.HandleFunc("GET /ui/stream", h.ui.Stream)
	h.mux.HandleFunc("POST /ui/orders", h.ui.PlaceOrder)
	h.mux.HandleFunc("POST /ui/orders/{id}/ready", h.ui.MarkReady)
	h.mux.HandleFunc("POST /ui/orders/{id}/serve", h.ui.Serve)
	h.mux.HandleFunc("POST /ui/dev/simulate/{level}", h.ui.Simulate)
	h.mux.HandleFunc("POST /ui/dev/clear", h.ui.Clear)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Metrics(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, m)
}

func (h *Handler) getMenu(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, h.service.Menu())
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	status := model.Status(r.URL.Query().Get("status"))
	if status != "" && status != model.StatusPending && status != model.StatusReady {
		h.respondError(w, http.StatusBadRequest, "invalid_status", "status must be Pending or Ready")
		return
	}

	orders, err := h.service.ListOrders(r.Context(), status)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, orders)
}

func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Summary(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, s)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req model.OrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), req)
	if err != nil {
		h.domainError(w, err)
		return
	}

	h.feed.Refresh(r.Context())
	h.respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.service.MarkReady)
}

func (h *Handler) serveOrder(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.service.Serve)
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (model.Order, error)) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_id", "order id must be an integer")
		return
	}

	if _, err := fn(r.Context(), id); err != nil {
		h.domainError(w, err)
		return
	}

	h.feed.Refresh(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearOrders(r.Context()); err != nil {
		h.internalError(w, err)
		return
	}
	h.feed.Refresh(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) simulate(w http.ResponseWriter, r *http.Request) {
	level := service.TrafficLevel(r.URL.Query().Get("level"))
	if _, err := h.service.SimulateTraffic(r.Context(), level); err != nil {
		h.domainError(w, err)
		return
	}
	h.feed.Refresh(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// domainError переводит ошибки бизнес-логики в HTTP-статусы
func (h *Handler) domainError(w http.ResponseWriter, err error) {
	status, reason := classify(err)
	if status == http.StatusInternalServerError {
		h.internalError(w, err)
		return
	}
	h.respondError(w, status, reason, errorMessage(reason))
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, queue.ErrEmptyOrder):
		return http.StatusBadRequest, "empty_order"
	case errors.Is(err, queue.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, queue.ErrKitchenFull):
		return http.StatusServiceUnavailable, "kitchen_full"
	case errors.Is(err, queue.ErrOrderNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, queue.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, service.ErrUnknownTrafficLevel):
		return http.StatusBadRequest, "unknown_level"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorMessage(reason string) string {
	switch reason {
	case "empty_order":
		return "please add at least one item"
	case "invalid_request":
		return "order request is invalid"
	case "kitchen_full":
		return "orders are paused due to high wait times, please try again later"
	case "not_found":
		return "order not found"
	case "invalid_transition":
		return "order is not ready yet"
	case "unknown_level":
		return "level must be warning or critical"
	default:
		return "internal server error"
	}
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	h.log.Error("internal server error", slog.String("error", err.Error()))
	h.respondError(w, http.StatusInternalServerError, "internal", "internal server error")
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal JSON response", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(response)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, reason, message string) {
	h.respondJSON(w, status, map[string]string{"error": message, "reason": reason})
}

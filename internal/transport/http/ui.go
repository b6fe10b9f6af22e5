package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/asquebay/blueflow/internal/model"
	"github.com/asquebay/blueflow/internal/queue"
	"github.com/asquebay/blueflow/internal/service"
	"github.com/asquebay/blueflow/internal/web"
)

// UI это живой экран, где студенческая форма и кухонная очередь на одной странице
type UI struct {
	service OrderService
	feed    MetricsFeed
	log     *slog.Logger
	tmpl    *template.Template

	// closed закрывается при остановке сервера, чтобы SSE-потоки не держали Shutdown
	closed    chan struct{}
	closeOnce sync.Once
}

type uiSignals struct {
	Qty    map[string]int `json:"qty"`
	Dining string         `json:"dining"`
}

type flashVM struct {
	Class   string
	Message string
}

func NewUI(service OrderService, feed MetricsFeed, log *slog.Logger) *UI {
	funcs := template.FuncMap{
		// на экране кухни показываются последние 4 цифры номера
		"shortID": func(id int64) string {
			s := strconv.FormatInt(id, 10)
			if len(s) > 4 {
				return s[len(s)-4:]
			}
			return s
		},
	}
	t := template.Must(template.New("fragments").Funcs(funcs).ParseFS(web.MustFS(), "fragments.html"))
	return &UI{
		service: service,
		feed:    feed,
		log:     log.With(slog.String("component", "ui")),
		tmpl:    t,
		closed:  make(chan struct{}),
	}
}

func (u *UI) Index(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, web.MustFS(), "index.html")
}

// Stream держит SSE-соединение и перерисовывает панель статуса и очередь на каждый снимок монитора
func (u *UI) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sse := datastar.NewSSE(w, r)

	menu, err := u.render("menu", map[string]any{"Menu": u.service.Menu()})
	if err == nil {
		err = sse.PatchElements(menu)
	}
	if err != nil {
		u.log.Warn("failed to send menu", slog.String("error", err.Error()))
		return
	}

	snapshots, cancel := u.feed.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-u.closed:
			return
		case m := <-snapshots:
			if err := u.patchState(r, sse, m); err != nil {
				u.log.Debug("stream closed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// CloseStreams завершает все открытые SSE-потоки, повторный вызов ничего не делает
func (u *UI) CloseStreams() {
	u.closeOnce.Do(func() { close(u.closed) })
}

func (u *UI) patchState(r *http.Request, sse *datastar.ServerSentEventGenerator, m queue.Metrics) error {
	orders, err := u.service.ListOrders(r.Context(), "")
	if err != nil {
		return err
	}

	status, err := u.render("status", map[string]any{"Metrics": m})
	if err != nil {
		return err
	}
	queueHTML, err := u.render("queue", map[string]any{"Orders": orders})
	if err != nil {
		return err
	}

	if err := sse.PatchElements(status); err != nil {
		return err
	}
	return sse.PatchElements(queueHTML)
}

// PlaceOrder читает сигналы формы (qty.q0, qty.q1, ... по порядку меню и dining)
func (u *UI) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	signals := &uiSignals{}
	if err := datastar.ReadSignals(r, signals); err != nil {
		sse := datastar.NewSSE(w, r)
		u.flash(sse, "CRITICAL", "Bad request: invalid signals")
		return
	}

	req := model.OrderRequest{DiningType: model.DiningType(signals.Dining)}
	for i, item := range u.service.Menu() {
		req.Lines = append(req.Lines, model.LineItem{Name: item.Name, Quantity: signals.Qty[fmt.Sprintf("q%d", i)]})
	}

	order, err := u.service.PlaceOrder(r.Context(), req)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		u.flash(sse, "WARNING", flashMessage(err))
		return
	}

	metrics, _ := u.feed.Refresh(r.Context())
	u.flash(sse, "NORMAL", fmt.Sprintf("Order #%d placed (%s)! Estimated wait: %d mins.", order.ID, order.Dining(), metrics.WaitDisplay()))

	// сбрасываем количества в форме
	reset := make(map[string]int, len(req.Lines))
	for i := range req.Lines {
		reset[fmt.Sprintf("q%d", i)] = 0
	}
	if err := sse.MarshalAndPatchSignals(map[string]any{"qty": reset}); err != nil {
		u.log.Debug("failed to reset form", slog.String("error", err.Error()))
	}
}

func (u *UI) MarkReady(w http.ResponseWriter, r *http.Request) {
	u.advance(w, r, "ready")
}

func (u *UI) Serve(w http.ResponseWriter, r *http.Request) {
	u.advance(w, r, "served")
}

func (u *UI) advance(w http.ResponseWriter, r *http.Request, action string) {
	sse := datastar.NewSSE(w, r)

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		u.flash(sse, "WARNING", "Bad order id")
		return
	}

	if action == "ready" {
		_, err = u.service.MarkReady(r.Context(), id)
	} else {
		_, err = u.service.Serve(r.Context(), id)
	}
	if err != nil {
		u.flash(sse, "WARNING", flashMessage(err))
		return
	}

	u.feed.Refresh(r.Context())
	u.flash(sse, "NORMAL", fmt.Sprintf("Order #%d marked %s!", id, action))
}

func (u *UI) Simulate(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	n, err := u.service.SimulateTraffic(r.Context(), service.TrafficLevel(r.PathValue("level")))
	if err != nil {
		u.flash(sse, "WARNING", flashMessage(err))
		return
	}
	u.feed.Refresh(r.Context())
	u.flash(sse, "NORMAL", fmt.Sprintf("Simulated %d orders", n))
}

func (u *UI) Clear(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	if err := u.service.ClearOrders(r.Context()); err != nil {
		u.flash(sse, "CRITICAL", "Failed to clear orders")
		return
	}
	u.feed.Refresh(r.Context())
	u.flash(sse, "NORMAL", "All orders cleared")
}

func (u *UI) flash(sse *datastar.ServerSentEventGenerator, class, message string) {
	html, err := u.render("flash", flashVM{Class: class, Message: message})
	if err != nil {
		u.log.Error("failed to render flash", slog.String("error", err.Error()))
		return
	}
	if err := sse.PatchElements(html); err != nil {
		u.log.Debug("failed to send flash", slog.String("error", err.Error()))
	}
}

func (u *UI) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := u.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func flashMessage(err error) string {
	switch {
	case errors.Is(err, queue.ErrKitchenFull):
		return "Orders are currently paused due to high wait times. Please try again later."
	case errors.Is(err, queue.ErrEmptyOrder):
		return "Please add at least one item."
	case errors.Is(err, queue.ErrInvalidRequest):
		return "Please check the quantities."
	case errors.Is(err, queue.ErrOrderNotFound):
		return "Order is already gone."
	case errors.Is(err, queue.ErrInvalidTransition):
		return "Order is not ready yet."
	case errors.Is(err, service.ErrUnknownTrafficLevel):
		return "Unknown traffic level."
	default:
		return "Something went wrong."
	}
}

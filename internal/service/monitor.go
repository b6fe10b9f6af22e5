package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/asquebay/blueflow/internal/queue"
)

// MetricsSource: откуда монитор берёт свежие метрики
type MetricsSource interface {
	Metrics(ctx context.Context) (queue.Metrics, error)
}

// Monitor по таймеру пересчитывает метрики и раздаёт снимок подписчикам (SSE-экранам)
// подписчик всегда получает последний снимок: старый вытесняется, если его не успели прочитать
type Monitor struct {
	source   MetricsSource
	interval time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	subs      map[int]chan queue.Metrics
	nextSub   int
	latest    queue.Metrics
	hasLatest bool
}

// NewMonitor создаёт монитор с периодом interval
func NewMonitor(source MetricsSource, interval time.Duration, log *slog.Logger) *Monitor {
	return &Monitor{
		source:   source,
		interval: interval,
		log:      log.With(slog.String("component", "monitor")),
		subs:     make(map[int]chan queue.Metrics),
	}
}

// Run блокирует до отмены контекста, поэтому запускается в отдельной горутине
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("monitor started", slog.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor stopped")
			return
		case <-ticker.C:
			m.Refresh(ctx)
		}
	}
}

// Refresh пересчитывает метрики немедленно (например, после действия пользователя)
func (m *Monitor) Refresh(ctx context.Context) (queue.Metrics, bool) {
	metrics, err := m.source.Metrics(ctx)
	if err != nil {
		m.log.Error("failed to refresh metrics", slog.String("error", err.Error()))
		return queue.Metrics{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasLatest && m.latest.StatusLevel != metrics.StatusLevel {
		m.log.Warn("kitchen status changed",
			slog.String("from", string(m.latest.StatusLevel)),
			slog.String("to", string(metrics.StatusLevel)),
			slog.Int("pending_items", metrics.PendingItemTotal),
		)
	}
	m.latest, m.hasLatest = metrics, true

	for _, ch := range m.subs {
		// вытесняем непрочитанный снимок
		select {
		case <-ch:
		default:
		}
		ch <- metrics
	}
	return metrics, true
}

// Latest возвращает последний снимок, если он уже есть
func (m *Monitor) Latest() (queue.Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.hasLatest
}

// Subscribe возвращает канал снимков и функцию отписки
// если снимок уже есть, он сразу лежит в канале
func (m *Monitor) Subscribe() (<-chan queue.Metrics, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++

	ch := make(chan queue.Metrics, 1)
	if m.hasLatest {
		ch <- m.latest
	}
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

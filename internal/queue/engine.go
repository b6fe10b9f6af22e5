package queue

import "github.com/asquebay/blueflow/internal/model"

// Level: уровень загрузки кухни
type Level string

const (
	LevelNormal   Level = "NORMAL"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Params: константы движка, приходят из конфига
type Params struct {
	CapacityPerHour  float64
	WarningMinutes   float64
	CriticalMinutes  float64
	TotalSeats       int
	SeatWarningRatio float64
}

// DefaultParams возвращает значения прототипа: 60 позиций в час, пороги 15/30 минут, 10 столов
func DefaultParams() Params {
	return Params{
		CapacityPerHour:  60,
		WarningMinutes:   15,
		CriticalMinutes:  30,
		TotalSeats:       10,
		SeatWarningRatio: 0.8,
	}
}

// PrepMinutesPerItem: сколько минут кухня тратит на одну позицию
func (p Params) PrepMinutesPerItem() float64 {
	return 60 / p.CapacityPerHour
}

// Metrics: снимок загрузки кухни
type Metrics struct {
	PendingItemTotal     int     `json:"pending_item_total"`
	EstimatedWaitMinutes float64 `json:"estimated_wait_minutes"`
	StatusLevel          Level   `json:"status_level"`
	AcceptingOrders      bool    `json:"accepting_orders"`
	OccupiedSeats        int     `json:"occupied_seats"`
	TotalSeats           int     `json:"total_seats"`
	SeatsNearCapacity    bool    `json:"seats_near_capacity"`
}

// WaitDisplay: ожидание в целых минутах, дробная часть отбрасывается только для показа
func (m Metrics) WaitDisplay() int {
	return int(m.EstimatedWaitMinutes)
}

// ComputeMetrics считает загрузку кухни по текущему набору заказов
// функция чистая, вызывается заново на каждое чтение
func ComputeMetrics(orders []model.Order, p Params) Metrics {
	var pending, occupied int
	for _, o := range orders {
		if o.Status == model.StatusPending {
			pending += o.ItemCount
		}
		if o.Dining() == model.DineIn && (o.Status == model.StatusPending || o.Status == model.StatusReady) {
			occupied++
		}
	}

	wait := float64(pending) * p.PrepMinutesPerItem()
	level := classify(wait, p)

	return Metrics{
		PendingItemTotal:     pending,
		EstimatedWaitMinutes: wait,
		StatusLevel:          level,
		AcceptingOrders:      level != LevelCritical,
		OccupiedSeats:        occupied,
		TotalSeats:           p.TotalSeats,
		SeatsNearCapacity:    p.TotalSeats > 0 && float64(occupied) >= float64(p.TotalSeats)*p.SeatWarningRatio,
	}
}

// пороги включительные: ожидание ровно на пороге относится к верхнему уровню
func classify(wait float64, p Params) Level {
	switch {
	case wait >= p.CriticalMinutes:
		return LevelCritical
	case wait >= p.WarningMinutes:
		return LevelWarning
	default:
		return LevelNormal
	}
}

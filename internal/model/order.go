package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status описывает стадию жизненного цикла заказа (Pending -> Ready -> удалён)
type Status string

const (
	StatusPending Status = "Pending"
	StatusReady   Status = "Ready"
)

// DiningType: где студент будет есть заказ, влияет только на подсчёт занятых мест
type DiningType string

const (
	DineIn   DiningType = "Dine-In"
	Takeaway DiningType = "Takeaway"
)

// TimeLayout: формат поля time, которое показывается на кухонном экране
const TimeLayout = "15:04"

// Order: единственная сущность хранилища
// поля id, items, item_count, time, status и type совместимы со старым orders.json
type Order struct {
	ID        int64      `json:"id" validate:"required"`
	Items     string     `json:"items"`
	Lines     []LineItem `json:"lines,omitempty" validate:"dive"`
	ItemCount int        `json:"item_count" validate:"gt=0"`
	Type      DiningType `json:"type,omitempty" validate:"omitempty,oneof=Dine-In Takeaway"`
	Time      string     `json:"time"`
	CreatedAt time.Time  `json:"created_at,omitzero"`
	Status    Status     `json:"status" validate:"required,oneof=Pending Ready"`
}

// LineItem: одна позиция меню и её количество
type LineItem struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// OrderRequest: то, что присылает студент (форма, HTTP API или kafka)
type OrderRequest struct {
	Lines      []LineItem `json:"lines" validate:"dive"`
	DiningType DiningType `json:"dining_type" validate:"omitempty,oneof=Dine-In Takeaway"`
}

var validate = validator.New()

// Validate проверяет корректность заказа на основе тегов validate
func (o *Order) Validate() error {
	return validate.Struct(o)
}

// Validate проверяет корректность запроса на основе тегов validate
func (r *OrderRequest) Validate() error {
	return validate.Struct(r)
}

// Dining возвращает тип заказа, отсутствующий тип считается Dine-In
func (o Order) Dining() DiningType {
	if o.Type == "" {
		return DineIn
	}
	return o.Type
}

// TotalItems суммирует количество по всем позициям запроса
func (r OrderRequest) TotalItems() int {
	total := 0
	for _, l := range r.Lines {
		total += l.Quantity
	}
	return total
}

// Dining возвращает выбранный тип, по умолчанию Dine-In
func (r OrderRequest) Dining() DiningType {
	if r.DiningType == "" {
		return DineIn
	}
	return r.DiningType
}

// Describe собирает человекочитаемое описание вида "Burger x2, Fries x1"
// позиции с нулевым количеством пропускаются
func Describe(lines []LineItem) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s x%d", l.Name, l.Quantity))
	}
	return strings.Join(parts, ", ")
}

// Clone возвращает глубокую копию среза заказов, чтобы снимок нельзя было изменить снаружи
func Clone(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	for i, o := range orders {
		if o.Lines != nil {
			o.Lines = append([]LineItem(nil), o.Lines...)
		}
		out[i] = o
	}
	return out
}

// Filter возвращает заказы с заданным статусом, пустой статус означает "все"
func Filter(orders []Order, status Status) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

package queue

import (
	"fmt"
	"time"

	"github.com/asquebay/blueflow/internal/model"
)

// MenuItem: строка меню с ограничением на количество в одном заказе
type MenuItem struct {
	Name        string `json:"name" yaml:"name" validate:"required"`
	MaxQuantity int    `json:"max_quantity" yaml:"max_quantity" validate:"gte=0"`
}

// DefaultMenu: меню прототипа
func DefaultMenu() []MenuItem {
	return []MenuItem{
		{Name: "Blue Special Burger", MaxQuantity: 5},
		{Name: "Peri Peri Fries", MaxQuantity: 5},
	}
}

// Rules объединяет параметры движка и меню, по которым принимаются заказы
type Rules struct {
	Params Params
	Menu   []MenuItem
}

// ValidateRequest проверяет теги запроса и соответствие меню
func (r Rules) ValidateRequest(req model.OrderRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	if len(r.Menu) == 0 {
		return nil
	}

	limits := make(map[string]int, len(r.Menu))
	for _, m := range r.Menu {
		limits[m.Name] = m.MaxQuantity
	}

	seen := make(map[string]struct{}, len(req.Lines))
	for _, l := range req.Lines {
		limit, ok := limits[l.Name]
		if !ok {
			return fmt.Errorf("%w: unknown menu item %q", ErrInvalidRequest, l.Name)
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("%w: duplicate line %q", ErrInvalidRequest, l.Name)
		}
		seen[l.Name] = struct{}{}
		if limit > 0 && l.Quantity > limit {
			return fmt.Errorf("%w: %q quantity %d exceeds %d", ErrInvalidRequest, l.Name, l.Quantity, limit)
		}
	}
	return nil
}

// CreateOrder решает, принимать ли заказ, и собирает новую запись
// хранилище не трогается: вызывающий сам делает Append
// пустой запрос отклоняется раньше проверки загрузки, поэтому он отклоняется при любом статусе кухни
func (r Rules) CreateOrder(orders []model.Order, req model.OrderRequest, id int64, now time.Time) (model.Order, error) {
	if err := r.ValidateRequest(req); err != nil {
		return model.Order{}, err
	}

	total := req.TotalItems()
	if total == 0 {
		return model.Order{}, ErrEmptyOrder
	}

	if m := ComputeMetrics(orders, r.Params); !m.AcceptingOrders {
		return model.Order{}, ErrKitchenFull
	}

	lines := make([]model.LineItem, 0, len(req.Lines))
	for _, l := range req.Lines {
		if l.Quantity > 0 {
			lines = append(lines, l)
		}
	}

	return model.Order{
		ID:        id,
		Items:     model.Describe(lines),
		Lines:     lines,
		ItemCount: total,
		Type:      req.Dining(),
		Time:      now.Format(model.TimeLayout),
		CreatedAt: now,
		Status:    model.StatusPending,
	}, nil
}

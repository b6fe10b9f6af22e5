package queue

import "github.com/asquebay/blueflow/internal/model"

// Mode: схема продвижения заказа на кухне
type Mode int

const (
	// SingleStage: "готово" сразу убирает заказ
	SingleStage Mode = iota
	// TwoStage: Pending -> Ready, потом отдельная выдача убирает заказ
	TwoStage
)

func indexOf(orders []model.Order, id int64) int {
	for i, o := range orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func without(orders []model.Order, i int) []model.Order {
	out := make([]model.Order, 0, len(orders)-1)
	out = append(out, orders[:i]...)
	return append(out, orders[i+1:]...)
}

// MarkReady продвигает заказ на стадию "готов"
// возвращает новый срез, входной не меняется; при ErrOrderNotFound набор остаётся прежним
func MarkReady(orders []model.Order, id int64, mode Mode) ([]model.Order, model.Order, error) {
	i := indexOf(orders, id)
	if i < 0 {
		return orders, model.Order{}, ErrOrderNotFound
	}

	target := orders[i]
	if mode == SingleStage {
		target.Status = model.StatusReady
		return without(orders, i), target, nil
	}

	out := model.Clone(orders)
	out[i].Status = model.StatusReady
	return out, out[i], nil
}

// Serve убирает выданный заказ, выдать можно только заказ в статусе Ready
func Serve(orders []model.Order, id int64) ([]model.Order, model.Order, error) {
	i := indexOf(orders, id)
	if i < 0 {
		return orders, model.Order{}, ErrOrderNotFound
	}
	if orders[i].Status != model.StatusReady {
		return orders, orders[i], ErrInvalidTransition
	}
	return without(orders, i), orders[i], nil
}

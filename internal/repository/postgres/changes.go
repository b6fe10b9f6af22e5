package postgres

import "github.com/asquebay/blueflow/internal/model"

// changeSet: что нужно сделать с таблицей, чтобы она совпала с новой коллекцией
// у существующих заказов меняется только статус, остальные поля неизменяемы
type changeSet struct {
	inserts []model.Order
	updates []model.Order
	deletes []int64
}

func planChanges(before, after []model.Order) changeSet {
	var cs changeSet

	old := make(map[int64]model.Order, len(before))
	for _, o := range before {
		old[o.ID] = o
	}

	kept := make(map[int64]struct{}, len(after))
	for _, o := range after {
		kept[o.ID] = struct{}{}
		prev, ok := old[o.ID]
		switch {
		case !ok:
			cs.inserts = append(cs.inserts, o)
		case prev.Status != o.Status:
			cs.updates = append(cs.updates, o)
		}
	}

	for _, o := range before {
		if _, ok := kept[o.ID]; !ok {
			cs.deletes = append(cs.deletes, o.ID)
		}
	}

	return cs
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asquebay/blueflow/internal/model"
)

// querier: общее подмножество pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OrderRepository инкапсулирует логику работы с заказами в БД
type OrderRepository struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{
		db: db,
		// использую плейсхолдеры в стиле PostgreSQL ($1, $2, $3,...)
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// List извлекает все заказы в порядке добавления
func (r *OrderRepository) List(ctx context.Context) ([]model.Order, error) {
	const op = "repository.postgres.order.List"

	orders, err := r.list(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// Append сохраняет заказ вместе с позициями в рамках одной транзакции
func (r *OrderRepository) Append(ctx context.Context, order model.Order) error {
	const op = "repository.postgres.order.Append"

	// начинаем транзакцию
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	// гарантируем откат транзакции в случае любой ошибки
	defer tx.Rollback(ctx)

	if err := r.insert(ctx, tx, order); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return tx.Commit(ctx)
}

// Update загружает коллекцию под блокировкой таблицы, применяет fn и записывает разницу
// блокировка сериализует конкурентные read-modify-write, поэтому обновления не теряются
func (r *OrderRepository) Update(ctx context.Context, fn func([]model.Order) ([]model.Order, error)) error {
	const op = "repository.postgres.order.Update"

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "LOCK TABLE orders IN EXCLUSIVE MODE"); err != nil {
		return fmt.Errorf("%s: failed to lock orders: %w", op, err)
	}

	current, err := r.list(ctx, tx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	next, err := fn(model.Clone(current))
	if err != nil {
		return err
	}

	changes := planChanges(current, next)

	if len(changes.deletes) > 0 {
		sql, args, err := r.sq.Delete("orders").Where(squirrel.Eq{"id": changes.deletes}).ToSql()
		if err != nil {
			return fmt.Errorf("%s: failed to build delete query: %w", op, err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("%s: failed to delete orders: %w", op, err)
		}
	}

	for _, o := range changes.updates {
		sql, args, err := r.sq.Update("orders").
			Set("status", string(o.Status)).
			Where(squirrel.Eq{"id": o.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("%s: failed to build update query: %w", op, err)
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return fmt.Errorf("%s: failed to update order %d: %w", op, o.ID, err)
		}
	}

	for _, o := range changes.inserts {
		if err := r.insert(ctx, tx, o); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return tx.Commit(ctx)
}

// NextID берёт номер из последовательности orders_id_seq
func (r *OrderRepository) NextID(ctx context.Context) (int64, error) {
	const op = "repository.postgres.order.NextID"

	var id int64
	if err := r.db.QueryRow(ctx, "SELECT nextval('orders_id_seq')").Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (r *OrderRepository) insert(ctx context.Context, q querier, order model.Order) error {
	var createdAt *time.Time
	if !order.CreatedAt.IsZero() {
		createdAt = &order.CreatedAt
	}

	// 1. Вставка в таблицу orders
	sql, args, err := r.sq.Insert("orders").
		Columns("id", "items", "item_count", "dining_type", "display_time", "created_at", "status").
		Values(order.ID, order.Items, order.ItemCount, string(order.Type), order.Time, createdAt, string(order.Status)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build orders insert query: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert order %d: %w", order.ID, err)
	}

	if len(order.Lines) == 0 {
		return nil
	}

	// 2. Вставка всех позиций одним запросом
	lines := r.sq.Insert("order_lines").Columns("order_id", "position", "name", "quantity")
	for i, l := range order.Lines {
		lines = lines.Values(order.ID, i, l.Name, l.Quantity)
	}
	sql, args, err = lines.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build order_lines insert query: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert lines for order %d: %w", order.ID, err)
	}
	return nil
}

func (r *OrderRepository) list(ctx context.Context, q querier) ([]model.Order, error) {
	// 1. Получаем все заказы
	sql, args, err := r.sq.
		Select("id", "items", "item_count", "dining_type", "display_time", "created_at", "status").
		From("orders").
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build orders query: %w", err)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	index := make(map[int64]int)
	ids := []int64{}

	for rows.Next() {
		var (
			o         model.Order
			dining    string
			status    string
			createdAt *time.Time
		)
		if err := rows.Scan(&o.ID, &o.Items, &o.ItemCount, &dining, &o.Time, &createdAt, &status); err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		o.Type = model.DiningType(dining)
		o.Status = model.Status(status)
		if createdAt != nil {
			o.CreatedAt = *createdAt
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil // нет заказов: возвращаем пустой слайс
	}

	// 2. Получаем все позиции для найденных заказов
	sql, args, err = r.sq.
		Select("order_id", "name", "quantity").
		From("order_lines").
		Where(squirrel.Eq{"order_id": ids}).
		OrderBy("order_id", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order_lines query: %w", err)
	}

	lineRows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order_lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var (
			orderID int64
			line    model.LineItem
		)
		if err := lineRows.Scan(&orderID, &line.Name, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order_lines row: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Lines = append(orders[i].Lines, line)
		}
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order_lines: %w", err)
	}

	return orders, nil
}

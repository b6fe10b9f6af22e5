package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/asquebay/blueflow/internal/model"
)

const indent = "    "

// ErrDuplicateID: заказ с таким номером уже лежит в файле
var ErrDuplicateID = errors.New("duplicate order id")

// OrderStore хранит все заказы одним JSON-массивом в файле
// каждая мутация перечитывает файл и записывает его целиком через временный файл и rename
// мьютекс сериализует запись внутри процесса; между процессами блокировки нет
type OrderStore struct {
	path string
	log  *slog.Logger
	now  func() time.Time
	mu   sync.Mutex

	// последний выданный номер: NextID может вызываться несколько раз до записи
	issued int64
}

// NewOrderStore создаёт хранилище поверх файла path, файл может ещё не существовать
func NewOrderStore(path string, log *slog.Logger) *OrderStore {
	return &OrderStore{
		path: path,
		log:  log.With(slog.String("component", "file_store"), slog.String("path", path)),
		now:  time.Now,
	}
}

// List читает все заказы из файла
func (s *OrderStore) List(_ context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Append дописывает заказ и перезаписывает файл целиком
func (s *OrderStore) Append(_ context.Context, order model.Order) error {
	const op = "repository.file.OrderStore.Append"

	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, o := range orders {
		if o.ID == order.ID {
			return fmt.Errorf("%s: %w: %d", op, ErrDuplicateID, order.ID)
		}
	}
	if err := s.write(append(orders, order)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Update читает коллекцию, применяет fn и записывает результат целиком
func (s *OrderStore) Update(_ context.Context, fn func([]model.Order) ([]model.Order, error)) error {
	const op = "repository.file.OrderStore.Update"

	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	next, err := fn(orders)
	if err != nil {
		return err
	}

	if err := s.write(next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// NextID выдаёт номер по unix-времени, как прототип; если он уже занят, берём max+1
// номера, выданные, но ещё не записанные, тоже считаются занятыми
func (s *OrderStore) NextID(_ context.Context) (int64, error) {
	const op = "repository.file.OrderStore.NextID"

	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.load()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id := max(s.now().Unix(), s.issued+1)
	for _, o := range orders {
		if o.ID >= id {
			id = o.ID + 1
		}
	}
	s.issued = id
	return id, nil
}

// load возвращает пустую коллекцию, если файла нет
// битый файл тоже считается пустой коллекцией: пишем предупреждение, следующая запись его заменит
func (s *OrderStore) load() ([]model.Order, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Order{}, nil
		}
		return nil, fmt.Errorf("failed to read orders file: %w", err)
	}

	var orders []model.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		s.log.Warn("orders file is malformed, treating as empty", slog.String("error", err.Error()))
		return []model.Order{}, nil
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// write пишет во временный файл в той же директории и атомарно переименовывает его
func (s *OrderStore) write(orders []model.Order) error {
	if orders == nil {
		orders = []model.Order{}
	}

	data, err := json.MarshalIndent(orders, "", indent)
	if err != nil {
		return fmt.Errorf("failed to marshal orders: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	// если что-то пошло не так, временный файл не должен остаться рядом
	ok := false
	defer func() {
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace orders file: %w", err)
	}

	ok = true
	return nil
}

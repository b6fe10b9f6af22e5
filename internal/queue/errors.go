package queue

import "errors"

var (
	// ErrEmptyOrder: в запросе нет ни одной позиции
	ErrEmptyOrder = errors.New("empty order")
	// ErrKitchenFull: кухня перегружена, приём заказов закрыт
	ErrKitchenFull = errors.New("kitchen full")
	// ErrInvalidRequest: запрос не прошёл валидацию (неизвестная позиция, количество вне диапазона)
	ErrInvalidRequest = errors.New("invalid order request")
	// ErrOrderNotFound: заказа с таким id нет в хранилище
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidTransition: статус может двигаться только вперёд
	ErrInvalidTransition = errors.New("invalid status transition")
)

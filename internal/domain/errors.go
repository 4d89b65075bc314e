package domain

import (
	"errors"
	"fmt"
)

// Code — стабильный машиночитаемый код ошибки для транспортного слоя.
type Code string

const (
	CodeClientNotFound   Code = "CLIENT_NOT_FOUND"
	CodeProductNotFound  Code = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound    Code = "ORDER_NOT_FOUND"
	CodeCartEmpty        Code = "CART_EMPTY"
	CodeOrderComplete    Code = "ORDER_COMPLETE"
	CodeProductNotInCart Code = "PRODUCT_NOT_IN_CART"
	CodeUnknownOperation Code = "UNKNOWN_OPERATION"
	CodeTransient        Code = "TRANSIENT"
)

// NotFoundError — отсутствие сущности по ссылке. Entity: client/product/order.
type NotFoundError struct {
	Entity string
	code   Code
}

func (e *NotFoundError) Error() string { return string(e.code) }

// Code возвращает стабильный код ошибки.
func (e *NotFoundError) Code() Code { return e.code }

// PreconditionError — нарушение предусловия операции; вызов не имеет смысла
// повторять, пока состояние не изменится.
type PreconditionError struct {
	code Code
}

func (e *PreconditionError) Error() string { return string(e.code) }

func (e *PreconditionError) Code() Code { return e.code }

// InvalidInputError — некорректный вход, например нераспознанный тег операции.
type InvalidInputError struct {
	Field string
	code  Code
}

func (e *InvalidInputError) Error() string { return string(e.code) }

func (e *InvalidInputError) Code() Code { return e.code }

var (
	// ErrClientNotFound — клиент не найден ни по id, ни по имени.
	ErrClientNotFound = &NotFoundError{Entity: "client", code: CodeClientNotFound}
	// ErrProductNotFound — позиция меню не найдена ни по id, ни по названию.
	ErrProductNotFound = &NotFoundError{Entity: "product", code: CodeProductNotFound}
	// ErrOrderNotFound — заказ не найден ни по id, ни по имени клиента.
	ErrOrderNotFound = &NotFoundError{Entity: "order", code: CodeOrderNotFound}
	// ErrCartEmpty — попытка checkout пустой корзины.
	ErrCartEmpty = &PreconditionError{code: CodeCartEmpty}
	// ErrOrderComplete — попытка изменить заметку завершённого заказа.
	ErrOrderComplete = &PreconditionError{code: CodeOrderComplete}
	// ErrProductNotInCart — удаляемой позиции нет в корзине клиента.
	ErrProductNotInCart = &PreconditionError{code: CodeProductNotInCart}
	// ErrUnknownOperation — нераспознанный тег операции в PATCH-запросе.
	ErrUnknownOperation = &InvalidInputError{Field: "op", code: CodeUnknownOperation}
)

// TransientError оборачивает сбой I/O бэкенда; вызов можно безопасно повторить.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", CodeTransient, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Code() Code { return CodeTransient }

// Transient помечает ошибку бэкенда как временную.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient сообщает, является ли ошибка временным сбоем хранилища.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrorCode извлекает стабильный код из ошибки ядра; для чужих ошибок
// возвращает пустой код и false.
func ErrorCode(err error) (Code, bool) {
	var coded interface{ Code() Code }
	if errors.As(err, &coded) {
		return coded.Code(), true
	}
	return "", false
}

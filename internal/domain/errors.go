package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBadFormat   = errors.New("Не понял формат")
	ErrBadDateTime = errors.New("Ошибка в дате/времени")
	ErrNoSuchTask  = errors.New("Нет задачи с таким номером")
	ErrStorage     = errors.New("Хранилище недоступно")
	ErrDelivery    = errors.New("Не удалось отправить напоминание")
)

// FormatError rejects user input that does not match a recognized shape.
type FormatError struct {
	Input  string
	Reason error
}

func (e *FormatError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("bad reminder format %q: %v", e.Input, e.Reason)
	}
	return fmt.Sprintf("bad reminder format %q", e.Input)
}

func (e *FormatError) Unwrap() error { return e.Reason }

// IsFieldCount reports whether the input was rejected for having too few fields.
func (e *FormatError) IsFieldCount() bool { return errors.Is(e.Reason, ErrBadFormat) }

type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("task index %d out of range [1, %d]", e.Index, e.Count)
}

func (e *IndexError) Is(target error) bool { return target == ErrNoSuchTask }

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err unless it is nil or already a *StorageError.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

type DeliveryError struct {
	ReminderID int64
	ChatID     int64
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver reminder %d to chat %d: %v", e.ReminderID, e.ChatID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

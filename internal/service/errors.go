// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"

	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden — операция запрещена для этого ресурса или пользователя.
	ErrForbidden = errors.New("операция запрещена")
	// ErrInUse — ресурс используется другими записями.
	ErrInUse = errors.New("ресурс используется другими записями")
	// ErrUnsafePath — каталог цели вне media root, удаление отклонено.
	ErrUnsafePath = errors.New("небезопасный путь каталога цели")
	// ErrReadOnly — поле недоступно для изменения.
	ErrReadOnly = errors.New("поле только для чтения")
	// ErrRequired — обязательное поле не заполнено.
	ErrRequired = errors.New("обязательное поле")
)

// FieldError — ошибка валидации конкретного поля.
// errors.Is находит как ErrValidation, так и исходную причину.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// Unwrap возвращает ErrValidation и причину.
func (e *FieldError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

func fieldError(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// mapRepoError переводит ошибку репозитория в ошибку сервиса.
// what — описание операции для остальных ошибок.
func mapRepoError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, repository.ErrInUse):
		return fmt.Errorf("%w: %v", ErrInUse, err)
	case errors.Is(err, repository.ErrInvalidReference), errors.Is(err, repository.ErrInvalidValue):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

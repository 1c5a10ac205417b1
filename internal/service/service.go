// Пакет service — бизнес-логика каталога наблюдений.
// service.go — общие зависимости сервисов и проверки входных данных.
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
)

// Transactor выполняет fn в транзакции. Реализуется repository.TxRunner.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(repos *repository.Repositories) error) error
}

// requireText проверяет обязательное текстовое поле и его длину.
// Возвращает значение без пробелов по краям.
func requireText(field, value string, maxLen int) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", fieldError(field, ErrRequired)
	}
	return checkLen(field, v, maxLen)
}

// optionalText проверяет длину необязательного текстового поля.
func optionalText(field, value string, maxLen int) (string, error) {
	return checkLen(field, strings.TrimSpace(value), maxLen)
}

func checkLen(field, v string, maxLen int) (string, error) {
	if maxLen > 0 && utf8.RuneCountInString(v) > maxLen {
		return "", fieldError(field, fmt.Errorf("длина больше %d символов", maxLen))
	}
	return v, nil
}

// nonNegative проверяет, что необязательное число не меньше нуля.
func nonNegative(field string, v *float64) error {
	if v != nil && *v < 0 {
		return fieldError(field, fmt.Errorf("значение %.2f меньше нуля", *v))
	}
	return nil
}

// uniqueIDs убирает пустые и повторяющиеся id, сохраняя порядок.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

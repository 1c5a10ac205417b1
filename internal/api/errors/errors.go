// Пакет errors — ответы об ошибках API каталога.
// Формат тела: {"error": {"code": "...", "message": "...", "field": "..."}},
// field присутствует только у ошибок валидации конкретного поля.
// HTTP-статус однозначно выводится из кода.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeInUse           = "IN_USE"
	CodeUnsafePath      = "UNSAFE_PATH"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeInternalError   = "INTERNAL_ERROR"
)

// statusByCode — HTTP-статус каждого кода.
// IN_USE и UNSAFE_PATH — частные случаи конфликта с состоянием ресурса.
var statusByCode = map[string]int{
	CodeValidationError: http.StatusBadRequest,
	CodeNotFound:        http.StatusNotFound,
	CodeUnauthorized:    http.StatusUnauthorized,
	CodeForbidden:       http.StatusForbidden,
	CodeConflict:        http.StatusConflict,
	CodeInUse:           http.StatusConflict,
	CodeUnsafePath:      http.StatusConflict,
	CodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	CodeInternalError:   http.StatusInternalServerError,
}

// StatusFor возвращает HTTP-статус кода; неизвестный код — 500.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type envelope struct {
	Error Detail `json:"error"`
}

// Detail — содержимое ответа об ошибке.
type Detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Write отправляет ошибку со статусом, соответствующим d.Code.
func Write(w http.ResponseWriter, d Detail) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(StatusFor(d.Code))
	_ = json.NewEncoder(w).Encode(envelope{Error: d})
}

// ValidationError — 400, входные данные не приняты целиком.
func ValidationError(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeValidationError, Message: message})
}

// FieldValidationError — 400 с именем поля, которое не прошло проверку.
func FieldValidationError(w http.ResponseWriter, field, message string) {
	Write(w, Detail{Code: CodeValidationError, Message: message, Field: field})
}

// NotFound — 404; невидимые пользователю блоки и цели тоже отвечают 404.
func NotFound(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeNotFound, Message: message})
}

// Unauthorized — 401, нет или не принят bearer-токен.
func Unauthorized(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeUnauthorized, Message: message})
}

// Forbidden — 403.
func Forbidden(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeForbidden, Message: message})
}

// Conflict — 409, нарушена уникальность.
func Conflict(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeConflict, Message: message})
}

// InUse — 409, на запись ссылаются другие записи.
func InUse(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeInUse, Message: message})
}

// UnsafePath — 409, каталог цели вне media root, удаление отклонено.
func UnsafePath(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeUnsafePath, Message: message})
}

// PayloadTooLarge — 413, тело загрузки больше DW_MAX_UPLOAD_BYTES.
func PayloadTooLarge(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodePayloadTooLarge, Message: message})
}

// InternalError — 500. Подробности пишутся в журнал, не в ответ.
func InternalError(w http.ResponseWriter, message string) {
	Write(w, Detail{Code: CodeInternalError, Message: message})
}

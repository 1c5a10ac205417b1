// handler.go — основной обработчик API каталога.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/noeliagrande/dwarfs4mosaic/internal/api/errors"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
)

// Services — сервисный слой, которым пользуются обработчики.
type Services struct {
	Users         *service.UserService
	Researchers   *service.ResearcherService
	Groups        *service.GroupService
	Observatories *service.ObservatoryService
	Equipment     *service.EquipmentService
	Observing     *service.ObservingService
	Targets       *service.TargetService
	Home          *service.HomeService
}

// APIHandler — основной обработчик API каталога.
type APIHandler struct {
	health         *HealthHandler
	svc            Services
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxUploadBytes — лимит тела multipart-запроса загрузки файлов цели.
func NewAPIHandler(health *HealthHandler, svc Services, maxUploadBytes int64, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		health:         health,
		svc:            svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// listResponse — ответ со списком. Items всегда массив, не null.
type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// newList собирает listResponse, преобразуя элементы через fn.
func newList[S, T any](items []S, fn func(S) T) listResponse[T] {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return listResponse[T]{Items: out, Total: len(out)}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. Неизвестные поля отклоняются.
// При ошибке ответ уже записан, возвращается false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var fe *service.FieldError
		if errors.As(err, &fe) {
			apierrors.FieldValidationError(w, fe.Field, fe.Err.Error())
			return false
		}
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// what — описание операции для лога и ответа 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, what string) {
	var fe *service.FieldError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &fe):
		apierrors.FieldValidationError(w, fe.Field, fe.Err.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrInUse):
		apierrors.InUse(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrUnsafePath):
		apierrors.UnsafePath(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.As(err, &maxBytes):
		apierrors.PayloadTooLarge(w, fmt.Sprintf("Размер запроса больше %d байт", maxBytes.Limit))
	default:
		h.logger.Error(what,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, what)
	}
}

// idParam возвращает параметр пути {id}.
func idParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// queryID возвращает необязательный id из параметра запроса; пусто — nil.
// Значение не в формате UUID — ошибка поля name.
func queryID(r *http.Request, name string) (*string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	if err := uuid.Validate(v); err != nil {
		return nil, &service.FieldError{Field: name, Err: fmt.Errorf("ожидается UUID: %q", v)}
	}
	return &v, nil
}

// orEmpty возвращает непустой срез для JSON (null → []).
func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// --- Даты и время ---

// dateTimeLayouts — допустимые форматы даты и времени во входных данных.
var dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

// parseDate разбирает дату YYYY-MM-DD; nil или пустая строка — не задана.
func parseDate(field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(*v))
	if err != nil {
		return nil, &service.FieldError{Field: field, Err: fmt.Errorf("ожидается дата YYYY-MM-DD: %q", *v)}
	}
	return &t, nil
}

// parseDateTime разбирает дату и время (RFC 3339 или без зоны, тогда UTC).
func parseDateTime(field string, v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, &service.FieldError{Field: field, Err: fmt.Errorf("ожидается дата и время RFC 3339: %q", s)}
}

// formatDate форматирует дату для ответа; nil — null.
func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

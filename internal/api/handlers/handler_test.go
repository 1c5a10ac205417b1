package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/noeliagrande/dwarfs4mosaic/internal/api/middleware"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/rbac"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// errorResponse — тело ответа ошибки для проверок.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("не удалось разобрать тело ошибки: %v", err)
	}
	return body
}

// --- Health ---

// mockChecker — фиксированный результат проверки готовности.
type mockChecker struct {
	status, message string
}

func (m mockChecker) CheckReady() (string, string) { return m.status, m.message }

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	var body healthLiveResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Service != serviceName {
		t.Errorf("неожиданный ответ: %+v", body)
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		pg, idp    ReadinessChecker
		wantStatus string
		wantCode   int
	}{
		{"всё доступно", mockChecker{"ok", ""}, mockChecker{"ok", ""}, "ok", http.StatusOK},
		{"IdP degraded", mockChecker{"ok", ""}, mockChecker{"degraded", "нет ключей"}, "degraded", http.StatusOK},
		{"БД недоступна", mockChecker{"fail", "timeout"}, mockChecker{"ok", ""}, "fail", http.StatusServiceUnavailable},
		{"checker не задан", nil, mockChecker{"ok", ""}, "fail", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.pg, tt.idp)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("ожидался статус %d, получен %d", tt.wantCode, rec.Code)
			}
			var body healthReadyResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, хотели %q", body.Status, tt.wantStatus)
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		statuses []string
		want     string
	}{
		{[]string{"ok", "ok"}, "ok"},
		{[]string{"ok", "degraded"}, "degraded"},
		{[]string{"degraded", "fail"}, "fail"},
		{nil, "ok"},
	}
	for _, tt := range tests {
		if got := overallStatus(tt.statuses...); got != tt.want {
			t.Errorf("overallStatus(%v) = %q, хотели %q", tt.statuses, got, tt.want)
		}
	}
}

// --- Ошибки сервисного слоя ---

func TestWriteServiceError(t *testing.T) {
	h := NewAPIHandler(nil, Services{}, 0, testLogger())

	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantError string
		wantField string
	}{
		{"ошибка поля", &service.FieldError{Field: "declination", Err: errors.New("вне диапазона")}, http.StatusBadRequest, "VALIDATION_ERROR", "declination"},
		{"валидация", fmt.Errorf("%w: имя обязательно", service.ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR", ""},
		{"не найдено", fmt.Errorf("цель: %w", service.ErrNotFound), http.StatusNotFound, "NOT_FOUND", ""},
		{"используется", fmt.Errorf("%w: у инструмента есть кампании", service.ErrInUse), http.StatusConflict, "IN_USE", ""},
		{"конфликт", fmt.Errorf("%w: имя занято", service.ErrConflict), http.StatusConflict, "CONFLICT", ""},
		{"небезопасный путь", fmt.Errorf("%w: ../etc", service.ErrUnsafePath), http.StatusConflict, "UNSAFE_PATH", ""},
		{"запрещено", fmt.Errorf("%w: суперпользователь", service.ErrForbidden), http.StatusForbidden, "FORBIDDEN", ""},
		{"слишком большой запрос", &http.MaxBytesError{Limit: 1024}, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", ""},
		{"прочее", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/api/v1/targets", nil), tt.err, "Ошибка")

			if rec.Code != tt.wantCode {
				t.Errorf("ожидался статус %d, получен %d", tt.wantCode, rec.Code)
			}
			body := decodeError(t, rec)
			if body.Error.Code != tt.wantError {
				t.Errorf("code = %q, хотели %q", body.Error.Code, tt.wantError)
			}
			if body.Error.Field != tt.wantField {
				t.Errorf("field = %q, хотели %q", body.Error.Field, tt.wantField)
			}
		})
	}
}

func TestWriteServiceError_InternalHidesDetails(t *testing.T) {
	h := NewAPIHandler(nil, Services{}, 0, testLogger())
	rec := httptest.NewRecorder()
	h.writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password=secret"), "Ошибка получения целей")

	if strings.Contains(rec.Body.String(), "secret") {
		t.Errorf("внутренняя ошибка попала в ответ: %s", rec.Body.String())
	}
}

// --- JSON ---

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantOK    bool
		wantField string
	}{
		{"валидный", `{"name":"Calar Alto","longitude":"002:32:45.00W"}`, true, ""},
		{"неизвестное поле", `{"name":"X","unknown":1}`, false, ""},
		{"сломанный JSON", `{"name":`, false, ""},
		{"координата неверного типа", `{"name":"X","latitude":42}`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req observatoryRequest
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/v1/observatories", strings.NewReader(tt.body))

			if got := decodeJSON(rec, r, &req); got != tt.wantOK {
				t.Fatalf("decodeJSON() = %v, хотели %v", got, tt.wantOK)
			}
			if !tt.wantOK && rec.Code != http.StatusBadRequest {
				t.Errorf("ожидался статус 400, получен %d", rec.Code)
			}
		})
	}
}

// TestListFilters_InvalidID — id фильтра не в формате UUID даёт 400
// с именем параметра, до обращения к сервисам.
func TestListFilters_InvalidID(t *testing.T) {
	h := NewAPIHandler(nil, Services{}, 0, testLogger())

	tests := []struct {
		name    string
		handler http.HandlerFunc
		path    string
		field   string
	}{
		{"кампании", h.ListRuns, "/api/v1/observing-runs?instrument_id=abc", "instrument_id"},
		{"блоки по кампании", h.ListBlocks, "/api/v1/observing-blocks?run_id=1", "run_id"},
		{"блоки по цели", h.ListBlocks, "/api/v1/observing-blocks?target_id=M81", "target_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("ожидался статус 400, получен %d", rec.Code)
			}
			if body := decodeError(t, rec); body.Error.Field != tt.field {
				t.Errorf("field = %q, хотели %q", body.Error.Field, tt.field)
			}
		})
	}
}

func TestCoordinateRequest_UnmarshalJSON(t *testing.T) {
	t.Run("строка", func(t *testing.T) {
		var c coordinateRequest
		if err := json.Unmarshal([]byte(`"037:13:23.00N"`), &c); err != nil {
			t.Fatal(err)
		}
		if c.Text != "037:13:23.00N" {
			t.Errorf("Text = %q", c.Text)
		}
	})

	t.Run("объект", func(t *testing.T) {
		var c coordinateRequest
		if err := json.Unmarshal([]byte(`{"hemisphere":"W","degrees":2,"minutes":32,"seconds":45.5}`), &c); err != nil {
			t.Fatal(err)
		}
		if c.DMS.Hemisphere == nil || *c.DMS.Hemisphere != "W" {
			t.Errorf("hemisphere = %v", c.DMS.Hemisphere)
		}
		if c.DMS.Degrees == nil || *c.DMS.Degrees != 2 || c.DMS.Minutes == nil || *c.DMS.Minutes != 32 {
			t.Errorf("degrees/minutes разобраны неверно: %+v", c.DMS)
		}
		if c.DMS.Seconds == nil || *c.DMS.Seconds != 45.5 {
			t.Errorf("seconds = %v", c.DMS.Seconds)
		}
	})

	t.Run("null сбрасывает значение", func(t *testing.T) {
		c := coordinateRequest{CoordinateInput: service.CoordinateInput{Text: "old"}}
		if err := json.Unmarshal([]byte(`null`), &c); err != nil {
			t.Fatal(err)
		}
		if c.Text != "" || c.DMS.Degrees != nil {
			t.Errorf("значение не сброшено: %+v", c)
		}
	})

	t.Run("число отклоняется", func(t *testing.T) {
		var c coordinateRequest
		if err := json.Unmarshal([]byte(`12.5`), &c); err == nil {
			t.Error("ожидалась ошибка")
		}
	})
}

// --- Даты ---

func strPtr(s string) *string { return &s }

func TestParseDate(t *testing.T) {
	got, err := parseDate("start_date", strPtr("2024-03-15"))
	if err != nil || got == nil || got.Format("2006-01-02") != "2024-03-15" {
		t.Errorf("parseDate() = %v, %v", got, err)
	}

	for _, empty := range []*string{nil, strPtr(""), strPtr("  ")} {
		if got, err := parseDate("start_date", empty); got != nil || err != nil {
			t.Errorf("пустое значение: %v, %v", got, err)
		}
	}

	_, err = parseDate("start_date", strPtr("15/03/2024"))
	var fe *service.FieldError
	if !errors.As(err, &fe) || fe.Field != "start_date" {
		t.Errorf("ожидалась ошибка поля start_date, получено %v", err)
	}
	if !errors.Is(err, service.ErrValidation) {
		t.Error("ошибка поля должна быть ErrValidation")
	}
}

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2024-03-15T22:30:00Z", "2024-03-15T22:30:00Z", false},
		{"2024-03-15T22:30:00+01:00", "2024-03-15T21:30:00Z", false},
		{"2024-03-15T22:30:00", "2024-03-15T22:30:00Z", false},
		{"2024-03-15T22:30", "2024-03-15T22:30:00Z", false},
		{"22:30", "", true},
	}
	for _, tt := range tests {
		got, err := parseDateTime("start_time", strPtr(tt.in))
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDateTime(%q): ожидалась ошибка", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDateTime(%q): %v", tt.in, err)
			continue
		}
		if s := got.UTC().Format("2006-01-02T15:04:05Z07:00"); s != tt.want {
			t.Errorf("parseDateTime(%q) = %s, хотели %s", tt.in, s, tt.want)
		}
	}
}

// --- /me ---

func TestGetMe(t *testing.T) {
	h := NewAPIHandler(nil, Services{}, 0, testLogger())

	t.Run("без claims", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetMe(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("ожидался статус 401, получен %d", rec.Code)
		}
	})

	t.Run("исследователь", func(t *testing.T) {
		sub := "sub-1"
		claims := &middleware.AuthClaims{
			Subject: sub,
			Groups:  []string{"observers"},
			IdpRole: rbac.RoleReader,
			Identity: &service.Identity{
				User:       &model.User{ID: "u-1", Username: "ada", AuthSubject: &sub, IsActive: true},
				Researcher: &model.Researcher{ID: "r-1", Name: "Ada", Role: model.RoleCollaborator},
			},
			Viewer: &rbac.Viewer{UserID: "u-1", Role: model.RoleCollaborator},
		}
		r := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		r = r.WithContext(middleware.WithClaims(r.Context(), claims))
		rec := httptest.NewRecorder()
		h.GetMe(rec, r)

		if rec.Code != http.StatusOK {
			t.Fatalf("ожидался статус 200, получен %d", rec.Code)
		}
		var body meResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.User.Username != "ada" || !body.User.Linked {
			t.Errorf("user = %+v", body.User)
		}
		if body.Researcher == nil || body.Researcher.ID != "r-1" {
			t.Errorf("researcher = %+v", body.Researcher)
		}
		if body.IsSuperuser {
			t.Error("исследователь не суперпользователь")
		}
		if len(body.IdpGroups) != 1 || body.IdpGroups[0] != "observers" {
			t.Errorf("idp_groups = %v", body.IdpGroups)
		}
	})
}

// --- Медиа ---

// folderAccess — доступ к каталогам по списку; ошибки задаются явно.
type folderAccess map[string]error

func (a folderAccess) VisibleFolder(_ context.Context, _ *rbac.Viewer, folder string) error {
	err, ok := a[folder]
	if !ok {
		return service.ErrNotFound
	}
	return err
}

func TestMediaHandler(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel, content string) {
		t.Helper()
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("NGC_1068/image/ngc1068.png", "png")
	mustWrite("NGC_1068/datafiles/.upload-123", "partial")
	mustWrite("M_81/image/m81.png", "secret")
	mustWrite("Broken/image/x.png", "x")

	access := folderAccess{
		"NGC_1068": nil,
		"Broken":   errors.New("база недоступна"),
	}
	h := NewMediaHandler(root, "/media/", access, testLogger())

	tests := []struct {
		name string
		path string
		want int
	}{
		{"файл", "/media/NGC_1068/image/ngc1068.png", http.StatusOK},
		{"каталог", "/media/NGC_1068/image/", http.StatusNotFound},
		{"корень", "/media/", http.StatusNotFound},
		{"временный файл", "/media/NGC_1068/datafiles/.upload-123", http.StatusNotFound},
		{"нет файла", "/media/NGC_1068/image/missing.png", http.StatusNotFound},
		{"невидимая цель", "/media/M_81/image/m81.png", http.StatusNotFound},
		{"обход через ..", "/media/NGC_1068/../M_81/image/m81.png", http.StatusNotFound},
		{"ошибка проверки доступа", "/media/Broken/image/x.png", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("%s: ожидался статус %d, получен %d", tt.path, tt.want, rec.Code)
			}
			if tt.want == http.StatusOK && rec.Body.String() != "png" {
				t.Errorf("тело = %q", rec.Body.String())
			}
		})
	}
}

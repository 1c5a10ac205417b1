package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		CodeValidationError: http.StatusBadRequest,
		CodeInUse:           http.StatusConflict,
		CodeUnsafePath:      http.StatusConflict,
		CodePayloadTooLarge: http.StatusRequestEntityTooLarge,
		"SOMETHING_NEW":     http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := StatusFor(code); got != want {
			t.Errorf("StatusFor(%q) = %d, хотели %d", code, got, want)
		}
	}
}

func TestFieldValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	FieldValidationError(rec, "latitude", "вне диапазона")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body envelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	want := Detail{Code: CodeValidationError, Message: "вне диапазона", Field: "latitude"}
	if body.Error != want {
		t.Errorf("тело = %+v, хотели %+v", body.Error, want)
	}
}

func TestNotFound_OmitsField(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound(rec, "Ресурс не найден")

	var raw map[string]map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["error"]["field"]; ok {
		t.Error("поле field не должно выводиться без имени поля")
	}
}

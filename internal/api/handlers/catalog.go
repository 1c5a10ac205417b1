// catalog.go — обработчики оборудования:
// /api/v1/observatories, /api/v1/telescopes, /api/v1/instruments.
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/coords"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
)

// --- Обсерватории ---

// coordinateRequest — координата во входных данных: объект
// {hemisphere, degrees, minutes, seconds} или строка DDD:MM:SS[.f]H.
type coordinateRequest struct {
	service.CoordinateInput
}

// UnmarshalJSON принимает объект DMS, строку или null.
func (c *coordinateRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		c.CoordinateInput = service.CoordinateInput{}
		return nil
	case len(data) > 0 && data[0] == '"':
		return json.Unmarshal(data, &c.Text)
	}
	return json.Unmarshal(data, &c.DMS)
}

type observatoryRequest struct {
	Name      string            `json:"name"`
	Website   string            `json:"website"`
	Location  string            `json:"location"`
	Longitude coordinateRequest `json:"longitude"`
	Latitude  coordinateRequest `json:"latitude"`
	Altitude  *float64          `json:"altitude"`
}

func (req observatoryRequest) input() service.ObservatoryInput {
	return service.ObservatoryInput{
		Name:      req.Name,
		Website:   req.Website,
		Location:  req.Location,
		Longitude: req.Longitude.CoordinateInput,
		Latitude:  req.Latitude.CoordinateInput,
		Altitude:  req.Altitude,
	}
}

// coordinateResponse — координата в ответе: десятичные градусы,
// компоненты DMS и строка DDD:MM:SS.ssH. Не задана — null.
type coordinateResponse struct {
	Decimal float64     `json:"decimal"`
	DMS     *coords.DMS `json:"dms"`
	Text    string      `json:"text"`
	Display string      `json:"display"`
}

func mapCoordinate(v *float64, axis coords.Axis) *coordinateResponse {
	dms := coords.Decompose(v, axis)
	if dms == nil {
		return nil
	}
	return &coordinateResponse{
		Decimal: *v,
		DMS:     dms,
		Text:    coords.FormatGeoDMS(v, axis),
		Display: dms.String(),
	}
}

type observatoryResponse struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Website   string              `json:"website"`
	Location  string              `json:"location"`
	Longitude *coordinateResponse `json:"longitude"`
	Latitude  *coordinateResponse `json:"latitude"`
	Altitude  *float64            `json:"altitude"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func mapObservatory(o *model.Observatory) observatoryResponse {
	return observatoryResponse{
		ID:        o.ID,
		Name:      o.Name,
		Website:   o.Website,
		Location:  o.Location,
		Longitude: mapCoordinate(o.Longitude, coords.Longitude),
		Latitude:  mapCoordinate(o.Latitude, coords.Latitude),
		Altitude:  o.Altitude,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

// ListObservatories — GET /api/v1/observatories.
func (h *APIHandler) ListObservatories(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Observatories.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения обсерваторий")
		return
	}
	writeJSON(w, http.StatusOK, newList(list, mapObservatory))
}

// CreateObservatory — POST /api/v1/observatories.
// Вместе с обсерваторией создаётся одноимённая группа.
func (h *APIHandler) CreateObservatory(w http.ResponseWriter, r *http.Request) {
	var req observatoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.Observatories.Create(r.Context(), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания обсерватории")
		return
	}
	writeJSON(w, http.StatusCreated, mapObservatory(o))
}

// GetObservatory — GET /api/v1/observatories/{id}.
func (h *APIHandler) GetObservatory(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Observatories.Get(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения обсерватории")
		return
	}
	writeJSON(w, http.StatusOK, mapObservatory(o))
}

// UpdateObservatory — PUT /api/v1/observatories/{id}.
func (h *APIHandler) UpdateObservatory(w http.ResponseWriter, r *http.Request) {
	var req observatoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o, err := h.svc.Observatories.Update(r.Context(), idParam(r), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления обсерватории")
		return
	}
	writeJSON(w, http.StatusOK, mapObservatory(o))
}

// DeleteObservatory — DELETE /api/v1/observatories/{id}.
func (h *APIHandler) DeleteObservatory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Observatories.Delete(r.Context(), idParam(r)); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления обсерватории")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListObservatoryTelescopes — GET /api/v1/observatories/{id}/telescopes.
func (h *APIHandler) ListObservatoryTelescopes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Observatories.Telescopes(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения телескопов обсерватории")
		return
	}
	writeJSON(w, http.StatusOK, newList(list, mapTelescope))
}

// --- Телескопы ---

type telescopeRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	ObservatoryID string  `json:"observatory_id"`
	Owner         string  `json:"owner"`
	Aperture      float64 `json:"aperture"`
	Status        string  `json:"status"`
	Website       string  `json:"website"`
}

func (req telescopeRequest) input() service.TelescopeInput {
	return service.TelescopeInput(req)
}

type telescopeResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	ObservatoryID string    `json:"observatory_id"`
	Owner         string    `json:"owner"`
	Aperture      float64   `json:"aperture"`
	Status        string    `json:"status"`
	Website       string    `json:"website"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func mapTelescope(t *model.Telescope) telescopeResponse {
	return telescopeResponse{
		ID:            t.ID,
		Name:          t.Name,
		Description:   t.Description,
		ObservatoryID: t.ObservatoryID,
		Owner:         t.Owner,
		Aperture:      t.Aperture,
		Status:        t.Status,
		Website:       t.Website,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// ListTelescopes — GET /api/v1/telescopes.
func (h *APIHandler) ListTelescopes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Equipment.ListTelescopes(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения телескопов")
		return
	}
	writeJSON(w, http.StatusOK, newList(list, mapTelescope))
}

// CreateTelescope — POST /api/v1/telescopes.
func (h *APIHandler) CreateTelescope(w http.ResponseWriter, r *http.Request) {
	var req telescopeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.Equipment.CreateTelescope(r.Context(), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания телескопа")
		return
	}
	writeJSON(w, http.StatusCreated, mapTelescope(t))
}

// GetTelescope — GET /api/v1/telescopes/{id}.
func (h *APIHandler) GetTelescope(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Equipment.GetTelescope(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения телескопа")
		return
	}
	writeJSON(w, http.StatusOK, mapTelescope(t))
}

// UpdateTelescope — PUT /api/v1/telescopes/{id}.
func (h *APIHandler) UpdateTelescope(w http.ResponseWriter, r *http.Request) {
	var req telescopeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.Equipment.UpdateTelescope(r.Context(), idParam(r), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления телескопа")
		return
	}
	writeJSON(w, http.StatusOK, mapTelescope(t))
}

// DeleteTelescope — DELETE /api/v1/telescopes/{id}.
func (h *APIHandler) DeleteTelescope(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Equipment.DeleteTelescope(r.Context(), idParam(r)); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления телескопа")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListTelescopeInstruments — GET /api/v1/telescopes/{id}/instruments.
func (h *APIHandler) ListTelescopeInstruments(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Equipment.TelescopeInstruments(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения инструментов телескопа")
		return
	}
	writeJSON(w, http.StatusOK, newList(list, mapInstrument))
}

// --- Инструменты ---

type instrumentRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	TelescopeID   string `json:"telescope_id"`
	Status        string `json:"status"`
	Website       string `json:"website"`
	Filters       string `json:"filters"`
	Configuration string `json:"configuration"`
}

func (req instrumentRequest) input() service.InstrumentInput {
	return service.InstrumentInput(req)
}

type instrumentResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	TelescopeID       string    `json:"telescope_id"`
	Status            string    `json:"status"`
	Website           string    `json:"website"`
	Filters           string    `json:"filters"`
	Configuration     string    `json:"configuration"`
	FiltersList       []string  `json:"filters_list"`
	ConfigurationList []string  `json:"configuration_list"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func mapInstrument(i *model.Instrument) instrumentResponse {
	return instrumentResponse{
		ID:                i.ID,
		Name:              i.Name,
		Description:       i.Description,
		TelescopeID:       i.TelescopeID,
		Status:            i.Status,
		Website:           i.Website,
		Filters:           i.Filters,
		Configuration:     i.Configuration,
		FiltersList:       i.FiltersList(),
		ConfigurationList: i.ConfigurationList(),
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
}

// ListInstruments — GET /api/v1/instruments.
func (h *APIHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Equipment.ListInstruments(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения инструментов")
		return
	}
	writeJSON(w, http.StatusOK, newList(list, mapInstrument))
}

// CreateInstrument — POST /api/v1/instruments.
func (h *APIHandler) CreateInstrument(w http.ResponseWriter, r *http.Request) {
	var req instrumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	i, err := h.svc.Equipment.CreateInstrument(r.Context(), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания инструмента")
		return
	}
	writeJSON(w, http.StatusCreated, mapInstrument(i))
}

// GetInstrument — GET /api/v1/instruments/{id}.
func (h *APIHandler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	i, err := h.svc.Equipment.GetInstrument(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения инструмента")
		return
	}
	writeJSON(w, http.StatusOK, mapInstrument(i))
}

// UpdateInstrument — PUT /api/v1/instruments/{id}.
func (h *APIHandler) UpdateInstrument(w http.ResponseWriter, r *http.Request) {
	var req instrumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	i, err := h.svc.Equipment.UpdateInstrument(r.Context(), idParam(r), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления инструмента")
		return
	}
	writeJSON(w, http.StatusOK, mapInstrument(i))
}

// DeleteInstrument — DELETE /api/v1/instruments/{id}.
func (h *APIHandler) DeleteInstrument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Equipment.DeleteInstrument(r.Context(), idParam(r)); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления инструмента")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

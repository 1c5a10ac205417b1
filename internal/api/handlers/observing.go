// observing.go — обработчики /api/v1/observing-runs и /api/v1/observing-blocks.
// Блоки фильтруются по видимости для текущего пользователя.
package handlers

import (
	"net/http"
	"time"

	"github.com/noeliagrande/dwarfs4mosaic/internal/api/middleware"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
)

// --- Кампании ---

type runRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	InstrumentID  string   `json:"instrument_id"`
	StartDate     *string  `json:"start_date"`
	EndDate       *string  `json:"end_date"`
	ResearcherIDs []string `json:"researcher_ids"`
	Comments      string   `json:"comments"`
}

func (req runRequest) input() (service.RunInput, error) {
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return service.RunInput{}, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return service.RunInput{}, err
	}
	return service.RunInput{
		Name:          req.Name,
		Description:   req.Description,
		InstrumentID:  req.InstrumentID,
		StartDate:     start,
		EndDate:       end,
		ResearcherIDs: req.ResearcherIDs,
		Comments:      req.Comments,
	}, nil
}

type runResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	InstrumentID  string    `json:"instrument_id"`
	StartDate     *string   `json:"start_date"`
	EndDate       *string   `json:"end_date"`
	ResearcherIDs []string  `json:"researcher_ids"`
	Comments      string    `json:"comments"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func mapRun(run *model.ObservingRun) runResponse {
	return runResponse{
		ID:            run.ID,
		Name:          run.Name,
		Description:   run.Description,
		InstrumentID:  run.InstrumentID,
		StartDate:     formatDate(run.StartDate),
		EndDate:       formatDate(run.EndDate),
		ResearcherIDs: orEmpty(run.ResearcherIDs),
		Comments:      run.Comments,
		CreatedAt:     run.CreatedAt,
		UpdatedAt:     run.UpdatedAt,
	}
}

type runDetailResponse struct {
	runResponse
	Instrument  instrumentResponse   `json:"instrument"`
	Blocks      []blockResponse      `json:"blocks"`
	Researchers []researcherResponse `json:"researchers"`
}

// ListRuns — GET /api/v1/observing-runs[?instrument_id=].
func (h *APIHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	instrumentID, err := queryID(r, "instrument_id")
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения кампаний")
		return
	}
	list, err := h.svc.Observing.ListRuns(r.Context(), instrumentID)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения кампаний")
		return
	}
	writeJSON(w, http.StatusOK, newList(list, mapRun))
}

// CreateRun — POST /api/v1/observing-runs.
func (h *APIHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания кампании")
		return
	}
	run, err := h.svc.Observing.CreateRun(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания кампании")
		return
	}
	writeJSON(w, http.StatusCreated, mapRun(run))
}

// GetRun — GET /api/v1/observing-runs/{id}.
// Возвращает кампанию с инструментом, участниками и видимыми блоками.
func (h *APIHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Observing.RunDetail(r.Context(), middleware.ViewerFromContext(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения кампании")
		return
	}
	resp := runDetailResponse{
		runResponse: mapRun(d.Run),
		Instrument:  mapInstrument(d.Instrument),
		Blocks:      make([]blockResponse, 0, len(d.Blocks)),
		Researchers: newList(d.Researchers, mapResearcher).Items,
	}
	for _, b := range d.Blocks {
		resp.Blocks = append(resp.Blocks, mapBlock(b, b.DetailedName(d.Instrument.Name)))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateRun — PUT /api/v1/observing-runs/{id}.
func (h *APIHandler) UpdateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления кампании")
		return
	}
	run, err := h.svc.Observing.UpdateRun(r.Context(), idParam(r), in)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления кампании")
		return
	}
	writeJSON(w, http.StatusOK, mapRun(run))
}

// DeleteRun — DELETE /api/v1/observing-runs/{id}.
// Кампания с блоками не удаляется (IN_USE).
func (h *APIHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Observing.DeleteRun(r.Context(), idParam(r)); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления кампании")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRunInstrumentChoices — GET /api/v1/observing-runs/{id}/instrument-choices.
// Фильтры и конфигурации инструмента кампании для формы блока.
func (h *APIHandler) GetRunInstrumentChoices(w http.ResponseWriter, r *http.Request) {
	choices, err := h.svc.Observing.InstrumentChoices(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения параметров инструмента")
		return
	}
	writeJSON(w, http.StatusOK, choices)
}

// --- Блоки ---

type blockRequest struct {
	Name              string   `json:"name"`
	RunID             string   `json:"run_id"`
	Description       string   `json:"description"`
	StartTime         *string  `json:"start_time"`
	EndTime           string   `json:"end_time"`
	TargetIDs         []string `json:"target_ids"`
	ObservationMode   string   `json:"observation_mode"`
	Filters           string   `json:"filters"`
	ExposureTime      *float64 `json:"exposure_time"`
	Seeing            *float64 `json:"seeing"`
	WeatherConditions string   `json:"weather_conditions"`
	Comments          string   `json:"comments"`
	AllowedGroupIDs   []string `json:"allowed_group_ids"`
}

func (req blockRequest) input() (service.BlockInput, error) {
	start, err := parseDateTime("start_time", req.StartTime)
	if err != nil {
		return service.BlockInput{}, err
	}
	return service.BlockInput{
		Name:              req.Name,
		RunID:             req.RunID,
		Description:       req.Description,
		StartTime:         start,
		EndTime:           req.EndTime,
		TargetIDs:         req.TargetIDs,
		ObservationMode:   req.ObservationMode,
		Filters:           req.Filters,
		ExposureSeconds:   req.ExposureTime,
		Seeing:            req.Seeing,
		WeatherConditions: req.WeatherConditions,
		Comments:          req.Comments,
		AllowedGroupIDs:   req.AllowedGroupIDs,
	}, nil
}

type blockResponse struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	DetailedName      string     `json:"detailed_name,omitempty"`
	RunID             string     `json:"run_id"`
	Description       string     `json:"description"`
	StartTime         *time.Time `json:"start_time"`
	EndTime           *string    `json:"end_time"`
	TargetIDs         []string   `json:"target_ids"`
	ObservationMode   string     `json:"observation_mode"`
	Filters           string     `json:"filters"`
	ExposureTime      *float64   `json:"exposure_time"`
	Seeing            *float64   `json:"seeing"`
	WeatherConditions string     `json:"weather_conditions"`
	Comments          string     `json:"comments"`
	AllowedGroupIDs   []string   `json:"allowed_group_ids"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// mapBlock конвертирует блок; detailedName пустой — поле опускается.
func mapBlock(b *model.ObservingBlock, detailedName string) blockResponse {
	return blockResponse{
		ID:                b.ID,
		Name:              b.Name,
		DetailedName:      detailedName,
		RunID:             b.RunID,
		Description:       b.Description,
		StartTime:         b.StartTime,
		EndTime:           b.EndTime,
		TargetIDs:         orEmpty(b.TargetIDs),
		ObservationMode:   b.ObservationMode,
		Filters:           b.Filters,
		ExposureTime:      b.ExposureSeconds,
		Seeing:            b.Seeing,
		WeatherConditions: b.WeatherConditions,
		Comments:          b.Comments,
		AllowedGroupIDs:   orEmpty(b.AllowedGroupIDs),
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}

// ListBlocks — GET /api/v1/observing-blocks[?run_id=&target_id=].
// Возвращает только блоки, видимые текущему пользователю.
func (h *APIHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	var filter repository.BlockFilter
	var err error
	if filter.RunID, err = queryID(r, "run_id"); err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения блоков")
		return
	}
	if filter.TargetID, err = queryID(r, "target_id"); err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения блоков")
		return
	}
	blocks, err := h.svc.Observing.ListBlocks(r.Context(), middleware.ViewerFromContext(r.Context()), filter)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения блоков")
		return
	}
	writeJSON(w, http.StatusOK, newList(blocks, func(b *model.ObservingBlock) blockResponse {
		return mapBlock(b, "")
	}))
}

// CreateBlock — POST /api/v1/observing-blocks.
func (h *APIHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания блока")
		return
	}
	b, err := h.svc.Observing.CreateBlock(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания блока")
		return
	}
	writeJSON(w, http.StatusCreated, mapBlock(b, h.svc.Observing.BlockDetailedName(r.Context(), b)))
}

// GetBlock — GET /api/v1/observing-blocks/{id}.
// Невидимый блок возвращает 404.
func (h *APIHandler) GetBlock(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Observing.GetBlock(r.Context(), middleware.ViewerFromContext(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения блока")
		return
	}
	writeJSON(w, http.StatusOK, mapBlock(b, h.svc.Observing.BlockDetailedName(r.Context(), b)))
}

// UpdateBlock — PUT /api/v1/observing-blocks/{id}.
func (h *APIHandler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления блока")
		return
	}
	b, err := h.svc.Observing.UpdateBlock(r.Context(), idParam(r), in)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления блока")
		return
	}
	writeJSON(w, http.StatusOK, mapBlock(b, h.svc.Observing.BlockDetailedName(r.Context(), b)))
}

// DeleteBlock — DELETE /api/v1/observing-blocks/{id}.
func (h *APIHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Observing.DeleteBlock(r.Context(), idParam(r)); err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления блока")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

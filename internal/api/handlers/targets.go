// targets.go — обработчики /api/v1/targets: цели наблюдения,
// загрузка и удаление файлов, список файлов данных и их выдача.
package handlers

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/noeliagrande/dwarfs4mosaic/internal/api/middleware"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
	"github.com/noeliagrande/dwarfs4mosaic/internal/storage/targetfiles"
)

// multipartMemory — часть multipart-формы, которая держится в памяти;
// остальное пишется во временные файлы.
const multipartMemory = 32 << 20

type targetRequest struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	RightAscension string   `json:"right_ascension"`
	Declination    string   `json:"declination"`
	Magnitude      *float64 `json:"magnitude"`
	Redshift       *float64 `json:"redshift"`
	Size           *float64 `json:"size"`
	Semester       string   `json:"semester"`
	Comments       string   `json:"comments"`
}

func (req targetRequest) input() service.TargetInput {
	return service.TargetInput(req)
}

type targetResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	FolderName     string    `json:"folder_name"`
	Type           string    `json:"type"`
	RightAscension string    `json:"right_ascension"`
	Declination    string    `json:"declination"`
	Magnitude      *float64  `json:"magnitude"`
	Redshift       *float64  `json:"redshift"`
	Size           *float64  `json:"size"`
	Semester       string    `json:"semester"`
	Comments       string    `json:"comments"`
	ImageName      string    `json:"image_name"`
	ImageURL       string    `json:"image_url"`
	DatafilesPath  string    `json:"datafiles_path"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func mapTarget(t *model.Target, imageURL string) targetResponse {
	return targetResponse{
		ID:             t.ID,
		Name:           t.Name,
		FolderName:     t.FolderName,
		Type:           model.NormalizeTargetType(t.Type),
		RightAscension: t.RightAscension,
		Declination:    t.Declination,
		Magnitude:      t.Magnitude,
		Redshift:       t.Redshift,
		Size:           t.Size,
		Semester:       t.Semester,
		Comments:       t.Comments,
		ImageName:      targetfiles.ImageName(t.Image),
		ImageURL:       imageURL,
		DatafilesPath:  t.DatafilesPath,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (h *APIHandler) mapTarget(t *model.Target) targetResponse {
	return mapTarget(t, h.svc.Targets.ImageURL(t))
}

// fileOutcomeResponse — результат операции над одним файлом.
type fileOutcomeResponse struct {
	Name   string `json:"name"`
	Op     string `json:"op"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func mapOutcome(o targetfiles.FileOutcome) fileOutcomeResponse {
	resp := fileOutcomeResponse{Name: o.Name, Op: string(o.Op), Status: "ok"}
	if !o.OK() {
		resp.Status = "error"
		resp.Error = o.Err.Error()
	}
	return resp
}

type filesReportResponse struct {
	Target targetResponse        `json:"target"`
	Files  []fileOutcomeResponse `json:"files"`
}

type targetDeletionResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Warning string `json:"warning,omitempty"`
}

type downloadRequest struct {
	Files []string `json:"files"`
}

// ListTargets — GET /api/v1/targets. Только цели, видимые пользователю.
func (h *APIHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Targets.List(r.Context(), middleware.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения целей")
		return
	}
	writeJSON(w, http.StatusOK, newList(list, h.mapTarget))
}

// CreateTarget — POST /api/v1/targets.
// Создаёт каталог цели <media_root>/<folder>/{image,datafiles} и запись.
func (h *APIHandler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.Targets.Create(r.Context(), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка создания цели")
		return
	}
	writeJSON(w, http.StatusCreated, h.mapTarget(t))
}

// GetTarget — GET /api/v1/targets/{id}. Невидимая цель — 404.
func (h *APIHandler) GetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Targets.GetVisible(r.Context(), middleware.ViewerFromContext(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения цели")
		return
	}
	writeJSON(w, http.StatusOK, h.mapTarget(t))
}

// UpdateTarget — PUT /api/v1/targets/{id}. Имя цели не меняется.
func (h *APIHandler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	var req targetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.Targets.Update(r.Context(), idParam(r), req.input())
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка обновления цели")
		return
	}
	writeJSON(w, http.StatusOK, h.mapTarget(t))
}

// DeleteTarget — DELETE /api/v1/targets/{id}.
// Запись удаляется до каталога; неполная очистка каталога
// возвращается как warning при статусе 200.
func (h *APIHandler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	del, err := h.svc.Targets.Delete(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка удаления цели")
		return
	}
	writeJSON(w, http.StatusOK, targetDeletionResponse{
		ID:      del.Target.ID,
		Name:    del.Target.Name,
		Warning: del.Warning,
	})
}

// TargetEditableFields — GET /api/v1/targets/{id}/editable-fields
// и GET /api/v1/targets/editable-fields (новая цель).
func (h *APIHandler) TargetEditableFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.svc.Targets.EditableFields(r.Context(), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения редактируемых полей")
		return
	}
	writeJSON(w, http.StatusOK, fieldsResponse{Fields: orEmpty(fields)})
}

// UpdateTargetFiles — POST /api/v1/targets/{id}/files.
// multipart/form-data: image (файл), delete_image (флаг),
// datafiles (файлы), delete_datafiles (имена). Ответ — итог по каждому файлу.
func (h *APIHandler) UpdateTargetFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.writeServiceError(w, r, maxBytes, "Ошибка загрузки файлов")
			return
		}
		h.writeServiceError(w, r, &service.FieldError{Field: "files", Err: err}, "Ошибка загрузки файлов")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	change, closeAll, err := filesChange(r.MultipartForm)
	defer closeAll()
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка чтения загруженных файлов")
		return
	}

	report, err := h.svc.Targets.UpdateFiles(r.Context(), idParam(r), change)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка изменения файлов цели")
		return
	}
	resp := filesReportResponse{
		Target: h.mapTarget(report.Target),
		Files:  make([]fileOutcomeResponse, 0, len(report.Outcomes)),
	}
	for _, o := range report.Outcomes {
		resp.Files = append(resp.Files, mapOutcome(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// filesChange собирает изменения файлов из multipart-формы.
// closeAll закрывает открытые файлы и вызывается всегда.
func filesChange(form *multipart.Form) (service.FilesChange, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	open := func(fh *multipart.FileHeader) (*targetfiles.Upload, error) {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		opened = append(opened, f)
		return &targetfiles.Upload{Filename: fh.Filename, Content: f}, nil
	}

	var change service.FilesChange
	if images := form.File["image"]; len(images) > 0 {
		up, err := open(images[0])
		if err != nil {
			return change, closeAll, err
		}
		change.Image = up
	}
	for _, fh := range form.File["datafiles"] {
		up, err := open(fh)
		if err != nil {
			return change, closeAll, err
		}
		change.Datafiles = append(change.Datafiles, *up)
	}
	change.DeleteImage = formBool(first(form.Value["delete_image"]))
	for _, v := range form.Value["delete_datafiles"] {
		// допускается как повтор поля, так и список через запятую
		change.DeleteDatafiles = append(change.DeleteDatafiles, model.SplitList(v)...)
	}
	return change, closeAll, nil
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// formBool разбирает флаг формы: true, 1, on, yes.
func formBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "on" || v == "yes" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// ListTargetFiles — GET /api/v1/targets/{id}/files.
// Цель, невидимая текущему пользователю, возвращает 404.
func (h *APIHandler) ListTargetFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Targets.ListFiles(r.Context(), middleware.ViewerFromContext(r.Context()), idParam(r))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения файлов цели")
		return
	}
	if files == nil {
		files = []targetfiles.FileInfo{}
	}
	writeJSON(w, http.StatusOK, listResponse[targetfiles.FileInfo]{Items: files, Total: len(files)})
}

// DownloadTargetFiles — POST /api/v1/targets/{id}/download.
// Один файл выдаётся как есть, несколько — zip-архивом <folder>_files.zip.
func (h *APIHandler) DownloadTargetFiles(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.svc.Targets.Download(r.Context(), middleware.ViewerFromContext(r.Context()), idParam(r), req.Files)
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка выдачи файлов цели")
		return
	}
	defer func() { _ = d.Close() }()

	contentType := "application/octet-stream"
	if d.Archive {
		contentType = "application/zip"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	if d.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	// Заголовки уже отправлены, ошибку можно только залогировать
	if _, err := d.WriteTo(w); err != nil {
		h.logger.Error("Ошибка передачи файлов цели",
			"target_id", idParam(r),
			"filename", d.Filename,
			"error", err,
		)
	}
}

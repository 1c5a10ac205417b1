// home.go — обработчик /api/v1/home: видимые цели с файлами данных,
// кампании и инструменты, в которых они наблюдались.
package handlers

import (
	"net/http"

	"github.com/noeliagrande/dwarfs4mosaic/internal/api/middleware"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
	"github.com/noeliagrande/dwarfs4mosaic/internal/storage/targetfiles"
)

type homeTargetResponse struct {
	targetResponse
	Datafiles []targetfiles.FileInfo `json:"datafiles"`
}

type homeResponse struct {
	Targets     []homeTargetResponse `json:"targets"`
	Runs        []runResponse        `json:"runs"`
	Instruments []instrumentResponse `json:"instruments"`
}

func mapHomeTarget(ht service.HomeTarget) homeTargetResponse {
	files := ht.Datafiles
	if files == nil {
		files = []targetfiles.FileInfo{}
	}
	return homeTargetResponse{
		targetResponse: mapTarget(ht.Target, ht.ImageURL),
		Datafiles:      files,
	}
}

// GetHome — GET /api/v1/home.
func (h *APIHandler) GetHome(w http.ResponseWriter, r *http.Request) {
	home, err := h.svc.Home.Build(r.Context(), middleware.ViewerFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err, "Ошибка получения главной страницы")
		return
	}
	writeJSON(w, http.StatusOK, homeResponse{
		Targets:     newList(home.Targets, mapHomeTarget).Items,
		Runs:        newList(home.Runs, mapRun).Items,
		Instruments: newList(home.Instruments, mapInstrument).Items,
	})
}

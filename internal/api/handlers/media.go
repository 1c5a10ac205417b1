// media.go — раздача файлов целей из media root только для чтения.
// Каталоги не перечисляются; временные файлы загрузки (.upload-*) и
// другие скрытые файлы не отдаются. Файл отдаётся, только если цель,
// которой принадлежит каталог, видима пользователю.
package handlers

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/noeliagrande/dwarfs4mosaic/internal/api/middleware"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/rbac"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
)

// FolderAccess проверяет доступ к каталогу цели. Реализуется *service.TargetService.
type FolderAccess interface {
	VisibleFolder(ctx context.Context, viewer *rbac.Viewer, folder string) error
}

// NewMediaHandler возвращает обработчик файлов mediaRoot по префиксу mediaURL.
func NewMediaHandler(mediaRoot, mediaURL string, access FolderAccess, logger *slog.Logger) http.Handler {
	prefix := strings.TrimSuffix(mediaURL, "/")
	files := http.FileServer(filesOnly{http.Dir(mediaRoot)})
	logger = logger.With(slog.String("component", "media"))

	gated := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		folder := topFolder(r.URL.Path)
		if folder == "" {
			http.NotFound(w, r)
			return
		}
		err := access.VisibleFolder(r.Context(), middleware.ViewerFromContext(r.Context()), folder)
		switch {
		case errors.Is(err, service.ErrNotFound):
			http.NotFound(w, r)
			return
		case err != nil:
			logger.Error("Ошибка проверки доступа к файлам цели",
				slog.String("folder", folder),
				slog.String("error", err.Error()),
			)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		files.ServeHTTP(w, r)
	})
	return http.StripPrefix(prefix, gated)
}

// MediaFiles возвращает обработчик media root с проверкой видимости целей.
func (h *APIHandler) MediaFiles(mediaRoot, mediaURL string) http.Handler {
	return NewMediaHandler(mediaRoot, mediaURL, h.svc.Targets, h.logger)
}

// topFolder возвращает первый сегмент очищенного пути — каталог цели.
func topFolder(p string) string {
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	folder, _, _ := strings.Cut(clean, "/")
	return folder
}

// filesOnly — файловая система без каталогов и скрытых файлов.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return nil, fs.ErrNotExist
		}
	}
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// params.go — проверка идентификаторов в пути запроса.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/noeliagrande/dwarfs4mosaic/internal/api/errors"
)

// RequireUUIDParams возвращает middleware, отвечающий 404, если параметр
// пути из names задан и не является UUID. Параметры chi доступны только
// после маршрутизации, поэтому middleware подключается через With или Group.
func RequireUUIDParams(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, name := range names {
				v := chi.URLParam(r, name)
				if v != "" && uuid.Validate(v) != nil {
					apierrors.NotFound(w, "Ресурс не найден")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

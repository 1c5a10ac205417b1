// Пакет server — HTTP-сервер каталога с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/noeliagrande/dwarfs4mosaic/internal/api/handlers"
	"github.com/noeliagrande/dwarfs4mosaic/internal/api/middleware"
	"github.com/noeliagrande/dwarfs4mosaic/internal/config"
)

// Server — HTTP-сервер каталога.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (nil — без аутентификации, только для тестов).
func New(cfg *config.Config, logger *slog.Logger, api *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(cfg, logger, api, jwtAuth),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты API.
// Health и metrics доступны без токена, остальное требует JWT.
// Чтение доступно любому активному пользователю, изменения и
// управление пользователями — только суперпользователю.
func NewRouter(cfg *config.Config, logger *slog.Logger, api *handlers.APIHandler, jwtAuth *middleware.JWTAuth) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Health и metrics проверяются Kubernetes напрямую
	router.Get("/health/live", api.HealthLive)
	router.Get("/health/ready", api.HealthReady)
	router.Get("/metrics", api.GetMetrics)

	router.Group(func(r chi.Router) {
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware())
		}

		r.Handle(cfg.MediaURL+"*", api.MediaFiles(cfg.MediaRoot, cfg.MediaURL))

		r.Route("/api/v1", func(r chi.Router) {
			r = r.With(middleware.RequireUUIDParams("id", "userID"))

			r.Get("/me", api.GetMe)
			r.Get("/home", api.GetHome)

			r.Get("/observatories", api.ListObservatories)
			r.Get("/observatories/{id}", api.GetObservatory)
			r.Get("/observatories/{id}/telescopes", api.ListObservatoryTelescopes)
			r.Get("/telescopes", api.ListTelescopes)
			r.Get("/telescopes/{id}", api.GetTelescope)
			r.Get("/telescopes/{id}/instruments", api.ListTelescopeInstruments)
			r.Get("/instruments", api.ListInstruments)
			r.Get("/instruments/{id}", api.GetInstrument)

			r.Get("/observing-runs", api.ListRuns)
			r.Get("/observing-runs/{id}", api.GetRun)
			r.Get("/observing-runs/{id}/instrument-choices", api.GetRunInstrumentChoices)
			r.Get("/observing-blocks", api.ListBlocks)
			r.Get("/observing-blocks/{id}", api.GetBlock)

			r.Get("/targets", api.ListTargets)
			r.Get("/targets/{id}", api.GetTarget)
			r.Get("/targets/{id}/files", api.ListTargetFiles)
			r.Post("/targets/{id}/download", api.DownloadTargetFiles)

			// Изменения и администрирование
			r.Group(func(r chi.Router) {
				if jwtAuth != nil {
					r.Use(middleware.RequireSuperuser())
				}

				r.Post("/observatories", api.CreateObservatory)
				r.Put("/observatories/{id}", api.UpdateObservatory)
				r.Delete("/observatories/{id}", api.DeleteObservatory)
				r.Post("/telescopes", api.CreateTelescope)
				r.Put("/telescopes/{id}", api.UpdateTelescope)
				r.Delete("/telescopes/{id}", api.DeleteTelescope)
				r.Post("/instruments", api.CreateInstrument)
				r.Put("/instruments/{id}", api.UpdateInstrument)
				r.Delete("/instruments/{id}", api.DeleteInstrument)

				r.Post("/observing-runs", api.CreateRun)
				r.Put("/observing-runs/{id}", api.UpdateRun)
				r.Delete("/observing-runs/{id}", api.DeleteRun)
				r.Post("/observing-blocks", api.CreateBlock)
				r.Put("/observing-blocks/{id}", api.UpdateBlock)
				r.Delete("/observing-blocks/{id}", api.DeleteBlock)

				r.Post("/targets", api.CreateTarget)
				r.Get("/targets/editable-fields", api.TargetEditableFields)
				r.Put("/targets/{id}", api.UpdateTarget)
				r.Delete("/targets/{id}", api.DeleteTarget)
				r.Get("/targets/{id}/editable-fields", api.TargetEditableFields)
				r.Post("/targets/{id}/files", api.UpdateTargetFiles)

				r.Get("/users", api.ListUsers)
				r.Post("/users", api.CreateUser)
				r.Get("/users/{id}", api.GetUser)
				r.Put("/users/{id}", api.UpdateUser)
				r.Delete("/users/{id}", api.DeleteUser)

				r.Get("/researchers", api.ListResearchers)
				r.Get("/researchers/editable-fields", api.ResearcherEditableFields)
				r.Get("/researchers/{id}", api.GetResearcher)
				r.Put("/researchers/{id}", api.UpdateResearcher)
				r.Delete("/researchers/{id}", api.DeleteResearcher)
				r.Get("/researchers/{id}/editable-fields", api.ResearcherEditableFields)

				r.Get("/groups", api.ListGroups)
				r.Post("/groups", api.CreateGroup)
				r.Get("/groups/{id}", api.GetGroup)
				r.Put("/groups/{id}", api.RenameGroup)
				r.Delete("/groups/{id}", api.DeleteGroup)
				r.Get("/groups/{id}/members", api.ListGroupMembers)
				r.Put("/groups/{id}/members/{userID}", api.AddGroupMember)
				r.Delete("/groups/{id}/members/{userID}", api.RemoveGroupMember)
				r.Get("/groups/{id}/blocks", api.GetGroupBlocks)
				r.Put("/groups/{id}/blocks", api.SetGroupBlocks)
			})
		})
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}

// Точка входа каталога наблюдений dwarfs4mosaic.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// создаёт менеджер файлов целей, сервисный слой и API handlers,
// запускает мониторинг зависимостей и HTTP-сервер с JWT middleware
// и graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/noeliagrande/dwarfs4mosaic/internal/api/handlers"
	"github.com/noeliagrande/dwarfs4mosaic/internal/api/middleware"
	"github.com/noeliagrande/dwarfs4mosaic/internal/config"
	"github.com/noeliagrande/dwarfs4mosaic/internal/database"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
	"github.com/noeliagrande/dwarfs4mosaic/internal/server"
	"github.com/noeliagrande/dwarfs4mosaic/internal/service"
	"github.com/noeliagrande/dwarfs4mosaic/internal/storage/targetfiles"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Каталог наблюдений запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("DW_DEPHEALTH_GROUP") == "" {
		logger.Warn("DW_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("Каталог наблюдений остановлен с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Каталог наблюдений остановлен")
}

// run поднимает зависимости и обслуживает запросы до сигнала завершения.
// Ресурсы освобождаются отложенными вызовами до возврата, в том числе при ошибке.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return fmt.Errorf("миграции БД: %w", err)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("подключение к PostgreSQL: %w", err)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Файлы целей в media root
	files, err := targetfiles.New(cfg.MediaRoot, cfg.MediaURL, logger)
	if err != nil {
		return fmt.Errorf("media root %s: %w", cfg.MediaRoot, err)
	}

	// 6. Repositories
	repos := repository.NewRepositories(pool)
	tx := repository.NewTxRunner(pool)

	// 7. Services
	identities := service.NewIdentityCache(cfg.IdentityCacheSize, cfg.IdentityCacheTTL)
	identitySvc := service.NewIdentityService(repos, identities, logger)
	svc := handlers.Services{
		Users:         service.NewUserService(repos, tx, identities, logger),
		Researchers:   service.NewResearcherService(repos, tx, identities, logger),
		Groups:        service.NewGroupService(repos, identities, logger),
		Observatories: service.NewObservatoryService(repos, tx, identities, logger),
		Equipment:     service.NewEquipmentService(repos, logger),
		Observing:     service.NewObservingService(repos, logger),
		Targets:       service.NewTargetService(repos, files, logger),
		Home:          service.NewHomeService(repos, files, logger),
	}

	// 8. Readiness checkers (PostgreSQL + JWKS)
	pgChecker := database.NewReadinessChecker(pool)
	idpChecker, err := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		return fmt.Errorf("JWKS readiness checker: %w", err)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, idpChecker)

	// 9. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, svc, cfg.MaxUploadBytes, logger)

	// 10. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		identitySvc,
		cfg.RoleAdminGroups,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		return fmt.Errorf("JWT middleware: %w", err)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 11. topologymetrics — мониторинг зависимостей (PostgreSQL + JWKS)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "dwarfs-catalog",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PGConnURL:     cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CustomCA:      cfg.CACertPath != "",
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		defer dephealthSvc.Stop()
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		return fmt.Errorf("HTTP-сервер: %w", err)
	}
	return nil
}

// home.go — главная страница: цели, видимые пользователю, с их файлами,
// а также кампании и инструменты, в которых эти цели наблюдались.
package service

import (
	"context"
	"log/slog"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/rbac"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
	"github.com/noeliagrande/dwarfs4mosaic/internal/storage/targetfiles"
)

// HomeTarget — видимая цель с изображением и файлами данных.
type HomeTarget struct {
	Target    *model.Target
	ImageURL  string
	Datafiles []targetfiles.FileInfo
}

// Home — содержимое главной страницы.
type Home struct {
	Targets     []HomeTarget
	Runs        []*model.ObservingRun
	Instruments []*model.Instrument
}

// HomeService — сборка главной страницы.
type HomeService struct {
	repos  *repository.Repositories
	files  TargetFiles
	logger *slog.Logger
}

// NewHomeService создаёт сервис главной страницы.
func NewHomeService(repos *repository.Repositories, files TargetFiles, logger *slog.Logger) *HomeService {
	return &HomeService{
		repos:  repos,
		files:  files,
		logger: logger.With(slog.String("component", "home_service")),
	}
}

// Build собирает главную страницу для viewer.
// Кампании берутся из видимых блоков видимых целей, без повторов по имени;
// инструменты — из этих кампаний, без повторов по имени.
func (s *HomeService) Build(ctx context.Context, viewer *rbac.Viewer) (*Home, error) {
	targets, err := s.repos.Targets.List(ctx)
	if err != nil {
		return nil, mapRepoError(err, "получение списка целей")
	}
	blocks, err := s.repos.Blocks.List(ctx, repository.BlockFilter{})
	if err != nil {
		return nil, mapRepoError(err, "получение списка блоков")
	}

	visible := rbac.VisibleTargets(viewer, targets, blocksByTarget(blocks))

	home := &Home{Targets: make([]HomeTarget, 0, len(visible))}
	visibleIDs := make(map[string]bool, len(visible))
	for _, t := range visible {
		visibleIDs[t.ID] = true
		files, err := s.files.ListDatafiles(t.DatafilesPath)
		if err != nil {
			// Недоступный каталог не скрывает цель
			s.logger.Warn("Не удалось прочитать файлы цели",
				slog.String("target_id", t.ID),
				slog.String("error", err.Error()),
			)
			files = []targetfiles.FileInfo{}
		}
		home.Targets = append(home.Targets, HomeTarget{
			Target:    t,
			ImageURL:  s.files.ImageURL(t.Image),
			Datafiles: files,
		})
	}

	runIDs := make([]string, 0)
	seenRun := make(map[string]bool)
	for _, b := range rbac.VisibleBlocks(viewer, blocks) {
		if seenRun[b.RunID] || !observesAny(b, visibleIDs) {
			continue
		}
		seenRun[b.RunID] = true
		runIDs = append(runIDs, b.RunID)
	}
	if len(runIDs) == 0 {
		home.Runs = []*model.ObservingRun{}
		home.Instruments = []*model.Instrument{}
		return home, nil
	}

	runs, err := s.repos.Runs.ListByIDs(ctx, runIDs)
	if err != nil {
		return nil, mapRepoError(err, "получение кампаний")
	}
	home.Runs = make([]*model.ObservingRun, 0, len(runs))
	instrumentIDs := make([]string, 0, len(runs))
	seenName := make(map[string]bool)
	for _, r := range runs {
		instrumentIDs = append(instrumentIDs, r.InstrumentID)
		if seenName[r.Name] {
			continue
		}
		seenName[r.Name] = true
		home.Runs = append(home.Runs, r)
	}

	instruments, err := s.repos.Instruments.ListByIDs(ctx, uniqueIDs(instrumentIDs))
	if err != nil {
		return nil, mapRepoError(err, "получение инструментов")
	}
	home.Instruments = make([]*model.Instrument, 0, len(instruments))
	seenName = make(map[string]bool)
	for _, i := range instruments {
		if seenName[i.Name] {
			continue
		}
		seenName[i.Name] = true
		home.Instruments = append(home.Instruments, i)
	}
	return home, nil
}

func observesAny(b *model.ObservingBlock, targetIDs map[string]bool) bool {
	for _, id := range b.TargetIDs {
		if targetIDs[id] {
			return true
		}
	}
	return false
}

// observing.go — сервис наблюдательных кампаний и блоков наблюдений.
// Списки и карточки блоков фильтруются по видимости для пользователя.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/rbac"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
)

// RunInput — поля наблюдательной кампании.
type RunInput struct {
	Name          string
	Description   string
	InstrumentID  string
	StartDate     *time.Time
	EndDate       *time.Time
	ResearcherIDs []string
	Comments      string
}

// RunDetail — кампания с видимыми блоками и участниками.
type RunDetail struct {
	Run         *model.ObservingRun
	Instrument  *model.Instrument
	Blocks      []*model.ObservingBlock
	Researchers []*model.Researcher
}

// BlockInput — поля блока наблюдений.
type BlockInput struct {
	Name              string
	RunID             string
	Description       string
	StartTime         *time.Time
	// EndTime — время суток HH:MM или HH:MM:SS, пустая строка — не задано
	EndTime           string
	TargetIDs         []string
	ObservationMode   string
	Filters           string
	ExposureSeconds   *float64
	Seeing            *float64
	WeatherConditions string
	Comments          string
	AllowedGroupIDs   []string
}

// ObservingService — сервис кампаний и блоков наблюдений.
type ObservingService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewObservingService создаёт сервис наблюдений.
func NewObservingService(repos *repository.Repositories, logger *slog.Logger) *ObservingService {
	return &ObservingService{
		repos:  repos,
		logger: logger.With(slog.String("component", "observing_service")),
	}
}

// --- Кампании ---

// ListRuns возвращает кампании, при instrumentID != nil — только этого инструмента.
func (s *ObservingService) ListRuns(ctx context.Context, instrumentID *string) ([]*model.ObservingRun, error) {
	list, err := s.repos.Runs.List(ctx, instrumentID)
	if err != nil {
		return nil, mapRepoError(err, "получение списка кампаний")
	}
	return list, nil
}

// GetRun возвращает кампанию по ID.
func (s *ObservingService) GetRun(ctx context.Context, id string) (*model.ObservingRun, error) {
	run, err := s.repos.Runs.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение кампании")
	}
	return run, nil
}

// RunDetail возвращает кампанию с инструментом, участниками
// и блоками, видимыми viewer.
func (s *ObservingService) RunDetail(ctx context.Context, viewer *rbac.Viewer, id string) (*RunDetail, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	instrument, err := s.repos.Instruments.GetByID(ctx, run.InstrumentID)
	if err != nil {
		return nil, mapRepoError(err, "получение инструмента кампании")
	}
	blocks, err := s.repos.Blocks.List(ctx, repository.BlockFilter{RunID: &id})
	if err != nil {
		return nil, mapRepoError(err, "получение блоков кампании")
	}
	researchers, err := s.repos.Researchers.ListByRun(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение участников кампании")
	}
	return &RunDetail{
		Run:         run,
		Instrument:  instrument,
		Blocks:      rbac.VisibleBlocks(viewer, blocks),
		Researchers: researchers,
	}, nil
}

// InstrumentChoices возвращает фильтры и конфигурации инструмента кампании.
func (s *ObservingService) InstrumentChoices(ctx context.Context, runID string) (*InstrumentChoices, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	instrument, err := s.repos.Instruments.GetByID(ctx, run.InstrumentID)
	if err != nil {
		return nil, mapRepoError(err, "получение инструмента кампании")
	}
	return &InstrumentChoices{
		Filters:       instrument.FiltersList(),
		Configuration: instrument.ConfigurationList(),
	}, nil
}

// CreateRun создаёт кампанию.
func (s *ObservingService) CreateRun(ctx context.Context, in RunInput) (*model.ObservingRun, error) {
	run := &model.ObservingRun{ID: uuid.New().String()}
	if err := applyRunInput(run, in); err != nil {
		return nil, err
	}
	if err := s.repos.Runs.Create(ctx, run); err != nil {
		return nil, mapRepoError(err, "создание кампании")
	}
	s.logger.Info("Кампания создана", slog.String("id", run.ID), slog.String("name", run.Name))
	return run, nil
}

// UpdateRun обновляет кампанию.
func (s *ObservingService) UpdateRun(ctx context.Context, id string, in RunInput) (*model.ObservingRun, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyRunInput(run, in); err != nil {
		return nil, err
	}
	if err := s.repos.Runs.Update(ctx, run); err != nil {
		return nil, mapRepoError(err, "обновление кампании")
	}
	s.logger.Info("Кампания обновлена", slog.String("id", run.ID))
	return run, nil
}

// DeleteRun удаляет кампанию. Кампания с блоками не удаляется.
func (s *ObservingService) DeleteRun(ctx context.Context, id string) error {
	if err := s.repos.Runs.Delete(ctx, id); err != nil {
		return mapRepoError(err, "удаление кампании")
	}
	s.logger.Info("Кампания удалена", slog.String("id", id))
	return nil
}

func applyRunInput(run *model.ObservingRun, in RunInput) error {
	name, err := requireText("name", in.Name, 200)
	if err != nil {
		return err
	}
	if in.InstrumentID == "" {
		return fieldError("instrument_id", ErrRequired)
	}
	if in.StartDate == nil {
		return fieldError("start_date", ErrRequired)
	}
	if in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return fieldError("end_date", errors.New("дата окончания раньше даты начала"))
	}

	run.Name = name
	run.Description = strings.TrimSpace(in.Description)
	run.InstrumentID = in.InstrumentID
	run.StartDate = in.StartDate
	run.EndDate = in.EndDate
	run.ResearcherIDs = uniqueIDs(in.ResearcherIDs)
	run.Comments = in.Comments
	return nil
}

// --- Блоки наблюдений ---

// ListBlocks возвращает блоки по фильтру, видимые viewer.
func (s *ObservingService) ListBlocks(ctx context.Context, viewer *rbac.Viewer, filter repository.BlockFilter) ([]*model.ObservingBlock, error) {
	blocks, err := s.repos.Blocks.List(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err, "получение списка блоков")
	}
	return rbac.VisibleBlocks(viewer, blocks), nil
}

// GetBlock возвращает блок по ID. Невидимый блок неотличим от отсутствующего.
func (s *ObservingService) GetBlock(ctx context.Context, viewer *rbac.Viewer, id string) (*model.ObservingBlock, error) {
	b, err := s.repos.Blocks.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение блока")
	}
	if !rbac.CanSeeBlock(viewer, b) {
		return nil, ErrNotFound
	}
	return b, nil
}

// BlockDetailedName возвращает имя блока с инструментом и датой.
func (s *ObservingService) BlockDetailedName(ctx context.Context, b *model.ObservingBlock) string {
	run, err := s.repos.Runs.GetByID(ctx, b.RunID)
	if err != nil {
		return b.DetailedName("")
	}
	instrument, err := s.repos.Instruments.GetByID(ctx, run.InstrumentID)
	if err != nil {
		return b.DetailedName("")
	}
	return b.DetailedName(instrument.Name)
}

// CreateBlock создаёт блок наблюдений.
func (s *ObservingService) CreateBlock(ctx context.Context, in BlockInput) (*model.ObservingBlock, error) {
	b := &model.ObservingBlock{ID: uuid.New().String()}
	if err := applyBlockInput(b, in); err != nil {
		return nil, err
	}
	if err := s.repos.Blocks.Create(ctx, b); err != nil {
		return nil, mapRepoError(err, "создание блока")
	}
	s.logger.Info("Блок наблюдений создан", slog.String("id", b.ID), slog.String("name", b.Name))
	return b, nil
}

// UpdateBlock обновляет блок наблюдений.
func (s *ObservingService) UpdateBlock(ctx context.Context, id string, in BlockInput) (*model.ObservingBlock, error) {
	b, err := s.repos.Blocks.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение блока")
	}
	if err := applyBlockInput(b, in); err != nil {
		return nil, err
	}
	if err := s.repos.Blocks.Update(ctx, b); err != nil {
		return nil, mapRepoError(err, "обновление блока")
	}
	s.logger.Info("Блок наблюдений обновлён", slog.String("id", b.ID))
	return b, nil
}

// DeleteBlock удаляет блок наблюдений вместе со ссылками на цели и группы.
func (s *ObservingService) DeleteBlock(ctx context.Context, id string) error {
	if err := s.repos.Blocks.Delete(ctx, id); err != nil {
		return mapRepoError(err, "удаление блока")
	}
	s.logger.Info("Блок наблюдений удалён", slog.String("id", id))
	return nil
}

func applyBlockInput(b *model.ObservingBlock, in BlockInput) error {
	name, err := requireText("name", in.Name, 200)
	if err != nil {
		return err
	}
	if in.RunID == "" {
		return fieldError("run_id", ErrRequired)
	}
	if in.StartTime == nil {
		return fieldError("start_time", ErrRequired)
	}
	endTime, err := parseTimeOfDay(in.EndTime)
	if err != nil {
		return fieldError("end_time", err)
	}
	if !model.IsValidObservationMode(in.ObservationMode) {
		return fieldError("observation_mode", fmt.Errorf("недопустимый режим %q", in.ObservationMode))
	}
	filters, err := optionalText("filters", in.Filters, 100)
	if err != nil {
		return err
	}
	if err := nonNegative("exposure_time", in.ExposureSeconds); err != nil {
		return err
	}
	if err := nonNegative("seeing", in.Seeing); err != nil {
		return err
	}
	weather, err := optionalText("weather_conditions", in.WeatherConditions, 200)
	if err != nil {
		return err
	}

	b.Name = name
	b.RunID = in.RunID
	b.Description = strings.TrimSpace(in.Description)
	b.StartTime = in.StartTime
	b.EndTime = endTime
	b.TargetIDs = uniqueIDs(in.TargetIDs)
	b.ObservationMode = in.ObservationMode
	b.Filters = filters
	b.ExposureSeconds = in.ExposureSeconds
	b.Seeing = in.Seeing
	b.WeatherConditions = weather
	b.Comments = in.Comments
	b.AllowedGroupIDs = uniqueIDs(in.AllowedGroupIDs)
	return nil
}

// parseTimeOfDay разбирает HH:MM[:SS] и возвращает HH:MM:SS.
func parseTimeOfDay(value string) (*string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			formatted := t.Format(time.TimeOnly)
			return &formatted, nil
		}
	}
	return nil, fmt.Errorf("время %q не в формате HH:MM[:SS]", value)
}

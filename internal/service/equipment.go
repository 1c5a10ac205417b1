// equipment.go — сервис телескопов и инструментов.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
)

// TelescopeInput — поля телескопа.
type TelescopeInput struct {
	Name          string
	Description   string
	ObservatoryID string
	Owner         string
	Aperture      float64
	Status        string
	Website       string
}

// InstrumentInput — поля инструмента.
type InstrumentInput struct {
	Name          string
	Description   string
	TelescopeID   string
	Status        string
	Website       string
	Filters       string
	Configuration string
}

// InstrumentChoices — фильтры и конфигурации инструмента списками.
type InstrumentChoices struct {
	Filters       []string `json:"filters"`
	Configuration []string `json:"configuration"`
}

// EquipmentService — сервис телескопов и инструментов.
type EquipmentService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewEquipmentService создаёт сервис оборудования.
func NewEquipmentService(repos *repository.Repositories, logger *slog.Logger) *EquipmentService {
	return &EquipmentService{
		repos:  repos,
		logger: logger.With(slog.String("component", "equipment_service")),
	}
}

// --- Телескопы ---

// ListTelescopes возвращает все телескопы.
func (s *EquipmentService) ListTelescopes(ctx context.Context) ([]*model.Telescope, error) {
	list, err := s.repos.Telescopes.List(ctx, nil)
	if err != nil {
		return nil, mapRepoError(err, "получение списка телескопов")
	}
	return list, nil
}

// GetTelescope возвращает телескоп по ID.
func (s *EquipmentService) GetTelescope(ctx context.Context, id string) (*model.Telescope, error) {
	t, err := s.repos.Telescopes.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение телескопа")
	}
	return t, nil
}

// TelescopeInstruments возвращает инструменты телескопа.
func (s *EquipmentService) TelescopeInstruments(ctx context.Context, id string) ([]*model.Instrument, error) {
	if _, err := s.GetTelescope(ctx, id); err != nil {
		return nil, err
	}
	list, err := s.repos.Instruments.List(ctx, &id)
	if err != nil {
		return nil, mapRepoError(err, "получение инструментов телескопа")
	}
	return list, nil
}

// CreateTelescope создаёт телескоп.
func (s *EquipmentService) CreateTelescope(ctx context.Context, in TelescopeInput) (*model.Telescope, error) {
	t := &model.Telescope{ID: uuid.New().String()}
	if err := applyTelescopeInput(t, in); err != nil {
		return nil, err
	}
	if err := s.repos.Telescopes.Create(ctx, t); err != nil {
		return nil, mapRepoError(err, "создание телескопа")
	}
	s.logger.Info("Телескоп создан", slog.String("id", t.ID), slog.String("name", t.Name))
	return t, nil
}

// UpdateTelescope обновляет телескоп.
func (s *EquipmentService) UpdateTelescope(ctx context.Context, id string, in TelescopeInput) (*model.Telescope, error) {
	t, err := s.GetTelescope(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyTelescopeInput(t, in); err != nil {
		return nil, err
	}
	if err := s.repos.Telescopes.Update(ctx, t); err != nil {
		return nil, mapRepoError(err, "обновление телескопа")
	}
	s.logger.Info("Телескоп обновлён", slog.String("id", t.ID))
	return t, nil
}

// DeleteTelescope удаляет телескоп. Телескоп с инструментами не удаляется.
func (s *EquipmentService) DeleteTelescope(ctx context.Context, id string) error {
	if err := s.repos.Telescopes.Delete(ctx, id); err != nil {
		return mapRepoError(err, "удаление телескопа")
	}
	s.logger.Info("Телескоп удалён", slog.String("id", id))
	return nil
}

func applyTelescopeInput(t *model.Telescope, in TelescopeInput) error {
	name, err := requireText("name", in.Name, 200)
	if err != nil {
		return err
	}
	description, err := optionalText("description", in.Description, 200)
	if err != nil {
		return err
	}
	website, err := optionalText("website", in.Website, 200)
	if err != nil {
		return err
	}
	if in.ObservatoryID == "" {
		return fieldError("observatory_id", ErrRequired)
	}
	if in.Aperture < 0 {
		return fieldError("aperture", fmt.Errorf("значение %.2f меньше нуля", in.Aperture))
	}
	status, err := equipmentStatus(in.Status)
	if err != nil {
		return err
	}

	t.Name = name
	t.Description = description
	t.ObservatoryID = in.ObservatoryID
	t.Owner = in.Owner
	t.Aperture = in.Aperture
	t.Status = status
	t.Website = website
	return nil
}

// equipmentStatus проверяет статус; пустой — unknown.
func equipmentStatus(status string) (string, error) {
	if status == "" {
		return model.StatusUnknown, nil
	}
	if !model.IsValidEquipmentStatus(status) {
		return "", fieldError("status", fmt.Errorf("недопустимый статус %q", status))
	}
	return status, nil
}

// --- Инструменты ---

// ListInstruments возвращает все инструменты.
func (s *EquipmentService) ListInstruments(ctx context.Context) ([]*model.Instrument, error) {
	list, err := s.repos.Instruments.List(ctx, nil)
	if err != nil {
		return nil, mapRepoError(err, "получение списка инструментов")
	}
	return list, nil
}

// GetInstrument возвращает инструмент по ID.
func (s *EquipmentService) GetInstrument(ctx context.Context, id string) (*model.Instrument, error) {
	i, err := s.repos.Instruments.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение инструмента")
	}
	return i, nil
}

// CreateInstrument создаёт инструмент.
func (s *EquipmentService) CreateInstrument(ctx context.Context, in InstrumentInput) (*model.Instrument, error) {
	i := &model.Instrument{ID: uuid.New().String()}
	if err := applyInstrumentInput(i, in); err != nil {
		return nil, err
	}
	if err := s.repos.Instruments.Create(ctx, i); err != nil {
		return nil, mapRepoError(err, "создание инструмента")
	}
	s.logger.Info("Инструмент создан", slog.String("id", i.ID), slog.String("name", i.Name))
	return i, nil
}

// UpdateInstrument обновляет инструмент.
func (s *EquipmentService) UpdateInstrument(ctx context.Context, id string, in InstrumentInput) (*model.Instrument, error) {
	i, err := s.GetInstrument(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyInstrumentInput(i, in); err != nil {
		return nil, err
	}
	if err := s.repos.Instruments.Update(ctx, i); err != nil {
		return nil, mapRepoError(err, "обновление инструмента")
	}
	s.logger.Info("Инструмент обновлён", slog.String("id", i.ID))
	return i, nil
}

// DeleteInstrument удаляет инструмент. Инструмент с кампаниями не удаляется.
func (s *EquipmentService) DeleteInstrument(ctx context.Context, id string) error {
	if err := s.repos.Instruments.Delete(ctx, id); err != nil {
		return mapRepoError(err, "удаление инструмента")
	}
	s.logger.Info("Инструмент удалён", slog.String("id", id))
	return nil
}

func applyInstrumentInput(i *model.Instrument, in InstrumentInput) error {
	name, err := requireText("name", in.Name, 200)
	if err != nil {
		return err
	}
	description, err := optionalText("description", in.Description, 200)
	if err != nil {
		return err
	}
	website, err := optionalText("website", in.Website, 200)
	if err != nil {
		return err
	}
	if in.TelescopeID == "" {
		return fieldError("telescope_id", ErrRequired)
	}
	status, err := equipmentStatus(in.Status)
	if err != nil {
		return err
	}

	i.Name = name
	i.Description = description
	i.TelescopeID = in.TelescopeID
	i.Status = status
	i.Website = website
	i.Filters = in.Filters
	i.Configuration = in.Configuration
	return nil
}

// observatories.go — сервис обсерваторий.
// Каждой обсерватории соответствует одноимённая группа пользователей:
// создание, переименование и удаление выполняются в одной транзакции с группой.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/coords"
	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
)

// CoordinateInput — координата, введённая пользователем:
// компоненты DMS либо строка DDD:MM:SS[.f]H.
type CoordinateInput struct {
	DMS  coords.DMSInput
	Text string
}

// ObservatoryInput — поля обсерватории при создании и обновлении.
type ObservatoryInput struct {
	Name      string
	Website   string
	Location  string
	Longitude CoordinateInput
	Latitude  CoordinateInput
	Altitude  *float64
}

// ObservatoryService — сервис обсерваторий.
type ObservatoryService struct {
	repos      *repository.Repositories
	tx         Transactor
	identities *IdentityCache
	logger     *slog.Logger
}

// NewObservatoryService создаёт сервис обсерваторий.
// identities может быть nil.
func NewObservatoryService(
	repos *repository.Repositories,
	tx Transactor,
	identities *IdentityCache,
	logger *slog.Logger,
) *ObservatoryService {
	return &ObservatoryService{
		repos:      repos,
		tx:         tx,
		identities: identities,
		logger:     logger.With(slog.String("component", "observatory_service")),
	}
}

// List возвращает обсерватории по имени.
func (s *ObservatoryService) List(ctx context.Context) ([]*model.Observatory, error) {
	list, err := s.repos.Observatories.List(ctx)
	if err != nil {
		return nil, mapRepoError(err, "получение списка обсерваторий")
	}
	return list, nil
}

// Get возвращает обсерваторию по ID.
func (s *ObservatoryService) Get(ctx context.Context, id string) (*model.Observatory, error) {
	o, err := s.repos.Observatories.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение обсерватории")
	}
	return o, nil
}

// Telescopes возвращает телескопы обсерватории.
func (s *ObservatoryService) Telescopes(ctx context.Context, id string) ([]*model.Telescope, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	list, err := s.repos.Telescopes.List(ctx, &id)
	if err != nil {
		return nil, mapRepoError(err, "получение телескопов обсерватории")
	}
	return list, nil
}

// Create создаёт обсерваторию и одноимённую группу.
func (s *ObservatoryService) Create(ctx context.Context, in ObservatoryInput) (*model.Observatory, error) {
	o := &model.Observatory{ID: uuid.New().String()}
	if err := applyObservatoryInput(o, in); err != nil {
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(repos *repository.Repositories) error {
		if err := repos.Observatories.Create(ctx, o); err != nil {
			return err
		}
		return repos.Groups.Create(ctx, &model.Group{ID: uuid.New().String(), Name: o.Name})
	})
	if err != nil {
		return nil, mapRepoError(err, "создание обсерватории")
	}

	s.logger.Info("Обсерватория создана",
		slog.String("id", o.ID),
		slog.String("name", o.Name),
	)
	return o, nil
}

// Update обновляет обсерваторию. При смене имени группа переименовывается
// с сохранением членства; если группы нет, она создаётся.
func (s *ObservatoryService) Update(ctx context.Context, id string, in ObservatoryInput) (*model.Observatory, error) {
	var o *model.Observatory
	err := s.tx.RunInTx(ctx, func(repos *repository.Repositories) error {
		current, err := repos.Observatories.GetByID(ctx, id)
		if err != nil {
			return err
		}
		oldName := current.Name
		if err := applyObservatoryInput(current, in); err != nil {
			return err
		}
		if err := repos.Observatories.Update(ctx, current); err != nil {
			return err
		}
		if current.Name != oldName {
			if err := syncObservatoryGroup(ctx, repos, oldName, current.Name); err != nil {
				return err
			}
		}
		o = current
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, mapRepoError(err, "обновление обсерватории")
	}

	s.identities.Purge()
	s.logger.Info("Обсерватория обновлена", slog.String("id", o.ID), slog.String("name", o.Name))
	return o, nil
}

// syncObservatoryGroup переименовывает группу обсерватории или создаёт её.
func syncObservatoryGroup(ctx context.Context, repos *repository.Repositories, oldName, newName string) error {
	g, err := repos.Groups.GetByName(ctx, oldName)
	if errors.Is(err, repository.ErrNotFound) {
		return repos.Groups.Create(ctx, &model.Group{ID: uuid.New().String(), Name: newName})
	}
	if err != nil {
		return err
	}
	return repos.Groups.Rename(ctx, g.ID, newName)
}

// Delete удаляет обсерваторию и её группу.
// Обсерватория с телескопами не удаляется (ErrInUse).
func (s *ObservatoryService) Delete(ctx context.Context, id string) error {
	err := s.tx.RunInTx(ctx, func(repos *repository.Repositories) error {
		o, err := repos.Observatories.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := repos.Observatories.Delete(ctx, id); err != nil {
			return err
		}
		g, err := repos.Groups.GetByName(ctx, o.Name)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return repos.Groups.Delete(ctx, g.ID)
	})
	if err != nil {
		return mapRepoError(err, "удаление обсерватории")
	}

	s.identities.Purge()
	s.logger.Info("Обсерватория удалена", slog.String("id", id))
	return nil
}

// applyObservatoryInput проверяет ввод и переносит его в запись.
func applyObservatoryInput(o *model.Observatory, in ObservatoryInput) error {
	name, err := requireText("name", in.Name, 150)
	if err != nil {
		return err
	}
	website, err := optionalText("website", in.Website, 200)
	if err != nil {
		return err
	}
	location, err := optionalText("location", in.Location, 200)
	if err != nil {
		return err
	}
	lon, err := resolveCoordinate("longitude", in.Longitude, coords.Longitude)
	if err != nil {
		return err
	}
	lat, err := resolveCoordinate("latitude", in.Latitude, coords.Latitude)
	if err != nil {
		return err
	}

	o.Name = name
	o.Website = website
	o.Location = location
	o.Longitude = lon
	o.Latitude = lat
	o.Altitude = in.Altitude
	return nil
}

// resolveCoordinate переводит ввод координаты в десятичные градусы.
// Пустой ввод даёт nil (координата не задана).
func resolveCoordinate(field string, in CoordinateInput, axis coords.Axis) (*float64, error) {
	text := strings.TrimSpace(in.Text)
	if text != "" && !in.DMS.IsEmpty() {
		return nil, fieldError(field, fmt.Errorf("%w: задайте строку или компоненты, не оба", coords.ErrFormat))
	}

	var (
		v   *float64
		err error
	)
	if text != "" {
		v, err = coords.ParseGeoDMS(text, axis)
	} else {
		v, err = coords.Compose(in.DMS, axis)
	}
	if err != nil {
		return nil, fieldError(field, err)
	}
	return v, nil
}

// people.go — сервисы учётных записей, исследователей и групп.
// Учётная запись и её исследователь создаются одной транзакцией;
// имя и email исследователя обновляются вместе с учётной записью.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
	"github.com/noeliagrande/dwarfs4mosaic/internal/repository"
)

// adminGroupName — служебная группа, не показывается в списке групп.
const adminGroupName = "admin"

// UserInput — поля учётной записи.
type UserInput struct {
	Username    string
	FirstName   string
	LastName    string
	Email       string
	IsSuperuser bool
	IsActive    bool
	GroupIDs    []string
}

// ResearcherInput — редактируемые поля исследователя.
type ResearcherInput struct {
	Role           string
	Institution    string
	IsPhD          bool
	Comments       string
	DeniedBlockIDs []string
}

// Registration — созданные учётная запись и исследователь.
type Registration struct {
	User       *model.User
	Researcher *model.Researcher
}

// --- Учётные записи ---

// UserService — сервис учётных записей.
type UserService struct {
	repos      *repository.Repositories
	tx         Transactor
	identities *IdentityCache
	logger     *slog.Logger
}

// NewUserService создаёт сервис учётных записей.
func NewUserService(repos *repository.Repositories, tx Transactor, identities *IdentityCache, logger *slog.Logger) *UserService {
	return &UserService{
		repos:      repos,
		tx:         tx,
		identities: identities,
		logger:     logger.With(slog.String("component", "user_service")),
	}
}

// List возвращает все учётные записи.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	list, err := s.repos.Users.List(ctx)
	if err != nil {
		return nil, mapRepoError(err, "получение списка учётных записей")
	}
	return list, nil
}

// Get возвращает учётную запись по ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение учётной записи")
	}
	return u, nil
}

// Update обновляет учётную запись и в той же транзакции переносит
// имя и email в исследователя.
func (s *UserService) Update(ctx context.Context, id string, in UserInput) (*model.User, error) {
	var u *model.User
	err := s.tx.RunInTx(ctx, func(repos *repository.Repositories) error {
		current, err := repos.Users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := applyUserInput(current, in); err != nil {
			return err
		}
		if err := repos.Users.Update(ctx, current); err != nil {
			return err
		}
		if err := repos.Researchers.SyncFromUser(ctx, current.ID, current.FullName(), current.Email); err != nil {
			return err
		}
		u = current
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, mapRepoError(err, "обновление учётной записи")
	}

	s.identities.Purge()
	s.logger.Info("Учётная запись обновлена", slog.String("id", u.ID), slog.String("username", u.Username))
	return u, nil
}

// Delete удаляет учётную запись. Суперпользователя удалить нельзя.
// Исследователь учётной записи остаётся без неё.
func (s *UserService) Delete(ctx context.Context, id string) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.IsSuperuser {
		return fmt.Errorf("%w: суперпользователя %s удалить нельзя", ErrForbidden, u.Username)
	}
	if err := s.repos.Users.Delete(ctx, id); err != nil {
		return mapRepoError(err, "удаление учётной записи")
	}

	s.identities.Purge()
	s.logger.Info("Учётная запись удалена", slog.String("id", id), slog.String("username", u.Username))
	return nil
}

func applyUserInput(u *model.User, in UserInput) error {
	username, err := requireText("username", in.Username, 150)
	if err != nil {
		return err
	}
	first, err := optionalText("first_name", in.FirstName, 150)
	if err != nil {
		return err
	}
	last, err := optionalText("last_name", in.LastName, 150)
	if err != nil {
		return err
	}
	email, err := optionalText("email", in.Email, 254)
	if err != nil {
		return err
	}
	if email != "" && !strings.Contains(email, "@") {
		return fieldError("email", errors.New("некорректный адрес"))
	}

	u.Username = username
	u.FirstName = first
	u.LastName = last
	u.Email = email
	u.IsSuperuser = in.IsSuperuser
	u.IsActive = in.IsActive
	u.GroupIDs = uniqueIDs(in.GroupIDs)
	return nil
}

// --- Исследователи ---

// ResearcherService — сервис исследователей.
type ResearcherService struct {
	repos      *repository.Repositories
	tx         Transactor
	identities *IdentityCache
	logger     *slog.Logger
}

// NewResearcherService создаёт сервис исследователей.
func NewResearcherService(repos *repository.Repositories, tx Transactor, identities *IdentityCache, logger *slog.Logger) *ResearcherService {
	return &ResearcherService{
		repos:      repos,
		tx:         tx,
		identities: identities,
		logger:     logger.With(slog.String("component", "researcher_service")),
	}
}

// Register создаёт учётную запись и её исследователя одной транзакцией.
// Имя и email исследователя берутся из учётной записи.
func (s *ResearcherService) Register(ctx context.Context, user UserInput, researcher ResearcherInput) (*Registration, error) {
	u := &model.User{ID: uuid.New().String()}
	if err := applyUserInput(u, user); err != nil {
		return nil, err
	}
	userID := u.ID
	r := &model.Researcher{
		ID:     uuid.New().String(),
		UserID: &userID,
		Name:   u.FullName(),
		Email:  u.Email,
	}
	if err := applyResearcherInput(r, researcher); err != nil {
		return nil, err
	}

	err := s.tx.RunInTx(ctx, func(repos *repository.Repositories) error {
		if err := repos.Users.Create(ctx, u); err != nil {
			return err
		}
		return repos.Researchers.Create(ctx, r)
	})
	if err != nil {
		return nil, mapRepoError(err, "регистрация исследователя")
	}

	s.logger.Info("Исследователь зарегистрирован",
		slog.String("user_id", u.ID),
		slog.String("researcher_id", r.ID),
		slog.String("username", u.Username),
	)
	return &Registration{User: u, Researcher: r}, nil
}

// List возвращает исследователей по имени.
func (s *ResearcherService) List(ctx context.Context) ([]*model.Researcher, error) {
	list, err := s.repos.Researchers.List(ctx)
	if err != nil {
		return nil, mapRepoError(err, "получение списка исследователей")
	}
	return list, nil
}

// Get возвращает исследователя по ID.
func (s *ResearcherService) Get(ctx context.Context, id string) (*model.Researcher, error) {
	r, err := s.repos.Researchers.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение исследователя")
	}
	return r, nil
}

// EditableFields возвращает редактируемые поля исследователя; id пустой — создание.
func (s *ResearcherService) EditableFields(ctx context.Context, id string) ([]string, error) {
	if id == "" {
		return model.ResearcherEditableFields(nil), nil
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.ResearcherEditableFields(r), nil
}

// Update обновляет редактируемые поля исследователя.
// Исследователь без учётной записи не редактируется.
func (s *ResearcherService) Update(ctx context.Context, id string, in ResearcherInput) (*model.Researcher, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(model.ResearcherEditableFields(r)) == 0 {
		return nil, fmt.Errorf("%w: исследователь без учётной записи не редактируется", ErrForbidden)
	}
	if err := applyResearcherInput(r, in); err != nil {
		return nil, err
	}
	if err := s.repos.Researchers.Update(ctx, r); err != nil {
		return nil, mapRepoError(err, "обновление исследователя")
	}

	s.identities.Purge()
	s.logger.Info("Исследователь обновлён", slog.String("id", r.ID))
	return r, nil
}

// Delete удаляет исследователя вместе с участием в кампаниях и запретами.
func (s *ResearcherService) Delete(ctx context.Context, id string) error {
	if err := s.repos.Researchers.Delete(ctx, id); err != nil {
		return mapRepoError(err, "удаление исследователя")
	}
	s.identities.Purge()
	s.logger.Info("Исследователь удалён", slog.String("id", id))
	return nil
}

func applyResearcherInput(r *model.Researcher, in ResearcherInput) error {
	role := in.Role
	if role == "" {
		role = model.RoleCollaborator
	}
	if !model.IsValidResearcherRole(role) {
		return fieldError("role", fmt.Errorf("недопустимая роль %q", in.Role))
	}
	institution, err := optionalText("institution", in.Institution, 200)
	if err != nil {
		return err
	}

	r.Role = role
	r.Institution = institution
	r.IsPhD = in.IsPhD
	r.Comments = in.Comments
	r.DeniedBlockIDs = uniqueIDs(in.DeniedBlockIDs)
	return nil
}

// --- Группы ---

// GroupService — сервис групп пользователей.
type GroupService struct {
	repos      *repository.Repositories
	identities *IdentityCache
	logger     *slog.Logger
}

// NewGroupService создаёт сервис групп.
func NewGroupService(repos *repository.Repositories, identities *IdentityCache, logger *slog.Logger) *GroupService {
	return &GroupService{
		repos:      repos,
		identities: identities,
		logger:     logger.With(slog.String("component", "group_service")),
	}
}

// List возвращает группы без служебной группы admin.
func (s *GroupService) List(ctx context.Context) ([]*model.Group, error) {
	all, err := s.repos.Groups.List(ctx)
	if err != nil {
		return nil, mapRepoError(err, "получение списка групп")
	}
	list := make([]*model.Group, 0, len(all))
	for _, g := range all {
		if g.Name != adminGroupName {
			list = append(list, g)
		}
	}
	return list, nil
}

// Get возвращает группу по ID.
func (s *GroupService) Get(ctx context.Context, id string) (*model.Group, error) {
	g, err := s.repos.Groups.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение группы")
	}
	return g, nil
}

// Create создаёт группу.
func (s *GroupService) Create(ctx context.Context, name string) (*model.Group, error) {
	name, err := requireText("name", name, 150)
	if err != nil {
		return nil, err
	}
	g := &model.Group{ID: uuid.New().String(), Name: name}
	if err := s.repos.Groups.Create(ctx, g); err != nil {
		return nil, mapRepoError(err, "создание группы")
	}
	s.logger.Info("Группа создана", slog.String("id", g.ID), slog.String("name", g.Name))
	return g, nil
}

// Rename переименовывает группу, членство сохраняется.
func (s *GroupService) Rename(ctx context.Context, id, name string) (*model.Group, error) {
	name, err := requireText("name", name, 150)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Groups.Rename(ctx, id, name); err != nil {
		return nil, mapRepoError(err, "переименование группы")
	}
	s.logger.Info("Группа переименована", slog.String("id", id), slog.String("name", name))
	return s.Get(ctx, id)
}

// Delete удаляет группу вместе с членством и доступами к блокам.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	if err := s.repos.Groups.Delete(ctx, id); err != nil {
		return mapRepoError(err, "удаление группы")
	}
	s.identities.Purge()
	s.logger.Info("Группа удалена", slog.String("id", id))
	return nil
}

// Members возвращает членов группы.
func (s *GroupService) Members(ctx context.Context, id string) ([]*model.User, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	list, err := s.repos.Users.ListByGroup(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение членов группы")
	}
	return list, nil
}

// AddMember добавляет пользователя в группу (идемпотентно).
func (s *GroupService) AddMember(ctx context.Context, groupID, userID string) error {
	if err := s.repos.Users.AddToGroup(ctx, userID, groupID); err != nil {
		return mapRepoError(err, "добавление в группу")
	}
	s.identities.Purge()
	s.logger.Info("Пользователь добавлен в группу", slog.String("group_id", groupID), slog.String("user_id", userID))
	return nil
}

// RemoveMember удаляет пользователя из группы.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID string) error {
	if err := s.repos.Users.RemoveFromGroup(ctx, userID, groupID); err != nil {
		return mapRepoError(err, "удаление из группы")
	}
	s.identities.Purge()
	s.logger.Info("Пользователь удалён из группы", slog.String("group_id", groupID), slog.String("user_id", userID))
	return nil
}

// Blocks возвращает блоки, доступные группе.
func (s *GroupService) Blocks(ctx context.Context, id string) ([]string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	ids, err := s.repos.Groups.AllowedBlocks(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "получение доступов группы")
	}
	return ids, nil
}

// SetBlocks заменяет набор блоков, доступных группе.
func (s *GroupService) SetBlocks(ctx context.Context, id string, blockIDs []string) ([]string, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	blockIDs = uniqueIDs(blockIDs)
	if err := s.repos.Groups.SetAllowedBlocks(ctx, id, blockIDs); err != nil {
		return nil, mapRepoError(err, "сохранение доступов группы")
	}
	s.logger.Info("Доступы группы обновлены", slog.String("id", id), slog.Int("blocks", len(blockIDs)))
	return blockIDs, nil
}

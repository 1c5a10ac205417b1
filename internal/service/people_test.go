package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
)

func newPeopleFixture(t *testing.T) (*testEnv, *UserService, *ResearcherService, *GroupService, *IdentityCache) {
	t.Helper()
	env := newTestEnv()
	cache := NewIdentityCache(10, time.Minute)
	return env,
		NewUserService(env.repos, env.tx, cache, env.logger),
		NewResearcherService(env.repos, env.tx, cache, env.logger),
		NewGroupService(env.repos, cache, env.logger),
		cache
}

func mustRegister(t *testing.T, svc *ResearcherService, username string) *Registration {
	t.Helper()
	reg, err := svc.Register(context.Background(),
		UserInput{Username: username, FirstName: "Ada", LastName: "Lovelace", Email: username + "@example.org", IsActive: true},
		ResearcherInput{Institution: "IAA"},
	)
	if err != nil {
		t.Fatalf("регистрация %q: %v", username, err)
	}
	return reg
}

// TestResearcherService_Register проверяет создание учётной записи и исследователя одной транзакцией.
func TestResearcherService_Register(t *testing.T) {
	env, _, researchers, _, _ := newPeopleFixture(t)
	ctx := context.Background()

	reg := mustRegister(t, researchers, "ada")
	if env.tx.calls != 1 {
		t.Errorf("транзакций = %d, ожидали 1", env.tx.calls)
	}
	if reg.Researcher.UserID == nil || *reg.Researcher.UserID != reg.User.ID {
		t.Error("исследователь не связан с учётной записью")
	}
	if reg.Researcher.Name != "Ada Lovelace" || reg.Researcher.Email != "ada@example.org" {
		t.Errorf("исследователь = %+v", reg.Researcher)
	}
	if reg.Researcher.Role != model.RoleCollaborator {
		t.Errorf("Role = %q, ожидали collaborator по умолчанию", reg.Researcher.Role)
	}

	_, err := researchers.Register(ctx, UserInput{Username: "ada"}, ResearcherInput{})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("повтор username: ошибка = %v, ожидали ErrConflict", err)
	}
	_, err = researchers.Register(ctx, UserInput{Username: "bob"}, ResearcherInput{Role: "boss"})
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "role" {
		t.Errorf("роль: ошибка = %v", err)
	}
	_, err = researchers.Register(ctx, UserInput{Username: "bob", Email: "not-an-email"}, ResearcherInput{})
	if !errors.As(err, &fe) || fe.Field != "email" {
		t.Errorf("email: ошибка = %v", err)
	}
}

// TestUserService_UpdateSyncsResearcher проверяет перенос имени и email в исследователя.
func TestUserService_UpdateSyncsResearcher(t *testing.T) {
	_, users, researchers, _, cache := newPeopleFixture(t)
	ctx := context.Background()
	reg := mustRegister(t, researchers, "ada")
	cache.Set("sub", &Identity{User: reg.User})

	_, err := users.Update(ctx, reg.User.ID, UserInput{
		Username: "ada", FirstName: "Augusta", LastName: "King", Email: "augusta@example.org", IsActive: true,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	r, _ := researchers.Get(ctx, reg.Researcher.ID)
	if r.Name != "Augusta King" || r.Email != "augusta@example.org" {
		t.Errorf("исследователь = %q <%s>, ожидали синхронизацию", r.Name, r.Email)
	}
	if cache.Len() != 0 {
		t.Error("кэш идентичностей не очищен")
	}

	if _, err := users.Update(ctx, reg.User.ID, UserInput{Username: " "}); !errors.Is(err, ErrValidation) {
		t.Errorf("пустой username: ошибка = %v", err)
	}
	if _, err := users.Update(ctx, "missing", UserInput{Username: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("нет записи: ошибка = %v", err)
	}
}

// TestUserService_Delete проверяет запрет удаления суперпользователя и отвязку исследователя.
func TestUserService_Delete(t *testing.T) {
	env, users, researchers, _, _ := newPeopleFixture(t)
	ctx := context.Background()

	root := &model.User{ID: "root", Username: "root", IsSuperuser: true, IsActive: true}
	if err := env.repos.Users.Create(ctx, root); err != nil {
		t.Fatal(err)
	}
	if err := users.Delete(ctx, root.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("удаление суперпользователя: ошибка = %v, ожидали ErrForbidden", err)
	}

	reg := mustRegister(t, researchers, "ada")
	if err := users.Delete(ctx, reg.User.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	r, err := researchers.Get(ctx, reg.Researcher.ID)
	if err != nil {
		t.Fatalf("исследователь удалён вместе с учётной записью: %v", err)
	}
	if r.UserID != nil {
		t.Error("исследователь остался связан с удалённой учётной записью")
	}

	// Исследователь без учётной записи не редактируется
	if _, err := researchers.Update(ctx, r.ID, ResearcherInput{Role: model.RoleCoreTeam}); !errors.Is(err, ErrForbidden) {
		t.Errorf("обновление без учётной записи: ошибка = %v, ожидали ErrForbidden", err)
	}
	fields, err := researchers.EditableFields(ctx, r.ID)
	if err != nil || len(fields) != 0 {
		t.Errorf("EditableFields = %v, %v, ожидали пустой набор", fields, err)
	}
}

// TestResearcherService_Update проверяет редактируемые поля и запреты на блоки.
func TestResearcherService_Update(t *testing.T) {
	env, _, researchers, _, _ := newPeopleFixture(t)
	ctx := context.Background()
	reg := mustRegister(t, researchers, "ada")
	seedBlock(t, env, "b-1", nil, nil)

	r, err := researchers.Update(ctx, reg.Researcher.ID, ResearcherInput{
		Role: model.RoleCoreTeam, IsPhD: true, DeniedBlockIDs: []string{"b-1", "b-1", ""},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if r.Role != model.RoleCoreTeam || !r.IsPhD || len(r.DeniedBlockIDs) != 1 {
		t.Errorf("исследователь = %+v", r)
	}
	if r.Name != "Ada Lovelace" {
		t.Errorf("Name = %q, имя не редактируется напрямую", r.Name)
	}

	_, err = researchers.Update(ctx, reg.Researcher.ID, ResearcherInput{DeniedBlockIDs: []string{"missing"}})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("несуществующий блок: ошибка = %v, ожидали ErrValidation", err)
	}
}

// TestGroupService проверяет группы: список без admin, членство, доступ к блокам.
func TestGroupService(t *testing.T) {
	env, _, researchers, groups, cache := newPeopleFixture(t)
	ctx := context.Background()

	admin, err := groups.Create(ctx, adminGroupName)
	if err != nil {
		t.Fatal(err)
	}
	team, err := groups.Create(ctx, "team")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := groups.Create(ctx, "team"); !errors.Is(err, ErrConflict) {
		t.Errorf("повтор имени: ошибка = %v", err)
	}

	list, err := groups.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != team.ID {
		t.Errorf("List = %v, группа admin должна быть скрыта", list)
	}
	if _, err := groups.Get(ctx, admin.ID); err != nil {
		t.Errorf("Get admin: %v", err)
	}

	reg := mustRegister(t, researchers, "ada")
	cache.Set("sub", &Identity{User: reg.User})
	if err := groups.AddMember(ctx, team.ID, reg.User.ID); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := groups.AddMember(ctx, team.ID, reg.User.ID); err != nil {
		t.Errorf("повторное добавление: %v", err)
	}
	if cache.Len() != 0 {
		t.Error("кэш идентичностей не очищен")
	}
	members, _ := groups.Members(ctx, team.ID)
	if len(members) != 1 {
		t.Errorf("членов = %d, ожидали 1", len(members))
	}
	if err := groups.AddMember(ctx, team.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("несуществующий пользователь: ошибка = %v", err)
	}

	seedBlock(t, env, "b-1", nil, nil)
	blocks, err := groups.SetBlocks(ctx, team.ID, []string{"b-1"})
	if err != nil || len(blocks) != 1 {
		t.Fatalf("SetBlocks = %v, %v", blocks, err)
	}
	if got, _ := groups.Blocks(ctx, team.ID); len(got) != 1 || got[0] != "b-1" {
		t.Errorf("Blocks = %v", got)
	}

	renamed, err := groups.Rename(ctx, team.ID, "core")
	if err != nil || renamed.Name != "core" {
		t.Errorf("Rename = %v, %v", renamed, err)
	}

	if err := groups.RemoveMember(ctx, team.ID, reg.User.ID); err != nil {
		t.Errorf("RemoveMember: %v", err)
	}
	if err := groups.RemoveMember(ctx, team.ID, reg.User.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление: ошибка = %v", err)
	}
	if err := groups.Delete(ctx, team.ID); err != nil {
		t.Errorf("Delete: %v", err)
	}
}

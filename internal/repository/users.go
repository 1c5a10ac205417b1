package repository

import (
	"context"
	"fmt"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
)

// UserRepository — интерфейс для таблицы users и членства в группах.
type UserRepository interface {
	// Create создаёт учётную запись вместе с членством в группах.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает учётную запись по UUID.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByUsername возвращает учётную запись по имени пользователя.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// GetBySubject возвращает учётную запись по claim sub.
	GetBySubject(ctx context.Context, subject string) (*model.User, error)
	// List возвращает все учётные записи по имени пользователя.
	List(ctx context.Context) ([]*model.User, error)
	// ListByGroup возвращает членов группы.
	ListByGroup(ctx context.Context, groupID string) ([]*model.User, error)
	// Update обновляет поля и членство в группах.
	Update(ctx context.Context, u *model.User) error
	// BindSubject связывает учётную запись с субъектом IdP.
	BindSubject(ctx context.Context, id, subject string) error
	// Delete удаляет учётную запись. Исследователь остаётся без неё.
	Delete(ctx context.Context, id string) error
	// AddToGroup добавляет пользователя в группу.
	AddToGroup(ctx context.Context, userID, groupID string) error
	// RemoveFromGroup удаляет пользователя из группы.
	RemoveFromGroup(ctx context.Context, userID, groupID string) error
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий учётных записей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `
	u.id, u.username, u.auth_subject, u.first_name, u.last_name, u.email,
	u.is_superuser, u.is_active,
	ARRAY(SELECT ug.group_id::text FROM user_groups ug WHERE ug.user_id = u.id ORDER BY ug.group_id),
	u.created_at, u.updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.AuthSubject, &u.FirstName, &u.LastName, &u.Email,
		&u.IsSuperuser, &u.IsActive, &u.GroupIDs, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, username, auth_subject, first_name, last_name, email, is_superuser, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.AuthSubject, u.FirstName, u.LastName, u.Email, u.IsSuperuser, u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return writeError(err, "учётная запись", "username уже занят")
	}
	return setLinks(ctx, r.db, "user_groups", "user_id", "group_id", u.ID, u.GroupIDs)
}

func (r *userRepo) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE `+where, arg))
	if err != nil {
		return nil, readError(err, "учётная запись")
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, "u.id = $1", id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "u.username = $1", username)
}

func (r *userRepo) GetBySubject(ctx context.Context, subject string) (*model.User, error) {
	return r.getOne(ctx, "u.auth_subject = $1", subject)
}

func (r *userRepo) list(ctx context.Context, query string, args ...any) ([]*model.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка учётных записей: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования учётной записи: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *userRepo) List(ctx context.Context) ([]*model.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users u ORDER BY u.username`)
}

func (r *userRepo) ListByGroup(ctx context.Context, groupID string) ([]*model.User, error) {
	return r.list(ctx, `
		SELECT `+userColumns+`
		FROM users u
		JOIN user_groups m ON m.user_id = u.id
		WHERE m.group_id = $1
		ORDER BY u.username`, groupID)
}

func (r *userRepo) Update(ctx context.Context, u *model.User) error {
	query := `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, email = $5,
			is_superuser = $6, is_active = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.Username, u.FirstName, u.LastName, u.Email, u.IsSuperuser, u.IsActive,
	).Scan(&u.UpdatedAt)
	if err != nil {
		return writeError(err, "учётная запись", "username уже занят")
	}
	return setLinks(ctx, r.db, "user_groups", "user_id", "group_id", u.ID, u.GroupIDs)
}

func (r *userRepo) BindSubject(ctx context.Context, id, subject string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET auth_subject = $2, updated_at = now() WHERE id = $1`, id, subject)
	if err != nil {
		return writeError(err, "учётная запись", "субъект IdP уже связан с другой учётной записью")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "users", "учётная запись", id)
}

func (r *userRepo) AddToGroup(ctx context.Context, userID, groupID string) error {
	return addLink(ctx, r.db, "user_groups", "user_id", "group_id", userID, groupID)
}

func (r *userRepo) RemoveFromGroup(ctx context.Context, userID, groupID string) error {
	return removeLink(ctx, r.db, "user_groups", "user_id", "group_id", userID, groupID)
}

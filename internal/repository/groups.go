package repository

import (
	"context"
	"fmt"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
)

// GroupRepository — интерфейс для таблицы groups.
type GroupRepository interface {
	// Create создаёт группу.
	Create(ctx context.Context, g *model.Group) error
	// GetByID возвращает группу по UUID.
	GetByID(ctx context.Context, id string) (*model.Group, error)
	// GetByName возвращает группу по имени.
	GetByName(ctx context.Context, name string) (*model.Group, error)
	// List возвращает группы по имени.
	List(ctx context.Context) ([]*model.Group, error)
	// Rename переименовывает группу, членство сохраняется.
	Rename(ctx context.Context, id, name string) error
	// Delete удаляет группу вместе с членством и доступами к блокам.
	Delete(ctx context.Context, id string) error
	// SetAllowedBlocks заменяет набор блоков, доступных группе.
	SetAllowedBlocks(ctx context.Context, groupID string, blockIDs []string) error
	// AllowedBlocks возвращает блоки, доступные группе.
	AllowedBlocks(ctx context.Context, groupID string) ([]string, error)
}

type groupRepo struct {
	db DBTX
}

// NewGroupRepository создаёт репозиторий групп.
func NewGroupRepository(db DBTX) GroupRepository {
	return &groupRepo{db: db}
}

func (r *groupRepo) Create(ctx context.Context, g *model.Group) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO groups (id, name) VALUES ($1, $2) RETURNING created_at`,
		g.ID, g.Name,
	).Scan(&g.CreatedAt)
	if err != nil {
		return writeError(err, "группа", "группа с таким именем уже существует")
	}
	return nil
}

func (r *groupRepo) getOne(ctx context.Context, where string, arg any) (*model.Group, error) {
	g := &model.Group{}
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at FROM groups WHERE `+where, arg).
		Scan(&g.ID, &g.Name, &g.CreatedAt)
	if err != nil {
		return nil, readError(err, "группа")
	}
	return g, nil
}

func (r *groupRepo) GetByID(ctx context.Context, id string) (*model.Group, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *groupRepo) GetByName(ctx context.Context, name string) (*model.Group, error) {
	return r.getOne(ctx, "name = $1", name)
}

func (r *groupRepo) List(ctx context.Context) ([]*model.Group, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка групп: %w", err)
	}
	defer rows.Close()

	var result []*model.Group
	for rows.Next() {
		g := &model.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования группы: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (r *groupRepo) Rename(ctx context.Context, id, name string) error {
	tag, err := r.db.Exec(ctx, `UPDATE groups SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return writeError(err, "группа", "группа с таким именем уже существует")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *groupRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "groups", "группа", id)
}

func (r *groupRepo) SetAllowedBlocks(ctx context.Context, groupID string, blockIDs []string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM observing_block_groups WHERE group_id = $1`, groupID)
	if err != nil {
		return fmt.Errorf("ошибка очистки доступов группы: %w", err)
	}
	if len(blockIDs) == 0 {
		return nil
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO observing_block_groups (block_id, group_id)
		SELECT block_id::uuid, $1 FROM unnest($2::text[]) AS block_id
		ON CONFLICT DO NOTHING`, groupID, blockIDs)
	if err != nil {
		if isForeignKeyViolation(err) || isInvalidText(err) {
			return fmt.Errorf("%w: блок наблюдений", ErrInvalidReference)
		}
		return fmt.Errorf("ошибка сохранения доступов группы: %w", err)
	}
	return nil
}

func (r *groupRepo) AllowedBlocks(ctx context.Context, groupID string) ([]string, error) {
	var ids []string
	err := r.db.QueryRow(ctx, `
		SELECT ARRAY(SELECT block_id::text FROM observing_block_groups
			WHERE group_id = $1 ORDER BY block_id)`, groupID).Scan(&ids)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения доступов группы: %w", err)
	}
	return ids, nil
}

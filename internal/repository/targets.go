package repository

import (
	"context"
	"fmt"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
)

// TargetRepository — интерфейс CRUD для таблицы targets.
type TargetRepository interface {
	// Create создаёт цель. Совпадение имени или folder_name даёт ErrConflict.
	Create(ctx context.Context, t *model.Target) error
	GetByID(ctx context.Context, id string) (*model.Target, error)
	// GetByFolderName находит цель по имени её каталога в media root.
	GetByFolderName(ctx context.Context, folder string) (*model.Target, error)
	// List возвращает цели по имени.
	List(ctx context.Context) ([]*model.Target, error)
	// Update обновляет общие поля. Имя, folder_name и пути файлов не меняются.
	Update(ctx context.Context, t *model.Target) error
	// UpdateFiles сохраняет пути изображения и каталога файлов данных.
	UpdateFiles(ctx context.Context, id, image, datafilesPath string) error
	Delete(ctx context.Context, id string) error
}

type targetRepo struct {
	db DBTX
}

// NewTargetRepository создаёт репозиторий целей.
func NewTargetRepository(db DBTX) TargetRepository {
	return &targetRepo{db: db}
}

const targetColumns = `
	id, name, folder_name, type, right_ascension, declination, magnitude, redshift, size,
	semester, comments, image, datafiles_path, created_at, updated_at`

func scanTarget(row rowScanner) (*model.Target, error) {
	t := &model.Target{}
	err := row.Scan(&t.ID, &t.Name, &t.FolderName, &t.Type, &t.RightAscension, &t.Declination,
		&t.Magnitude, &t.Redshift, &t.Size, &t.Semester, &t.Comments, &t.Image, &t.DatafilesPath,
		&t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *targetRepo) Create(ctx context.Context, t *model.Target) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO targets (id, name, folder_name, type, right_ascension, declination, magnitude,
			redshift, size, semester, comments, image, datafiles_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.FolderName, t.Type, t.RightAscension, t.Declination, t.Magnitude,
		t.Redshift, t.Size, t.Semester, t.Comments, t.Image, t.DatafilesPath,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return writeError(err, "цель", "цель с таким именем или каталогом уже существует")
	}
	return nil
}

func (r *targetRepo) GetByID(ctx context.Context, id string) (*model.Target, error) {
	t, err := scanTarget(r.db.QueryRow(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = $1`, id))
	if err != nil {
		return nil, readError(err, "цель")
	}
	return t, nil
}

func (r *targetRepo) GetByFolderName(ctx context.Context, folder string) (*model.Target, error) {
	t, err := scanTarget(r.db.QueryRow(ctx, `SELECT `+targetColumns+` FROM targets WHERE folder_name = $1`, folder))
	if err != nil {
		return nil, readError(err, "цель")
	}
	return t, nil
}

func (r *targetRepo) List(ctx context.Context) ([]*model.Target, error) {
	rows, err := r.db.Query(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка целей: %w", err)
	}
	defer rows.Close()

	var result []*model.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования цели: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *targetRepo) Update(ctx context.Context, t *model.Target) error {
	err := r.db.QueryRow(ctx, `
		UPDATE targets
		SET type = $2, right_ascension = $3, declination = $4, magnitude = $5, redshift = $6,
			size = $7, semester = $8, comments = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Type, t.RightAscension, t.Declination, t.Magnitude, t.Redshift,
		t.Size, t.Semester, t.Comments,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return writeError(err, "цель", "цель уже существует")
	}
	return nil
}

func (r *targetRepo) UpdateFiles(ctx context.Context, id, image, datafilesPath string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE targets SET image = $2, datafiles_path = $3, updated_at = now() WHERE id = $1`,
		id, image, datafilesPath)
	if err != nil {
		return fmt.Errorf("ошибка обновления файлов цели: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *targetRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "targets", "цель", id)
}

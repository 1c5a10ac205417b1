package repository

import (
	"context"
	"fmt"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
)

// ResearcherRepository — интерфейс для таблицы researchers.
type ResearcherRepository interface {
	// Create создаёт исследователя вместе с запретами на блоки.
	Create(ctx context.Context, r *model.Researcher) error
	// GetByID возвращает исследователя по UUID.
	GetByID(ctx context.Context, id string) (*model.Researcher, error)
	// GetByUserID возвращает исследователя учётной записи.
	GetByUserID(ctx context.Context, userID string) (*model.Researcher, error)
	// List возвращает исследователей по имени.
	List(ctx context.Context) ([]*model.Researcher, error)
	// ListByRun возвращает участников кампании.
	ListByRun(ctx context.Context, runID string) ([]*model.Researcher, error)
	// Update обновляет поля и запреты на блоки.
	Update(ctx context.Context, r *model.Researcher) error
	// SyncFromUser переносит имя и email учётной записи в исследователя.
	SyncFromUser(ctx context.Context, userID, name, email string) error
	// Delete удаляет исследователя.
	Delete(ctx context.Context, id string) error
}

type researcherRepo struct {
	db DBTX
}

// NewResearcherRepository создаёт репозиторий исследователей.
func NewResearcherRepository(db DBTX) ResearcherRepository {
	return &researcherRepo{db: db}
}

const researcherColumns = `
	r.id, r.user_id, r.name, r.email, r.role, r.institution, r.is_phd, r.comments,
	ARRAY(SELECT d.block_id::text FROM researcher_denied_blocks d WHERE d.researcher_id = r.id ORDER BY d.block_id),
	r.created_at, r.updated_at`

func scanResearcher(row rowScanner) (*model.Researcher, error) {
	res := &model.Researcher{}
	err := row.Scan(
		&res.ID, &res.UserID, &res.Name, &res.Email, &res.Role, &res.Institution, &res.IsPhD, &res.Comments,
		&res.DeniedBlockIDs, &res.CreatedAt, &res.UpdatedAt,
	)
	return res, err
}

func (r *researcherRepo) Create(ctx context.Context, res *model.Researcher) error {
	query := `
		INSERT INTO researchers (id, user_id, name, email, role, institution, is_phd, comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		res.ID, res.UserID, res.Name, res.Email, res.Role, res.Institution, res.IsPhD, res.Comments,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return writeError(err, "исследователь", "у учётной записи уже есть исследователь")
	}
	return setLinks(ctx, r.db, "researcher_denied_blocks", "researcher_id", "block_id", res.ID, res.DeniedBlockIDs)
}

func (r *researcherRepo) getOne(ctx context.Context, where string, arg any) (*model.Researcher, error) {
	res, err := scanResearcher(r.db.QueryRow(ctx, `SELECT `+researcherColumns+` FROM researchers r WHERE `+where, arg))
	if err != nil {
		return nil, readError(err, "исследователь")
	}
	return res, nil
}

func (r *researcherRepo) GetByID(ctx context.Context, id string) (*model.Researcher, error) {
	return r.getOne(ctx, "r.id = $1", id)
}

func (r *researcherRepo) GetByUserID(ctx context.Context, userID string) (*model.Researcher, error) {
	return r.getOne(ctx, "r.user_id = $1", userID)
}

func (r *researcherRepo) list(ctx context.Context, query string, args ...any) ([]*model.Researcher, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка исследователей: %w", err)
	}
	defer rows.Close()

	var result []*model.Researcher
	for rows.Next() {
		res, err := scanResearcher(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования исследователя: %w", err)
		}
		result = append(result, res)
	}
	return result, rows.Err()
}

func (r *researcherRepo) List(ctx context.Context) ([]*model.Researcher, error) {
	return r.list(ctx, `SELECT `+researcherColumns+` FROM researchers r ORDER BY r.name`)
}

func (r *researcherRepo) ListByRun(ctx context.Context, runID string) ([]*model.Researcher, error) {
	return r.list(ctx, `
		SELECT `+researcherColumns+`
		FROM researchers r
		JOIN observing_run_researchers p ON p.researcher_id = r.id
		WHERE p.run_id = $1
		ORDER BY r.name`, runID)
}

func (r *researcherRepo) Update(ctx context.Context, res *model.Researcher) error {
	query := `
		UPDATE researchers
		SET role = $2, institution = $3, is_phd = $4, comments = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		res.ID, res.Role, res.Institution, res.IsPhD, res.Comments,
	).Scan(&res.UpdatedAt)
	if err != nil {
		return writeError(err, "исследователь", "исследователь уже существует")
	}
	return setLinks(ctx, r.db, "researcher_denied_blocks", "researcher_id", "block_id", res.ID, res.DeniedBlockIDs)
}

func (r *researcherRepo) SyncFromUser(ctx context.Context, userID, name, email string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE researchers SET name = $2, email = $3, updated_at = now() WHERE user_id = $1`,
		userID, name, email)
	if err != nil {
		return fmt.Errorf("ошибка синхронизации исследователя: %w", err)
	}
	return nil
}

func (r *researcherRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "researchers", "исследователь", id)
}

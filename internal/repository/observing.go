package repository

import (
	"context"
	"fmt"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
)

// ObservingRunRepository — интерфейс CRUD для таблицы observing_runs.
type ObservingRunRepository interface {
	// Create создаёт кампанию вместе с участниками.
	Create(ctx context.Context, run *model.ObservingRun) error
	GetByID(ctx context.Context, id string) (*model.ObservingRun, error)
	// List возвращает кампании, при instrumentID != nil — только этого инструмента.
	List(ctx context.Context, instrumentID *string) ([]*model.ObservingRun, error)
	// ListByIDs возвращает кампании с указанными id.
	ListByIDs(ctx context.Context, ids []string) ([]*model.ObservingRun, error)
	// Update обновляет поля и участников.
	Update(ctx context.Context, run *model.ObservingRun) error
	// Delete удаляет кампанию. Наличие блоков даёт ErrInUse.
	Delete(ctx context.Context, id string) error
}

type observingRunRepo struct {
	db DBTX
}

// NewObservingRunRepository создаёт репозиторий наблюдательных кампаний.
func NewObservingRunRepository(db DBTX) ObservingRunRepository {
	return &observingRunRepo{db: db}
}

const runColumns = `
	o.id, o.name, o.description, o.instrument_id, o.start_date, o.end_date,
	ARRAY(SELECT p.researcher_id::text FROM observing_run_researchers p WHERE p.run_id = o.id ORDER BY p.researcher_id),
	o.comments, o.created_at, o.updated_at`

func scanRun(row rowScanner) (*model.ObservingRun, error) {
	run := &model.ObservingRun{}
	err := row.Scan(&run.ID, &run.Name, &run.Description, &run.InstrumentID,
		&run.StartDate, &run.EndDate, &run.ResearcherIDs, &run.Comments, &run.CreatedAt, &run.UpdatedAt)
	return run, err
}

func (r *observingRunRepo) Create(ctx context.Context, run *model.ObservingRun) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO observing_runs (id, name, description, instrument_id, start_date, end_date, comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		run.ID, run.Name, run.Description, run.InstrumentID, run.StartDate, run.EndDate, run.Comments,
	).Scan(&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return writeError(err, "инструмент кампании", "кампания уже существует")
	}
	return setLinks(ctx, r.db, "observing_run_researchers", "run_id", "researcher_id", run.ID, run.ResearcherIDs)
}

func (r *observingRunRepo) GetByID(ctx context.Context, id string) (*model.ObservingRun, error) {
	run, err := scanRun(r.db.QueryRow(ctx, `SELECT `+runColumns+` FROM observing_runs o WHERE o.id = $1`, id))
	if err != nil {
		return nil, readError(err, "наблюдательная кампания")
	}
	return run, nil
}

func (r *observingRunRepo) list(ctx context.Context, query string, args ...any) ([]*model.ObservingRun, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка кампаний: %w", err)
	}
	defer rows.Close()

	var result []*model.ObservingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования кампании: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

func (r *observingRunRepo) List(ctx context.Context, instrumentID *string) ([]*model.ObservingRun, error) {
	return r.list(ctx, `
		SELECT `+runColumns+`
		FROM observing_runs o
		WHERE $1::uuid IS NULL OR o.instrument_id = $1::uuid
		ORDER BY o.start_date DESC NULLS LAST, o.name`, instrumentID)
}

func (r *observingRunRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.ObservingRun, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+runColumns+` FROM observing_runs o WHERE o.id = ANY($1::uuid[]) ORDER BY o.name`, ids)
}

func (r *observingRunRepo) Update(ctx context.Context, run *model.ObservingRun) error {
	err := r.db.QueryRow(ctx, `
		UPDATE observing_runs
		SET name = $2, description = $3, instrument_id = $4, start_date = $5, end_date = $6,
			comments = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		run.ID, run.Name, run.Description, run.InstrumentID, run.StartDate, run.EndDate, run.Comments,
	).Scan(&run.UpdatedAt)
	if err != nil {
		return writeError(err, "инструмент кампании", "кампания уже существует")
	}
	return setLinks(ctx, r.db, "observing_run_researchers", "run_id", "researcher_id", run.ID, run.ResearcherIDs)
}

func (r *observingRunRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "observing_runs", "у кампании есть блоки наблюдений", id)
}

// BlockFilter — фильтр списка блоков наблюдений.
type BlockFilter struct {
	// RunID — только блоки кампании
	RunID *string
	// TargetID — только блоки, наблюдающие цель
	TargetID *string
}

// ObservingBlockRepository — интерфейс CRUD для таблицы observing_blocks.
type ObservingBlockRepository interface {
	// Create создаёт блок вместе с целями и группами доступа.
	Create(ctx context.Context, b *model.ObservingBlock) error
	GetByID(ctx context.Context, id string) (*model.ObservingBlock, error)
	// List возвращает блоки по фильтру, упорядоченные по времени начала.
	List(ctx context.Context, filter BlockFilter) ([]*model.ObservingBlock, error)
	// Update обновляет поля, цели и группы доступа.
	Update(ctx context.Context, b *model.ObservingBlock) error
	Delete(ctx context.Context, id string) error
}

type observingBlockRepo struct {
	db DBTX
}

// NewObservingBlockRepository создаёт репозиторий блоков наблюдений.
func NewObservingBlockRepository(db DBTX) ObservingBlockRepository {
	return &observingBlockRepo{db: db}
}

const blockColumns = `
	b.id, b.name, b.run_id, b.description, b.start_time, to_char(b.end_time, 'HH24:MI:SS'),
	ARRAY(SELECT t.target_id::text FROM observing_block_targets t WHERE t.block_id = b.id ORDER BY t.target_id),
	b.observation_mode, b.filters, b.exposure_seconds, b.seeing, b.weather_conditions, b.comments,
	ARRAY(SELECT g.group_id::text FROM observing_block_groups g WHERE g.block_id = b.id ORDER BY g.group_id),
	b.created_at, b.updated_at`

func scanBlock(row rowScanner) (*model.ObservingBlock, error) {
	b := &model.ObservingBlock{}
	err := row.Scan(&b.ID, &b.Name, &b.RunID, &b.Description, &b.StartTime, &b.EndTime,
		&b.TargetIDs, &b.ObservationMode, &b.Filters, &b.ExposureSeconds, &b.Seeing,
		&b.WeatherConditions, &b.Comments, &b.AllowedGroupIDs, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *observingBlockRepo) setLinks(ctx context.Context, b *model.ObservingBlock) error {
	if err := setLinks(ctx, r.db, "observing_block_targets", "block_id", "target_id", b.ID, b.TargetIDs); err != nil {
		return err
	}
	return setLinks(ctx, r.db, "observing_block_groups", "block_id", "group_id", b.ID, b.AllowedGroupIDs)
}

func (r *observingBlockRepo) Create(ctx context.Context, b *model.ObservingBlock) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO observing_blocks (id, name, run_id, description, start_time, end_time,
			observation_mode, filters, exposure_seconds, seeing, weather_conditions, comments)
		VALUES ($1, $2, $3, $4, $5, $6::text::time, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		b.ID, b.Name, b.RunID, b.Description, b.StartTime, b.EndTime,
		b.ObservationMode, b.Filters, b.ExposureSeconds, b.Seeing, b.WeatherConditions, b.Comments,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return writeError(err, "кампания блока", "блок уже существует")
	}
	return r.setLinks(ctx, b)
}

func (r *observingBlockRepo) GetByID(ctx context.Context, id string) (*model.ObservingBlock, error) {
	b, err := scanBlock(r.db.QueryRow(ctx, `SELECT `+blockColumns+` FROM observing_blocks b WHERE b.id = $1`, id))
	if err != nil {
		return nil, readError(err, "блок наблюдений")
	}
	return b, nil
}

func (r *observingBlockRepo) List(ctx context.Context, filter BlockFilter) ([]*model.ObservingBlock, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+blockColumns+`
		FROM observing_blocks b
		WHERE ($1::uuid IS NULL OR b.run_id = $1::uuid)
			AND ($2::uuid IS NULL OR EXISTS (
				SELECT 1 FROM observing_block_targets t WHERE t.block_id = b.id AND t.target_id = $2::uuid))
		ORDER BY b.start_time NULLS LAST, b.name`, filter.RunID, filter.TargetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка блоков: %w", err)
	}
	defer rows.Close()

	var result []*model.ObservingBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования блока: %w", err)
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (r *observingBlockRepo) Update(ctx context.Context, b *model.ObservingBlock) error {
	err := r.db.QueryRow(ctx, `
		UPDATE observing_blocks
		SET name = $2, run_id = $3, description = $4, start_time = $5, end_time = $6::text::time,
			observation_mode = $7, filters = $8, exposure_seconds = $9, seeing = $10,
			weather_conditions = $11, comments = $12, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.Name, b.RunID, b.Description, b.StartTime, b.EndTime,
		b.ObservationMode, b.Filters, b.ExposureSeconds, b.Seeing, b.WeatherConditions, b.Comments,
	).Scan(&b.UpdatedAt)
	if err != nil {
		return writeError(err, "кампания блока", "блок уже существует")
	}
	return r.setLinks(ctx, b)
}

func (r *observingBlockRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "observing_blocks", "блок наблюдений", id)
}

package repository

import (
	"context"
	"fmt"

	"github.com/noeliagrande/dwarfs4mosaic/internal/domain/model"
)

// ObservatoryRepository — интерфейс CRUD для таблицы observatories.
type ObservatoryRepository interface {
	Create(ctx context.Context, o *model.Observatory) error
	GetByID(ctx context.Context, id string) (*model.Observatory, error)
	List(ctx context.Context) ([]*model.Observatory, error)
	Update(ctx context.Context, o *model.Observatory) error
	// Delete удаляет обсерваторию. Наличие телескопов даёт ErrInUse.
	Delete(ctx context.Context, id string) error
}

type observatoryRepo struct {
	db DBTX
}

// NewObservatoryRepository создаёт репозиторий обсерваторий.
func NewObservatoryRepository(db DBTX) ObservatoryRepository {
	return &observatoryRepo{db: db}
}

const observatoryColumns = `id, name, website, location, longitude, latitude, altitude, created_at, updated_at`

func scanObservatory(row rowScanner) (*model.Observatory, error) {
	o := &model.Observatory{}
	err := row.Scan(&o.ID, &o.Name, &o.Website, &o.Location,
		&o.Longitude, &o.Latitude, &o.Altitude, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *observatoryRepo) Create(ctx context.Context, o *model.Observatory) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO observatories (id, name, website, location, longitude, latitude, altitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		o.ID, o.Name, o.Website, o.Location, o.Longitude, o.Latitude, o.Altitude,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return writeError(err, "обсерватория", "обсерватория с таким именем уже существует")
	}
	return nil
}

func (r *observatoryRepo) GetByID(ctx context.Context, id string) (*model.Observatory, error) {
	o, err := scanObservatory(r.db.QueryRow(ctx,
		`SELECT `+observatoryColumns+` FROM observatories WHERE id = $1`, id))
	if err != nil {
		return nil, readError(err, "обсерватория")
	}
	return o, nil
}

func (r *observatoryRepo) List(ctx context.Context) ([]*model.Observatory, error) {
	rows, err := r.db.Query(ctx, `SELECT `+observatoryColumns+` FROM observatories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка обсерваторий: %w", err)
	}
	defer rows.Close()

	var result []*model.Observatory
	for rows.Next() {
		o, err := scanObservatory(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования обсерватории: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (r *observatoryRepo) Update(ctx context.Context, o *model.Observatory) error {
	err := r.db.QueryRow(ctx, `
		UPDATE observatories
		SET name = $2, website = $3, location = $4, longitude = $5, latitude = $6,
			altitude = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		o.ID, o.Name, o.Website, o.Location, o.Longitude, o.Latitude, o.Altitude,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return writeError(err, "обсерватория", "обсерватория с таким именем уже существует")
	}
	return nil
}

func (r *observatoryRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "observatories", "у обсерватории есть телескопы", id)
}

// TelescopeRepository — интерфейс CRUD для таблицы telescopes.
type TelescopeRepository interface {
	Create(ctx context.Context, t *model.Telescope) error
	GetByID(ctx context.Context, id string) (*model.Telescope, error)
	// List возвращает телескопы, при observatoryID != nil — только этой обсерватории.
	List(ctx context.Context, observatoryID *string) ([]*model.Telescope, error)
	Update(ctx context.Context, t *model.Telescope) error
	// Delete удаляет телескоп. Наличие инструментов даёт ErrInUse.
	Delete(ctx context.Context, id string) error
}

type telescopeRepo struct {
	db DBTX
}

// NewTelescopeRepository создаёт репозиторий телескопов.
func NewTelescopeRepository(db DBTX) TelescopeRepository {
	return &telescopeRepo{db: db}
}

const telescopeColumns = `id, name, description, observatory_id, owner, aperture, status, website, created_at, updated_at`

func scanTelescope(row rowScanner) (*model.Telescope, error) {
	t := &model.Telescope{}
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.ObservatoryID, &t.Owner,
		&t.Aperture, &t.Status, &t.Website, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *telescopeRepo) Create(ctx context.Context, t *model.Telescope) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO telescopes (id, name, description, observatory_id, owner, aperture, status, website)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Description, t.ObservatoryID, t.Owner, t.Aperture, t.Status, t.Website,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return writeError(err, "обсерватория телескопа", "телескоп уже существует")
	}
	return nil
}

func (r *telescopeRepo) GetByID(ctx context.Context, id string) (*model.Telescope, error) {
	t, err := scanTelescope(r.db.QueryRow(ctx,
		`SELECT `+telescopeColumns+` FROM telescopes WHERE id = $1`, id))
	if err != nil {
		return nil, readError(err, "телескоп")
	}
	return t, nil
}

func (r *telescopeRepo) List(ctx context.Context, observatoryID *string) ([]*model.Telescope, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+telescopeColumns+`
		FROM telescopes
		WHERE $1::uuid IS NULL OR observatory_id = $1::uuid
		ORDER BY name`, observatoryID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка телескопов: %w", err)
	}
	defer rows.Close()

	var result []*model.Telescope
	for rows.Next() {
		t, err := scanTelescope(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования телескопа: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *telescopeRepo) Update(ctx context.Context, t *model.Telescope) error {
	err := r.db.QueryRow(ctx, `
		UPDATE telescopes
		SET name = $2, description = $3, observatory_id = $4, owner = $5, aperture = $6,
			status = $7, website = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Name, t.Description, t.ObservatoryID, t.Owner, t.Aperture, t.Status, t.Website,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return writeError(err, "обсерватория телескопа", "телескоп уже существует")
	}
	return nil
}

func (r *telescopeRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "telescopes", "у телескопа есть инструменты", id)
}

// InstrumentRepository — интерфейс CRUD для таблицы instruments.
type InstrumentRepository interface {
	Create(ctx context.Context, i *model.Instrument) error
	GetByID(ctx context.Context, id string) (*model.Instrument, error)
	// List возвращает инструменты, при telescopeID != nil — только этого телескопа.
	List(ctx context.Context, telescopeID *string) ([]*model.Instrument, error)
	// ListByIDs возвращает инструменты с указанными id.
	ListByIDs(ctx context.Context, ids []string) ([]*model.Instrument, error)
	Update(ctx context.Context, i *model.Instrument) error
	// Delete удаляет инструмент. Наличие кампаний даёт ErrInUse.
	Delete(ctx context.Context, id string) error
}

type instrumentRepo struct {
	db DBTX
}

// NewInstrumentRepository создаёт репозиторий инструментов.
func NewInstrumentRepository(db DBTX) InstrumentRepository {
	return &instrumentRepo{db: db}
}

const instrumentColumns = `id, name, description, telescope_id, status, website, filters, configuration, created_at, updated_at`

func scanInstrument(row rowScanner) (*model.Instrument, error) {
	i := &model.Instrument{}
	err := row.Scan(&i.ID, &i.Name, &i.Description, &i.TelescopeID, &i.Status,
		&i.Website, &i.Filters, &i.Configuration, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (r *instrumentRepo) Create(ctx context.Context, i *model.Instrument) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO instruments (id, name, description, telescope_id, status, website, filters, configuration)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		i.ID, i.Name, i.Description, i.TelescopeID, i.Status, i.Website, i.Filters, i.Configuration,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return writeError(err, "телескоп инструмента", "инструмент уже существует")
	}
	return nil
}

func (r *instrumentRepo) GetByID(ctx context.Context, id string) (*model.Instrument, error) {
	i, err := scanInstrument(r.db.QueryRow(ctx,
		`SELECT `+instrumentColumns+` FROM instruments WHERE id = $1`, id))
	if err != nil {
		return nil, readError(err, "инструмент")
	}
	return i, nil
}

func (r *instrumentRepo) list(ctx context.Context, query string, args ...any) ([]*model.Instrument, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка инструментов: %w", err)
	}
	defer rows.Close()

	var result []*model.Instrument
	for rows.Next() {
		i, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования инструмента: %w", err)
		}
		result = append(result, i)
	}
	return result, rows.Err()
}

func (r *instrumentRepo) List(ctx context.Context, telescopeID *string) ([]*model.Instrument, error) {
	return r.list(ctx, `
		SELECT `+instrumentColumns+`
		FROM instruments
		WHERE $1::uuid IS NULL OR telescope_id = $1::uuid
		ORDER BY name`, telescopeID)
}

func (r *instrumentRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Instrument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+instrumentColumns+` FROM instruments WHERE id = ANY($1::uuid[]) ORDER BY name`, ids)
}

func (r *instrumentRepo) Update(ctx context.Context, i *model.Instrument) error {
	err := r.db.QueryRow(ctx, `
		UPDATE instruments
		SET name = $2, description = $3, telescope_id = $4, status = $5, website = $6,
			filters = $7, configuration = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		i.ID, i.Name, i.Description, i.TelescopeID, i.Status, i.Website, i.Filters, i.Configuration,
	).Scan(&i.UpdatedAt)
	if err != nil {
		return writeError(err, "телескоп инструмента", "инструмент уже существует")
	}
	return nil
}

func (r *instrumentRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.db, "instruments", "у инструмента есть наблюдательные кампании", id)
}

// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrInUse — на запись ссылаются другие записи, удаление запрещено.
	ErrInUse = errors.New("запись используется другими записями")
	// ErrInvalidReference — ссылка на несуществующую запись.
	ErrInvalidReference = errors.New("ссылка на несуществующую запись")
	// ErrInvalidValue — значение нарушает ограничение схемы (CHECK).
	ErrInvalidValue = errors.New("недопустимое значение поля")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories — набор репозиториев поверх одного DBTX.
type Repositories struct {
	Users         UserRepository
	Groups        GroupRepository
	Researchers   ResearcherRepository
	Observatories ObservatoryRepository
	Telescopes    TelescopeRepository
	Instruments   InstrumentRepository
	Runs          ObservingRunRepository
	Blocks        ObservingBlockRepository
	Targets       TargetRepository
}

// NewRepositories создаёт все репозитории поверх db.
func NewRepositories(db DBTX) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(db),
		Groups:        NewGroupRepository(db),
		Researchers:   NewResearcherRepository(db),
		Observatories: NewObservatoryRepository(db),
		Telescopes:    NewTelescopeRepository(db),
		Instruments:   NewInstrumentRepository(db),
		Runs:          NewObservingRunRepository(db),
		Blocks:        NewObservingBlockRepository(db),
		Targets:       NewTargetRepository(db),
	}
}

// TxRunner позволяет выполнять операции в транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции. fn получает репозитории,
// привязанные к транзакции. При ошибке fn транзакция откатывается,
// при успехе коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(repos *Repositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// rowScanner — общий интерфейс pgx.Row и pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

// isForeignKeyViolation проверяет нарушение внешнего ключа.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}

// isCheckViolation проверяет нарушение CHECK-ограничения.
func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514" // check_violation
	}
	return false
}

// isInvalidText проверяет ошибку разбора значения, например id не в формате UUID.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22P02" // invalid_text_representation
	}
	return false
}

// deleteByID удаляет запись по id. Ссылки с RESTRICT дают ErrInUse.
func deleteByID(ctx context.Context, db DBTX, table, entity, id string) error {
	tag, err := db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %s", ErrInUse, entity)
		}
		if isInvalidText(err) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления (%s): %w", entity, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// setLinks заменяет набор связей many-to-many владельца ownerID.
// Несуществующий или не-UUID id в ids даёт ErrInvalidReference.
func setLinks(ctx context.Context, db DBTX, table, ownerCol, linkCol, ownerID string, ids []string) error {
	_, err := db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, ownerCol), ownerID)
	if err != nil {
		return fmt.Errorf("ошибка очистки связей %s: %w", table, err)
	}
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s)
		SELECT $1, link_id::uuid FROM unnest($2::text[]) AS link_id
		ON CONFLICT DO NOTHING`, table, ownerCol, linkCol)
	if _, err := db.Exec(ctx, query, ownerID, ids); err != nil {
		if isForeignKeyViolation(err) || isInvalidText(err) {
			return fmt.Errorf("%w: %s", ErrInvalidReference, linkCol)
		}
		return fmt.Errorf("ошибка сохранения связей %s: %w", table, err)
	}
	return nil
}

// addLink добавляет одну связь many-to-many (повтор — no-op).
func addLink(ctx context.Context, db DBTX, table, ownerCol, linkCol, ownerID, linkID string) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		table, ownerCol, linkCol)
	if _, err := db.Exec(ctx, query, ownerID, linkID); err != nil {
		if isForeignKeyViolation(err) || isInvalidText(err) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка добавления связи %s: %w", table, err)
	}
	return nil
}

// removeLink удаляет одну связь many-to-many. Отсутствие связи — ErrNotFound.
func removeLink(ctx context.Context, db DBTX, table, ownerCol, linkCol, ownerID, linkID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`, table, ownerCol, linkCol)
	tag, err := db.Exec(ctx, query, ownerID, linkID)
	if err != nil {
		if isInvalidText(err) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка удаления связи %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// writeError переводит ошибку записи в ошибку слоя репозиториев.
func writeError(err error, entity, conflict string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s", ErrConflict, conflict)
	case isForeignKeyViolation(err), isInvalidText(err):
		return fmt.Errorf("%w: %s", ErrInvalidReference, entity)
	case isCheckViolation(err):
		return fmt.Errorf("%w: %s", ErrInvalidValue, entity)
	}
	return fmt.Errorf("ошибка записи (%s): %w", entity, err)
}

// readError переводит ошибку чтения одной записи.
// id, который не разбирается как UUID, не найдёт записи.
func readError(err error, entity string) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
		return ErrNotFound
	}
	return fmt.Errorf("ошибка получения (%s): %w", entity, err)
}

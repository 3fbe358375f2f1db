package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/schoolsecure/hallpass/internal/model"
)

// ErrSchoolNotFound is returned when a school lookup matches no row.
var ErrSchoolNotFound = errors.New("school not found")

// SchoolRepo provides data access to the schools table. The school row
// carries the pass policy knobs (concurrent pass limit and the fallback
// duration) and doubles as the lock anchor for admission control: flows
// that consume active-pass capacity lock the school row FOR UPDATE so
// that concurrent activations serialize per school.
type SchoolRepo struct {
	db *sql.DB
}

// NewSchoolRepo returns a new SchoolRepo bound to the provided database.
func NewSchoolRepo(db *sql.DB) *SchoolRepo { return &SchoolRepo{db: db} }

// DB exposes the underlying sql.DB. It allows callers to begin
// transactions spanning multiple repositories.
func (r *SchoolRepo) DB() *sql.DB { return r.db }

const schoolColumns = `id, name, concurrent_pass_limit, default_pass_duration, created_at, updated_at`

// GetByID retrieves a school by its ID. It returns ErrSchoolNotFound if
// there is no matching row.
func (r *SchoolRepo) GetByID(ctx context.Context, id uint64) (*model.School, error) {
	const q = `SELECT ` + schoolColumns + ` FROM schools WHERE id = ?`
	var s model.School
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Name, &s.ConcurrentPassLimit, &s.DefaultPassDuration, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSchoolNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetTx loads a school row inside the caller's transaction without
// taking a lock. Flows that only consult the policy knobs use it so the
// snapshot comes from the same transaction as the rest of the work
// while leaving the row free for concurrent activations.
func (r *SchoolRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.School, error) {
	const q = `SELECT ` + schoolColumns + ` FROM schools WHERE id = ?`
	var s model.School
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Name, &s.ConcurrentPassLimit, &s.DefaultPassDuration, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSchoolNotFound
		}
		return nil, err
	}
	return &s, nil
}

// GetForUpdateTx loads a school row inside the caller's transaction with
// a FOR UPDATE lock. Activation holds this lock while it counts active
// passes and inserts the new one, so two students racing for the last
// slot cannot both get in. The caller must commit or roll back the
// transaction. Returns ErrSchoolNotFound when the row does not exist.
func (r *SchoolRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.School, error) {
	const q = `SELECT ` + schoolColumns + ` FROM schools WHERE id = ? FOR UPDATE`
	var s model.School
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.Name, &s.ConcurrentPassLimit, &s.DefaultPassDuration, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSchoolNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpdateSettings writes the two policy columns for a school. It only
// performs the UPDATE when at least one value differs; otherwise it
// returns ErrNoChange. When the school does not exist it returns
// ErrSchoolNotFound.
func (r *SchoolRepo) UpdateSettings(ctx context.Context, id uint64, concurrentPassLimit, defaultPassDuration int) error {
	const q = `UPDATE schools
               SET concurrent_pass_limit = ?, default_pass_duration = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ?
                 AND (concurrent_pass_limit <> ? OR default_pass_duration <> ?)`
	res, err := r.db.ExecContext(ctx, q,
		concurrentPassLimit, defaultPassDuration, id,
		concurrentPassLimit, defaultPassDuration,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	// Zero rows affected: either the school is missing or the values are
	// already what the caller asked for. Distinguish with an existence check.
	var exists uint64
	err = r.db.QueryRowContext(ctx, `SELECT id FROM schools WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSchoolNotFound
	}
	if err != nil {
		return err
	}
	return ErrNoChange
}

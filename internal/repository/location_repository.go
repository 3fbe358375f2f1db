package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/schoolsecure/hallpass/internal/model"
)

// ErrLocationNotFound is returned when a location lookup matches no row
// in the caller's school. Rows belonging to other schools are reported
// as missing, never as forbidden.
var ErrLocationNotFound = errors.New("location not found")

// LocationRepo provides data access to the locations table. Locations
// are always addressed together with their school ID so that no query
// can cross a school boundary.
type LocationRepo struct {
	db *sql.DB
}

// NewLocationRepo returns a new LocationRepo bound to the provided database.
func NewLocationRepo(db *sql.DB) *LocationRepo { return &LocationRepo{db: db} }

const locationColumns = `id, school_id, name, default_duration, requires_approval, early_release_only, summons_only, is_active, created_at, updated_at`

// Create inserts a new location and populates the generated ID plus the
// DB-default fields (is_active, created_at, updated_at) on the given
// struct. SchoolID, Name and the category flags must be set by the caller.
func (r *LocationRepo) Create(ctx context.Context, l *model.Location) error {
	const qInsert = `INSERT INTO locations (school_id, name, default_duration, requires_approval, early_release_only, summons_only)
	                 VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, qInsert,
		l.SchoolID, l.Name, l.DefaultDuration, l.RequiresApproval, l.EarlyReleaseOnly, l.SummonsOnly,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)

	const qSelect = `SELECT ` + locationColumns + ` FROM locations WHERE id = ?`
	return r.db.QueryRowContext(ctx, qSelect, l.ID).Scan(
		&l.ID, &l.SchoolID, &l.Name, &l.DefaultDuration,
		&l.RequiresApproval, &l.EarlyReleaseOnly, &l.SummonsOnly,
		&l.IsActive, &l.CreatedAt, &l.UpdatedAt,
	)
}

// GetByID retrieves a location by ID within a school. It returns
// ErrLocationNotFound when no row matches.
func (r *LocationRepo) GetByID(ctx context.Context, id, schoolID uint64) (*model.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = ? AND school_id = ?`
	var l model.Location
	err := r.db.QueryRowContext(ctx, q, id, schoolID).Scan(
		&l.ID, &l.SchoolID, &l.Name, &l.DefaultDuration,
		&l.RequiresApproval, &l.EarlyReleaseOnly, &l.SummonsOnly,
		&l.IsActive, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}
	return &l, nil
}

// GetTx behaves like GetByID but runs inside the caller's transaction.
// Pass creation reads the location in-transaction so the category flags
// it bases the initial status on cannot change under it.
func (r *LocationRepo) GetTx(ctx context.Context, tx *sql.Tx, id, schoolID uint64) (*model.Location, error) {
	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = ? AND school_id = ?`
	var l model.Location
	err := tx.QueryRowContext(ctx, q, id, schoolID).Scan(
		&l.ID, &l.SchoolID, &l.Name, &l.DefaultDuration,
		&l.RequiresApproval, &l.EarlyReleaseOnly, &l.SummonsOnly,
		&l.IsActive, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLocationNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ListBySchool returns the locations of a school ordered by name. When
// includeInactive is false, soft-deleted locations are filtered out; the
// admin management view passes true to show everything.
func (r *LocationRepo) ListBySchool(ctx context.Context, schoolID uint64, includeInactive bool) ([]model.Location, error) {
	q := `SELECT ` + locationColumns + ` FROM locations WHERE school_id = ?`
	if !includeInactive {
		q += ` AND is_active = 1`
	}
	q += ` ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, q, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Location, 0)
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(
			&l.ID, &l.SchoolID, &l.Name, &l.DefaultDuration,
			&l.RequiresApproval, &l.EarlyReleaseOnly, &l.SummonsOnly,
			&l.IsActive, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes the mutable columns of a location within its school. It
// only performs the UPDATE when at least one value differs; otherwise it
// returns ErrNoChange. When the row does not exist in the school it
// returns ErrLocationNotFound.
func (r *LocationRepo) Update(ctx context.Context, l *model.Location) error {
	const q = `UPDATE locations
               SET name = ?, default_duration = ?, requires_approval = ?, early_release_only = ?, summons_only = ?, is_active = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND school_id = ?
                 AND (name <> ? OR default_duration <> ? OR requires_approval <> ? OR early_release_only <> ? OR summons_only <> ? OR is_active <> ?)`
	res, err := r.db.ExecContext(ctx, q,
		l.Name, l.DefaultDuration, l.RequiresApproval, l.EarlyReleaseOnly, l.SummonsOnly, l.IsActive,
		l.ID, l.SchoolID,
		l.Name, l.DefaultDuration, l.RequiresApproval, l.EarlyReleaseOnly, l.SummonsOnly, l.IsActive,
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
	var exists uint64
	err = r.db.QueryRowContext(ctx, `SELECT id FROM locations WHERE id = ? AND school_id = ?`, l.ID, l.SchoolID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLocationNotFound
	}
	if err != nil {
		return err
	}
	return ErrNoChange
}

// Deactivate soft-deletes a location. Existing passes keep pointing at
// the row; only new passes are refused. Returns ErrLocationNotFound when
// the row does not exist in the school and ErrNoChange when it is
// already inactive.
func (r *LocationRepo) Deactivate(ctx context.Context, id, schoolID uint64) error {
	const q = `UPDATE locations
               SET is_active = 0, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND school_id = ? AND is_active = 1`
	res, err := r.db.ExecContext(ctx, q, id, schoolID)
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
	var exists uint64
	err = r.db.QueryRowContext(ctx, `SELECT id FROM locations WHERE id = ? AND school_id = ?`, id, schoolID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrLocationNotFound
	}
	if err != nil {
		return err
	}
	return ErrNoChange
}

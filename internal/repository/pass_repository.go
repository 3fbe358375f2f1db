package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/schoolsecure/hallpass/internal/engine"
	"github.com/schoolsecure/hallpass/internal/model"
)

// ErrPassNotFound is returned when a pass lookup matches no row in the
// caller's school.
var ErrPassNotFound = errors.New("pass not found")

// ErrCodeInUse is returned by ActivateTx when the generated verification
// code collides with one already stored for the school. Callers should
// generate a fresh code and retry.
var ErrCodeInUse = errors.New("verification code already in use")

// PassRepo provides data access to the passes table. Passes are
// append-only history: rows are created once and then only move through
// status updates, never deleted. Every query is scoped by school so no
// statement can cross a school boundary.
type PassRepo struct {
	db *sql.DB
}

// NewPassRepo returns a new PassRepo bound to the provided database.
func NewPassRepo(db *sql.DB) *PassRepo { return &PassRepo{db: db} }

// DB exposes the underlying sql.DB. It allows callers to begin
// transactions spanning multiple repositories. Use this method to
// obtain a *sql.DB when you need fine-grained transaction control.
func (r *PassRepo) DB() *sql.DB { return r.db }

const passColumns = `id, school_id, student_id, location_id, approver_id, status,
       requested_start_time, requested_end_time, allotted_minutes,
       actual_start_time, actual_end_time, duration_minutes, verification_code,
       is_summons, is_early_release, student_reason, admin_notes, approval_notes, approved_at,
       created_at, updated_at`

// activeHoldingCapacity matches ACTIVE passes whose allotted time has not
// run out yet. Overdue actives are already due for expiry and no longer
// hold a capacity slot or answer to their verification code, even before
// the sweep flips their status.
const activeHoldingCapacity = `status = 'ACTIVE' AND DATE_ADD(actual_start_time, INTERVAL allotted_minutes MINUTE) >= UTC_TIMESTAMP()`

// effectiveStatus reads a non-terminal row that is past its deadline as
// EXPIRED. The sweep flips such rows eventually; until it does, readers
// must not see the stale stored status. UTC_TIMESTAMP() decides "now",
// the same clock the sweep and the capacity predicate compare against.
const effectiveStatus = `CASE
       WHEN p.status IN ('PENDING', 'APPROVED') AND p.requested_end_time < UTC_TIMESTAMP() THEN 'EXPIRED'
       WHEN p.status = 'ACTIVE' AND DATE_ADD(p.actual_start_time, INTERVAL p.allotted_minutes MINUTE) < UTC_TIMESTAMP() THEN 'EXPIRED'
       ELSE p.status
       END`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanPass reads one passes row in passColumns order, converting the
// nullable columns to pointers.
func scanPass(rs rowScanner) (*model.Pass, error) {
	var (
		p             model.Pass
		approverID    sql.NullInt64
		duration      sql.NullInt64
		actualStart   sql.NullTime
		actualEnd     sql.NullTime
		approvedAt    sql.NullTime
		code          sql.NullString
		reason        sql.NullString
		adminNotes    sql.NullString
		approvalNotes sql.NullString
	)
	err := rs.Scan(
		&p.ID, &p.SchoolID, &p.StudentID, &p.LocationID, &approverID, &p.Status,
		&p.RequestedStartTime, &p.RequestedEndTime, &p.AllottedMinutes,
		&actualStart, &actualEnd, &duration, &code,
		&p.IsSummons, &p.IsEarlyRelease, &reason, &adminNotes, &approvalNotes, &approvedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approverID.Valid {
		v := uint64(approverID.Int64)
		p.ApproverID = &v
	}
	if actualStart.Valid {
		t := actualStart.Time
		p.ActualStartTime = &t
	}
	if actualEnd.Valid {
		t := actualEnd.Time
		p.ActualEndTime = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		p.ApprovedAt = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		p.DurationMinutes = &d
	}
	if code.Valid {
		s := code.String
		p.VerificationCode = &s
	}
	if reason.Valid {
		s := reason.String
		p.StudentReason = &s
	}
	if adminNotes.Valid {
		s := adminNotes.String
		p.AdminNotes = &s
	}
	if approvalNotes.Valid {
		s := approvalNotes.String
		p.ApprovalNotes = &s
	}
	return &p, nil
}

// CreateTx inserts a new pass within the scope of an existing
// transaction and reads the row back so the generated ID and DB-default
// fields are populated on the given struct. The caller must commit or
// roll back the transaction. Status, the requested window and
// allotted_minutes must already be resolved; verification code and the
// actual times start out NULL.
func (r *PassRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Pass) error {
	const q = `INSERT INTO passes
               (school_id, student_id, location_id, approver_id, status,
                requested_start_time, requested_end_time, allotted_minutes,
                is_summons, is_early_release, student_reason, admin_notes, approval_notes, approved_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		p.SchoolID, p.StudentID, p.LocationID, p.ApproverID, string(p.Status),
		p.RequestedStartTime, p.RequestedEndTime, p.AllottedMinutes,
		p.IsSummons, p.IsEarlyRelease, p.StudentReason, p.AdminNotes, p.ApprovalNotes, p.ApprovedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)

	const sel = `SELECT ` + passColumns + ` FROM passes WHERE id = ?`
	stored, err := scanPass(tx.QueryRowContext(ctx, sel, p.ID))
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

// GetByID retrieves a pass by ID within a school. It returns
// ErrPassNotFound when no row matches.
func (r *PassRepo) GetByID(ctx context.Context, id, schoolID uint64) (*model.Pass, error) {
	const q = `SELECT ` + passColumns + ` FROM passes WHERE id = ? AND school_id = ?`
	p, err := scanPass(r.db.QueryRowContext(ctx, q, id, schoolID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetForUpdateTx loads a pass row inside the caller's transaction with a
// FOR UPDATE lock. Every state change (decide, activate, complete,
// lazy expiry) locks the row first so concurrent writers serialize on
// it. Returns ErrPassNotFound when no row matches in the school.
func (r *PassRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id, schoolID uint64) (*model.Pass, error) {
	const q = `SELECT ` + passColumns + ` FROM passes WHERE id = ? AND school_id = ? FOR UPDATE`
	p, err := scanPass(tx.QueryRowContext(ctx, q, id, schoolID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, err
	}
	return p, nil
}

// FindNonTerminalByStudentTx returns the student's open pass (PENDING,
// APPROVED or ACTIVE) if one exists, locking it FOR UPDATE. It returns
// (nil, nil) when the student has no open pass; the gap lock taken by
// the locking read then keeps a concurrent request from inserting one
// until this transaction finishes.
func (r *PassRepo) FindNonTerminalByStudentTx(ctx context.Context, tx *sql.Tx, studentID uint64) (*model.Pass, error) {
	const q = `SELECT ` + passColumns + ` FROM passes
               WHERE student_id = ? AND status IN ('PENDING', 'APPROVED', 'ACTIVE')
               LIMIT 1 FOR UPDATE`
	p, err := scanPass(tx.QueryRowContext(ctx, q, studentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// CountActiveTx counts the passes currently holding an active-pass slot
// for the school. It runs inside the caller's transaction; activation
// calls it while holding the school row lock so the count cannot move
// between the check and the insert.
func (r *PassRepo) CountActiveTx(ctx context.Context, tx *sql.Tx, schoolID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM passes WHERE school_id = ? AND ` + activeHoldingCapacity
	var n int
	err := tx.QueryRowContext(ctx, q, schoolID).Scan(&n)
	return n, err
}

// CountActive is the plain-connection variant of CountActiveTx, used by
// dashboards for the "out of class right now" figure.
func (r *PassRepo) CountActive(ctx context.Context, schoolID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM passes WHERE school_id = ? AND ` + activeHoldingCapacity
	var n int
	err := r.db.QueryRowContext(ctx, q, schoolID).Scan(&n)
	return n, err
}

// DecideTx records an approval or denial on a pending pass: the new
// status, the deciding staff member and the approval note, stamping
// approved_at. A non-nil adminNotes replaces the staff notes; nil leaves
// them untouched. status must be APPROVED or DENIED; the caller checks
// the transition before calling.
func (r *PassRepo) DecideTx(ctx context.Context, tx *sql.Tx, passID, approverID uint64, status model.PassStatus, note string, adminNotes *string) error {
	const q = `UPDATE passes
               SET status = ?, approver_id = ?, approval_notes = ?, approved_at = UTC_TIMESTAMP(),
                   admin_notes = COALESCE(?, admin_notes), updated_at = UTC_TIMESTAMP()
               WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, string(status), approverID, note, adminNotes, passID)
	return err
}

// ActivateTx flips an approved pass to ACTIVE, stamping the actual start
// time and the verification code. The (school_id, verification_code)
// unique key turns a code collision into ErrCodeInUse; the caller
// generates a new code and retries.
func (r *PassRepo) ActivateTx(ctx context.Context, tx *sql.Tx, passID uint64, code string, startedAt time.Time) error {
	const q = `UPDATE passes
               SET status = 'ACTIVE', verification_code = ?, actual_start_time = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, code, startedAt, passID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrCodeInUse
		}
		return err
	}
	return nil
}

// CompleteTx flips an active pass to COMPLETED, stamping the actual end
// time and the measured duration. duration_minutes is written exactly
// once, here; no other code path touches it.
func (r *PassRepo) CompleteTx(ctx context.Context, tx *sql.Tx, passID uint64, endedAt time.Time, durationMinutes int) error {
	const q = `UPDATE passes
               SET status = 'COMPLETED', actual_end_time = ?, duration_minutes = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, endedAt, durationMinutes, passID)
	return err
}

// MarkExpiredTx flips a pass to EXPIRED without touching any other
// column: an expired pass keeps whatever actual times it had and never
// receives a duration. Used for lazy expiry when a handler finds an
// overdue pass under its row lock.
func (r *PassRepo) MarkExpiredTx(ctx context.Context, tx *sql.Tx, passID uint64) error {
	const q = `UPDATE passes SET status = 'EXPIRED', updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, passID)
	return err
}

// ExpiredPass identifies a pass flipped to EXPIRED by the sweep,
// carrying just enough to publish an event about it.
type ExpiredPass struct {
	ID        uint64 `json:"id"`
	SchoolID  uint64 `json:"school_id"`
	StudentID uint64 `json:"student_id"`
}

// ExpireDue finds every pass across all schools that is past its
// deadline (requested window end for PENDING/APPROVED, allotted time
// from the actual start for ACTIVE) and flips it to EXPIRED in one
// transaction. It returns the flipped rows so the caller can publish
// expiry events. When nothing is due it returns an empty slice.
func (r *PassRepo) ExpireDue(ctx context.Context) ([]ExpiredPass, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const sel = `SELECT id, school_id, student_id FROM passes
                 WHERE (status IN ('PENDING', 'APPROVED') AND requested_end_time < UTC_TIMESTAMP())
                    OR (status = 'ACTIVE' AND DATE_ADD(actual_start_time, INTERVAL allotted_minutes MINUTE) < UTC_TIMESTAMP())
                 FOR UPDATE`
	rows, err := tx.QueryContext(ctx, sel)
	if err != nil {
		return nil, err
	}
	expired := make([]ExpiredPass, 0)
	for rows.Next() {
		var e ExpiredPass
		if scanErr := rows.Scan(&e.ID, &e.SchoolID, &e.StudentID); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		expired = append(expired, e)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		committed = true
		return expired, tx.Commit()
	}

	// Flip exactly the rows selected above; re-running the deadline
	// predicate here could catch rows that crossed it in between.
	ids := make([]interface{}, 0, len(expired))
	placeholders := make([]string, 0, len(expired))
	for _, e := range expired {
		ids = append(ids, e.ID)
		placeholders = append(placeholders, "?")
	}
	upd := `UPDATE passes SET status = 'EXPIRED', updated_at = UTC_TIMESTAMP()
            WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	if _, err = tx.ExecContext(ctx, upd, ids...); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return expired, nil
}

// PassDetail is a pass joined with the names a client renders next to
// it: the student, the destination location and (once decided) the
// approving staff member.
type PassDetail struct {
	ID                 uint64     `json:"id"`
	SchoolID           uint64     `json:"school_id"`
	StudentID          uint64     `json:"student_id"`
	StudentName        string     `json:"student_name"`
	LocationID         uint64     `json:"location_id"`
	LocationName       string     `json:"location_name"`
	ApproverID         *uint64    `json:"approver_id,omitempty"`
	ApproverName       *string    `json:"approver_name,omitempty"`
	Status             string     `json:"status"`
	RequestedStartTime time.Time  `json:"requested_start_time"`
	RequestedEndTime   time.Time  `json:"requested_end_time"`
	AllottedMinutes    int        `json:"allotted_minutes"`
	ActualStartTime    *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time `json:"actual_end_time,omitempty"`
	DurationMinutes    *int       `json:"duration_minutes,omitempty"`
	VerificationCode   *string    `json:"verification_code,omitempty"`
	IsSummons          bool       `json:"is_summons"`
	IsEarlyRelease     bool       `json:"is_early_release"`
	StudentReason      *string    `json:"student_reason,omitempty"`
	AdminNotes         *string    `json:"admin_notes,omitempty"`
	ApprovalNotes      *string    `json:"approval_notes,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

const passDetailSelect = `SELECT p.id, p.school_id, p.student_id, CONCAT(st.first_name, ' ', st.last_name),
       p.location_id, l.name, p.approver_id, CONCAT(ap.first_name, ' ', ap.last_name),
       ` + effectiveStatus + `,
       p.requested_start_time, p.requested_end_time, p.allotted_minutes,
       p.actual_start_time, p.actual_end_time, p.duration_minutes, p.verification_code,
       p.is_summons, p.is_early_release, p.student_reason, p.admin_notes, p.approval_notes, p.approved_at,
       p.created_at, p.updated_at
       FROM passes p
       JOIN users st ON st.id = p.student_id
       JOIN locations l ON l.id = p.location_id
       LEFT JOIN users ap ON ap.id = p.approver_id`

// scanPassDetail reads one joined row in passDetailSelect order.
func scanPassDetail(rs rowScanner) (*PassDetail, error) {
	var (
		d             PassDetail
		approverID    sql.NullInt64
		approverName  sql.NullString
		duration      sql.NullInt64
		actualStart   sql.NullTime
		actualEnd     sql.NullTime
		approvedAt    sql.NullTime
		code          sql.NullString
		reason        sql.NullString
		adminNotes    sql.NullString
		approvalNotes sql.NullString
	)
	err := rs.Scan(
		&d.ID, &d.SchoolID, &d.StudentID, &d.StudentName,
		&d.LocationID, &d.LocationName, &approverID, &approverName,
		&d.Status, &d.RequestedStartTime, &d.RequestedEndTime, &d.AllottedMinutes,
		&actualStart, &actualEnd, &duration, &code,
		&d.IsSummons, &d.IsEarlyRelease, &reason, &adminNotes, &approvalNotes, &approvedAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approverID.Valid {
		v := uint64(approverID.Int64)
		d.ApproverID = &v
	}
	if approverName.Valid {
		s := approverName.String
		d.ApproverName = &s
	}
	if actualStart.Valid {
		t := actualStart.Time
		d.ActualStartTime = &t
	}
	if actualEnd.Valid {
		t := actualEnd.Time
		d.ActualEndTime = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		d.ApprovedAt = &t
	}
	if duration.Valid {
		v := int(duration.Int64)
		d.DurationMinutes = &v
	}
	if code.Valid {
		s := code.String
		d.VerificationCode = &s
	}
	if reason.Valid {
		s := reason.String
		d.StudentReason = &s
	}
	if adminNotes.Valid {
		s := adminNotes.String
		d.AdminNotes = &s
	}
	if approvalNotes.Valid {
		s := approvalNotes.String
		d.ApprovalNotes = &s
	}
	return &d, nil
}

// GetDetail returns a single pass with joined names, scoped to a school.
// It returns ErrPassNotFound when no row matches.
func (r *PassRepo) GetDetail(ctx context.Context, id, schoolID uint64) (*PassDetail, error) {
	const q = passDetailSelect + ` WHERE p.id = ? AND p.school_id = ?`
	d, err := scanPassDetail(r.db.QueryRowContext(ctx, q, id, schoolID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, err
	}
	return d, nil
}

// PassFilter narrows school-wide pass listings. Zero values mean "no
// constraint". Statuses must already be validated by the caller.
type PassFilter struct {
	Statuses   []model.PassStatus
	LocationID uint64
	StudentID  uint64
	Limit      int
}

// ListBySchool returns passes for a school, newest first, optionally
// narrowed by status, location and student. When no passes match it
// returns an empty slice. Status filters match the effective status, so
// asking for ACTIVE never returns a pass whose time already ran out.
func (r *PassRepo) ListBySchool(ctx context.Context, schoolID uint64, f PassFilter) ([]PassDetail, error) {
	q := passDetailSelect + ` WHERE p.school_id = ?`
	args := []interface{}{schoolID}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			placeholders = append(placeholders, "?")
			args = append(args, string(s))
		}
		q += ` AND (` + effectiveStatus + `) IN (` + strings.Join(placeholders, ",") + `)`
	}
	if f.LocationID != 0 {
		q += ` AND p.location_id = ?`
		args = append(args, f.LocationID)
	}
	if f.StudentID != 0 {
		q += ` AND p.student_id = ?`
		args = append(args, f.StudentID)
	}
	q += ` ORDER BY p.created_at DESC, p.id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	return r.queryDetails(ctx, q, args...)
}

// ListByStudent returns one student's passes, newest first, optionally
// narrowed by status and capped by limit.
func (r *PassRepo) ListByStudent(ctx context.Context, studentID uint64, statuses []model.PassStatus, limit int) ([]PassDetail, error) {
	q := passDetailSelect + ` WHERE p.student_id = ?`
	args := []interface{}{studentID}
	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		for _, s := range statuses {
			placeholders = append(placeholders, "?")
			args = append(args, string(s))
		}
		q += ` AND (` + effectiveStatus + `) IN (` + strings.Join(placeholders, ",") + `)`
	}
	q += ` ORDER BY p.created_at DESC, p.id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryDetails(ctx, q, args...)
}

// ListPending returns a school's PENDING passes oldest first, the order
// a decision queue is worked through. Requests whose window already
// closed are due for expiry and never appear in the queue.
func (r *PassRepo) ListPending(ctx context.Context, schoolID uint64) ([]PassDetail, error) {
	const q = passDetailSelect + ` WHERE p.school_id = ? AND p.status = 'PENDING'
       AND p.requested_end_time >= UTC_TIMESTAMP()
       ORDER BY p.created_at ASC, p.id ASC`
	return r.queryDetails(ctx, q, schoolID)
}

// FindActiveByCode resolves a verification code within a school. Only a
// code on an ACTIVE pass that still has allotted time left resolves;
// anything else reads as ErrPassNotFound, including codes kept on
// historical rows.
func (r *PassRepo) FindActiveByCode(ctx context.Context, schoolID uint64, code string) (*PassDetail, error) {
	const q = passDetailSelect + ` WHERE p.school_id = ? AND p.verification_code = ?
       AND p.status = 'ACTIVE' AND DATE_ADD(p.actual_start_time, INTERVAL p.allotted_minutes MINUTE) >= UTC_TIMESTAMP()`
	d, err := scanPassDetail(r.db.QueryRowContext(ctx, q, schoolID, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *PassRepo) queryDetails(ctx context.Context, q string, args ...interface{}) ([]PassDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]PassDetail, 0)
	for rows.Next() {
		d, err := scanPassDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusCountsSince returns how many passes were created in the window
// per effective status, so overdue rows count as EXPIRED even before
// the sweep flips them. Statuses with no passes are simply absent from
// the map.
func (r *PassRepo) StatusCountsSince(ctx context.Context, schoolID uint64, since time.Time) (map[model.PassStatus]int, error) {
	const q = `SELECT ` + effectiveStatus + ` AS s, COUNT(*) FROM passes p
               WHERE p.school_id = ? AND p.created_at >= ?
               GROUP BY s`
	rows, err := r.db.QueryContext(ctx, q, schoolID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[model.PassStatus]int)
	for rows.Next() {
		var status model.PassStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// CompletedStats sums the measured durations of passes created in the
// window that reached COMPLETED. The count is the metric's sample size;
// callers decide whether it is big enough to show an average.
func (r *PassRepo) CompletedStats(ctx context.Context, schoolID uint64, since time.Time) (completed int, totalMinutes int, err error) {
	const q = `SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0) FROM passes
               WHERE school_id = ? AND status = 'COMPLETED' AND duration_minutes IS NOT NULL AND created_at >= ?`
	err = r.db.QueryRowContext(ctx, q, schoolID, since).Scan(&completed, &totalMinutes)
	return completed, totalMinutes, err
}

// CompletedStatsByApprover is CompletedStats narrowed to passes one
// staff member approved, for the personal block on their dashboard.
func (r *PassRepo) CompletedStatsByApprover(ctx context.Context, approverID uint64, since time.Time) (completed int, totalMinutes int, err error) {
	const q = `SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0) FROM passes
               WHERE approver_id = ? AND status = 'COMPLETED' AND duration_minutes IS NOT NULL AND created_at >= ?`
	err = r.db.QueryRowContext(ctx, q, approverID, since).Scan(&completed, &totalMinutes)
	return completed, totalMinutes, err
}

// StudentStats sums one student's completed passes and minutes out over
// their whole history.
func (r *PassRepo) StudentStats(ctx context.Context, studentID uint64) (completed int, totalMinutes int, err error) {
	const q = `SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0) FROM passes
               WHERE student_id = ? AND status = 'COMPLETED' AND duration_minutes IS NOT NULL`
	err = r.db.QueryRowContext(ctx, q, studentID).Scan(&completed, &totalMinutes)
	return completed, totalMinutes, err
}

// HourBuckets groups the window's passes by the hour of day they were
// requested. Hours with no passes are absent from the result.
func (r *PassRepo) HourBuckets(ctx context.Context, schoolID uint64, since time.Time) ([]engine.HourBucket, error) {
	const q = `SELECT HOUR(created_at) AS h, COUNT(*) FROM passes
               WHERE school_id = ? AND created_at >= ?
               GROUP BY h
               ORDER BY h ASC`
	rows, err := r.db.QueryContext(ctx, q, schoolID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	buckets := make([]engine.HourBucket, 0)
	for rows.Next() {
		var b engine.HourBucket
		if err := rows.Scan(&b.Hour, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buckets, nil
}

// ApproverCount pairs a staff member with how many passes they decided
// in a window.
type ApproverCount struct {
	ApproverID uint64 `json:"approver_id"`
	Name       string `json:"name"`
	Count      int    `json:"count"`
}

// ApproverCounts returns the window's decisions grouped by the staff
// member who made them, busiest first.
func (r *PassRepo) ApproverCounts(ctx context.Context, schoolID uint64, since time.Time) ([]ApproverCount, error) {
	const q = `SELECT p.approver_id, CONCAT(u.first_name, ' ', u.last_name), COUNT(*) AS n
               FROM passes p
               JOIN users u ON u.id = p.approver_id
               WHERE p.school_id = ? AND p.approver_id IS NOT NULL AND p.approved_at >= ?
               GROUP BY p.approver_id, u.first_name, u.last_name
               ORDER BY n DESC, p.approver_id ASC`
	rows, err := r.db.QueryContext(ctx, q, schoolID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ApproverCount, 0)
	for rows.Next() {
		var a ApproverCount
		if err := rows.Scan(&a.ApproverID, &a.Name, &a.Count); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountDecidedBy returns how many decisions one staff member recorded in
// the window.
func (r *PassRepo) CountDecidedBy(ctx context.Context, approverID uint64, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM passes WHERE approver_id = ? AND approved_at >= ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, approverID, since).Scan(&n)
	return n, err
}

// LocationCount pairs a location with how many passes targeted it in a
// window.
type LocationCount struct {
	LocationID uint64 `json:"location_id"`
	Name       string `json:"name"`
	Count      int    `json:"count"`
}

// LocationCounts returns the window's passes grouped by destination,
// busiest first.
func (r *PassRepo) LocationCounts(ctx context.Context, schoolID uint64, since time.Time) ([]LocationCount, error) {
	const q = `SELECT p.location_id, l.name, COUNT(*) AS n
               FROM passes p
               JOIN locations l ON l.id = p.location_id
               WHERE p.school_id = ? AND p.created_at >= ?
               GROUP BY p.location_id, l.name
               ORDER BY n DESC, p.location_id ASC`
	rows, err := r.db.QueryContext(ctx, q, schoolID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]LocationCount, 0)
	for rows.Next() {
		var lc LocationCount
		if err := rows.Scan(&lc.LocationID, &lc.Name, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanapbuhay/backend/internal/models"
)

const dayColumns = `id, job_id, worker_id, assignment_id, date, time_in, time_out, status,
	worker_confirmed, worker_status, client_confirmed, client_status,
	amount_earned_centavos, payment_processed, created_at, updated_at`

const extensionColumns = `id, job_id, requested_by, additional_days, additional_escrow_centavos,
	reason, client_approved, worker_approved, status, effective_at, created_at, updated_at`

const rateChangeColumns = `id, job_id, requested_by, new_daily_rate_centavos, escrow_delta_centavos,
	remaining_days, client_approved, worker_approved, status, effective_at, created_at, updated_at`

// Repository is the pgx-backed attendance store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) InsertDay(ctx context.Context, tx pgx.Tx, d *models.DailyAttendance) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO daily_attendance (id, job_id, worker_id, assignment_id, date, time_in, time_out,
			status, worker_confirmed, worker_status, client_confirmed, client_status,
			amount_earned_centavos, payment_processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, d.ID, d.JobID, d.WorkerID, d.AssignmentID, d.Date, d.TimeIn, d.TimeOut,
		d.Status, d.WorkerConfirmed, d.WorkerStatus, d.ClientConfirmed, d.ClientStatus,
		d.AmountEarnedCentavos, d.PaymentProcessed)
	return err
}

func (r *Repository) DayForUpdate(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID, date time.Time) (*models.DailyAttendance, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+dayColumns+` FROM daily_attendance
		WHERE job_id = $1 AND worker_id = $2 AND date = $3
		FOR UPDATE
	`, jobID, workerID, date)
	d, err := scanDay(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *Repository) UpdateDay(ctx context.Context, tx pgx.Tx, d *models.DailyAttendance) error {
	_, err := tx.Exec(ctx, `
		UPDATE daily_attendance
		SET time_in = $2, time_out = $3, status = $4, worker_confirmed = $5, worker_status = $6,
			client_confirmed = $7, client_status = $8, amount_earned_centavos = $9,
			payment_processed = $10, updated_at = now()
		WHERE id = $1
	`, d.ID, d.TimeIn, d.TimeOut, d.Status, d.WorkerConfirmed, d.WorkerStatus,
		d.ClientConfirmed, d.ClientStatus, d.AmountEarnedCentavos, d.PaymentProcessed)
	return err
}

func (r *Repository) DaysByJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.DailyAttendance, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+dayColumns+` FROM daily_attendance WHERE job_id = $1 ORDER BY date ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDays(rows)
}

func (r *Repository) DayCount(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `SELECT count(*) FROM daily_attendance WHERE job_id = $1`, jobID).Scan(&n)
	return n, err
}

// LapsedPendingDays returns still-pending days at or before the cutoff date,
// locked for finalization.
func (r *Repository) LapsedPendingDays(ctx context.Context, tx pgx.Tx, cutoff time.Time) ([]*models.DailyAttendance, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+dayColumns+` FROM daily_attendance
		WHERE status = 'PENDING' AND date <= $1
		ORDER BY date ASC
		FOR UPDATE SKIP LOCKED
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDays(rows)
}

// UnprocessedDays returns finalized days whose earning has not been promoted.
func (r *Repository) UnprocessedDays(ctx context.Context, tx pgx.Tx, limit int) ([]*models.DailyAttendance, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+dayColumns+` FROM daily_attendance
		WHERE payment_processed = false AND status IN ('PRESENT', 'HALF_DAY', 'ABSENT')
		ORDER BY date ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDays(rows)
}

func (r *Repository) InsertExtension(ctx context.Context, tx pgx.Tx, e *models.DailyJobExtension) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO daily_job_extensions (id, job_id, requested_by, additional_days,
			additional_escrow_centavos, reason, client_approved, worker_approved, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.JobID, e.RequestedBy, e.AdditionalDays,
		e.AdditionalEscrowCentavos, e.Reason, e.ClientApproved, e.WorkerApproved, e.Status)
	return err
}

func (r *Repository) ExtensionForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.DailyJobExtension, error) {
	row := tx.QueryRow(ctx, `SELECT `+extensionColumns+` FROM daily_job_extensions WHERE id = $1 FOR UPDATE`, id)
	var e models.DailyJobExtension
	err := row.Scan(&e.ID, &e.JobID, &e.RequestedBy, &e.AdditionalDays, &e.AdditionalEscrowCentavos,
		&e.Reason, &e.ClientApproved, &e.WorkerApproved, &e.Status, &e.EffectiveAt, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) UpdateExtension(ctx context.Context, tx pgx.Tx, e *models.DailyJobExtension) error {
	_, err := tx.Exec(ctx, `
		UPDATE daily_job_extensions
		SET client_approved = $2, worker_approved = $3, status = $4, effective_at = $5, updated_at = now()
		WHERE id = $1
	`, e.ID, e.ClientApproved, e.WorkerApproved, e.Status, e.EffectiveAt)
	return err
}

func (r *Repository) InsertRateChange(ctx context.Context, tx pgx.Tx, rc *models.DailyRateChange) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO daily_rate_changes (id, job_id, requested_by, new_daily_rate_centavos,
			escrow_delta_centavos, remaining_days, client_approved, worker_approved, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rc.ID, rc.JobID, rc.RequestedBy, rc.NewDailyRateCentavos,
		rc.EscrowDeltaCentavos, rc.RemainingDays, rc.ClientApproved, rc.WorkerApproved, rc.Status)
	return err
}

func (r *Repository) RateChangeForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.DailyRateChange, error) {
	row := tx.QueryRow(ctx, `SELECT `+rateChangeColumns+` FROM daily_rate_changes WHERE id = $1 FOR UPDATE`, id)
	var rc models.DailyRateChange
	err := row.Scan(&rc.ID, &rc.JobID, &rc.RequestedBy, &rc.NewDailyRateCentavos, &rc.EscrowDeltaCentavos,
		&rc.RemainingDays, &rc.ClientApproved, &rc.WorkerApproved, &rc.Status, &rc.EffectiveAt, &rc.CreatedAt, &rc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *Repository) UpdateRateChange(ctx context.Context, tx pgx.Tx, rc *models.DailyRateChange) error {
	_, err := tx.Exec(ctx, `
		UPDATE daily_rate_changes
		SET client_approved = $2, worker_approved = $3, status = $4, effective_at = $5, updated_at = now()
		WHERE id = $1
	`, rc.ID, rc.ClientApproved, rc.WorkerApproved, rc.Status, rc.EffectiveAt)
	return err
}

// --- pool-scoped reads ---

// ListDays returns the job's attendance sheet for the API.
func (r *Repository) ListDays(ctx context.Context, jobID uuid.UUID) ([]*models.DailyAttendance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+dayColumns+` FROM daily_attendance WHERE job_id = $1 ORDER BY date ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDays(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDay(row rowScanner) (*models.DailyAttendance, error) {
	var d models.DailyAttendance
	err := row.Scan(&d.ID, &d.JobID, &d.WorkerID, &d.AssignmentID, &d.Date, &d.TimeIn, &d.TimeOut, &d.Status,
		&d.WorkerConfirmed, &d.WorkerStatus, &d.ClientConfirmed, &d.ClientStatus,
		&d.AmountEarnedCentavos, &d.PaymentProcessed, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDays(rows pgx.Rows) ([]*models.DailyAttendance, error) {
	var list []*models.DailyAttendance
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

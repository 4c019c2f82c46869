package disputes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanapbuhay/backend/internal/models"
)

const disputeColumns = `id, job_id, opened_by, reason, description, status, resolution,
	refund_amount_centavos, admin_approved_at, admin_rejected_at, created_at, updated_at`

// Repository is the pgx-backed dispute store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, d *models.JobDispute) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO job_disputes (id, job_id, opened_by, reason, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.ID, d.JobID, d.OpenedBy, d.Reason, d.Description, d.Status)
	return err
}

func (r *Repository) DisputeForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobDispute, error) {
	row := tx.QueryRow(ctx, `SELECT `+disputeColumns+` FROM job_disputes WHERE id = $1 FOR UPDATE`, id)
	d, err := scanDispute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (r *Repository) Update(ctx context.Context, tx pgx.Tx, d *models.JobDispute) error {
	_, err := tx.Exec(ctx, `
		UPDATE job_disputes
		SET status = $2, resolution = $3, refund_amount_centavos = $4,
			admin_approved_at = $5, admin_rejected_at = $6, updated_at = now()
		WHERE id = $1
	`, d.ID, d.Status, d.Resolution, d.RefundAmountCentavos, d.AdminApprovedAt, d.AdminRejectedAt)
	return err
}

func (r *Repository) ActiveByJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*models.JobDispute, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM job_disputes
		WHERE job_id = $1 AND status IN ('OPEN', 'UNDER_REVIEW')
		LIMIT 1
	`, jobID)
	d, err := scanDispute(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// LastRejectedAt returns the most recent rejection timestamp for the job's
// cooldown check, or nil when no dispute was ever rejected.
func (r *Repository) LastRejectedAt(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*time.Time, error) {
	var t *time.Time
	err := tx.QueryRow(ctx, `
		SELECT max(admin_rejected_at) FROM job_disputes WHERE job_id = $1
	`, jobID).Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// --- pool-scoped reads ---

func (r *Repository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.JobDispute, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM job_disputes WHERE job_id = $1 ORDER BY created_at DESC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDisputes(rows)
}

// ListOpen returns disputes awaiting admin action, oldest first.
func (r *Repository) ListOpen(ctx context.Context) ([]*models.JobDispute, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM job_disputes
		WHERE status IN ('OPEN', 'UNDER_REVIEW')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDisputes(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispute(row rowScanner) (*models.JobDispute, error) {
	var d models.JobDispute
	err := row.Scan(&d.ID, &d.JobID, &d.OpenedBy, &d.Reason, &d.Description, &d.Status, &d.Resolution,
		&d.RefundAmountCentavos, &d.AdminApprovedAt, &d.AdminRejectedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDisputes(rows pgx.Rows) ([]*models.JobDispute, error) {
	var list []*models.JobDispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

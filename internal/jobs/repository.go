package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanapbuhay/backend/internal/models"
)

const jobColumns = `id, client_id, title, description, specialization_id, location,
	budget_centavos, payment_model, daily_rate_centavos, duration_days, materials_cost_centavos,
	escrow_amount_centavos, escrow_charged_centavos, escrow_consumed_centavos, escrow_paid, escrow_paid_at, commission_fee_centavos,
	status, job_type, is_team_job, budget_allocation_type, team_start_threshold,
	assigned_worker_id, assigned_agency_id, invited_worker_id, invited_agency_id,
	payment_release_date, payment_released_to_worker, payment_released_at, payment_held_reason,
	materials_status, client_confirmed_work_started_at, worker_marked_complete_at,
	completed_at, cancelled_at, created_at, updated_at`

// Repository is the pgx-backed job store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, j *models.Job) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO jobs (id, client_id, title, description, specialization_id, location,
			budget_centavos, payment_model, daily_rate_centavos, duration_days, materials_cost_centavos,
			escrow_amount_centavos, commission_fee_centavos, status, job_type, is_team_job,
			budget_allocation_type, team_start_threshold, invited_worker_id, invited_agency_id,
			payment_held_reason, materials_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, j.ID, j.ClientID, j.Title, j.Description, j.SpecializationID, j.Location,
		j.BudgetCentavos, j.PaymentModel, j.DailyRateCentavos, j.DurationDays, j.MaterialsCostCentavos,
		j.EscrowAmountCentavos, j.CommissionFeeCentavos, j.Status, j.JobType, j.IsTeamJob,
		j.BudgetAllocationType, j.TeamStartThreshold, j.InvitedWorkerID, j.InvitedAgencyID,
		j.PaymentHeldReason, j.MaterialsStatus)
	return err
}

// JobForUpdate locks the job row; every state transition serializes on it.
func (r *Repository) JobForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error) {
	row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

func (r *Repository) Update(ctx context.Context, tx pgx.Tx, j *models.Job) error {
	_, err := tx.Exec(ctx, `
		UPDATE jobs
		SET escrow_amount_centavos = $2, escrow_charged_centavos = $22, escrow_consumed_centavos = $3,
			escrow_paid = $4, escrow_paid_at = $5,
			commission_fee_centavos = $6, status = $7, budget_centavos = $8, daily_rate_centavos = $9,
			duration_days = $10, assigned_worker_id = $11, assigned_agency_id = $12,
			payment_release_date = $13, payment_released_to_worker = $14, payment_released_at = $15,
			payment_held_reason = $16, materials_status = $17, client_confirmed_work_started_at = $18,
			worker_marked_complete_at = $19, completed_at = $20, cancelled_at = $21, updated_at = now()
		WHERE id = $1
	`, j.ID, j.EscrowAmountCentavos, j.EscrowConsumedCentavos, j.EscrowPaid, j.EscrowPaidAt,
		j.CommissionFeeCentavos, j.Status, j.BudgetCentavos, j.DailyRateCentavos,
		j.DurationDays, j.AssignedWorkerID, j.AssignedAgencyID,
		j.PaymentReleaseDate, j.PaymentReleasedToWorker, j.PaymentReleasedAt,
		j.PaymentHeldReason, j.MaterialsStatus, j.ClientConfirmedWorkStartedAt,
		j.WorkerMarkedCompleteAt, j.CompletedAt, j.CancelledAt, j.EscrowChargedCentavos)
	return err
}

// --- pool-scoped reads ---

func (r *Repository) JobByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

func (r *Repository) ListByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE client_id = $1 ORDER BY created_at DESC LIMIT $2
	`, clientID, pageLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ListOpen returns listings currently accepting applications.
func (r *Repository) ListOpen(ctx context.Context, limit int) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE job_type = 'LISTING' AND status IN ('PENDING_PAYMENT', 'ACTIVE')
		ORDER BY created_at DESC LIMIT $1
	`, pageLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func (r *Repository) ListByStatus(ctx context.Context, status string, limit int) ([]*models.Job, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY updated_at DESC LIMIT $2
	`, status, pageLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// DueForRelease claims completed jobs whose buffer has elapsed, skipping jobs
// another sweeper instance already holds and jobs with an open dispute.
func (r *Repository) DueForRelease(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]*models.Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = 'COMPLETED'
		  AND payment_released_to_worker = false
		  AND payment_release_date <= $1
		  AND payment_held_reason = 'BUFFER_PERIOD'
		  AND NOT EXISTS (
			SELECT 1 FROM job_disputes d
			WHERE d.job_id = jobs.id AND d.status IN ('OPEN', 'UNDER_REVIEW')
		  )
		ORDER BY payment_release_date ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

func pageLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.ClientID, &j.Title, &j.Description, &j.SpecializationID, &j.Location,
		&j.BudgetCentavos, &j.PaymentModel, &j.DailyRateCentavos, &j.DurationDays, &j.MaterialsCostCentavos,
		&j.EscrowAmountCentavos, &j.EscrowChargedCentavos, &j.EscrowConsumedCentavos, &j.EscrowPaid, &j.EscrowPaidAt, &j.CommissionFeeCentavos,
		&j.Status, &j.JobType, &j.IsTeamJob, &j.BudgetAllocationType, &j.TeamStartThreshold,
		&j.AssignedWorkerID, &j.AssignedAgencyID, &j.InvitedWorkerID, &j.InvitedAgencyID,
		&j.PaymentReleaseDate, &j.PaymentReleasedToWorker, &j.PaymentReleasedAt, &j.PaymentHeldReason,
		&j.MaterialsStatus, &j.ClientConfirmedWorkStartedAt, &j.WorkerMarkedCompleteAt,
		&j.CompletedAt, &j.CancelledAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]*models.Job, error) {
	var list []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}

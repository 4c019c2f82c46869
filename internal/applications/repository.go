package applications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanapbuhay/backend/internal/models"
)

const appColumns = `id, job_id, worker_id, agency_id, applied_skill_slot_id, proposal_message,
	proposed_budget_centavos, budget_option, status, is_invite, created_at, updated_at`

// Repository is the pgx-backed application store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, a *models.JobApplication) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO job_applications (id, job_id, worker_id, agency_id, applied_skill_slot_id,
			proposal_message, proposed_budget_centavos, budget_option, status, is_invite)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.JobID, a.WorkerID, a.AgencyID, a.AppliedSkillSlotID,
		a.ProposalMessage, a.ProposedBudgetCentavos, a.BudgetOption, a.Status, a.IsInvite)
	return err
}

func (r *Repository) ApplicationForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobApplication, error) {
	row := tx.QueryRow(ctx, `SELECT `+appColumns+` FROM job_applications WHERE id = $1 FOR UPDATE`, id)
	a, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (r *Repository) Update(ctx context.Context, tx pgx.Tx, a *models.JobApplication) error {
	_, err := tx.Exec(ctx, `
		UPDATE job_applications SET status = $2, updated_at = now() WHERE id = $1
	`, a.ID, a.Status)
	return err
}

// PendingByJobWorker finds an existing pending bid; for team jobs uniqueness
// is per slot, otherwise per job.
func (r *Repository) PendingByJobWorker(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID, slotID *uuid.UUID) (*models.JobApplication, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appColumns+` FROM job_applications
		WHERE job_id = $1 AND worker_id = $2 AND status = 'PENDING'
		  AND ($3::uuid IS NULL OR applied_skill_slot_id = $3)
		LIMIT 1
	`, jobID, workerID, slotID)
	a, err := scanApplication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// RejectSiblings closes every other pending application once a single-worker
// job has its assignment.
func (r *Repository) RejectSiblings(ctx context.Context, tx pgx.Tx, jobID, acceptedID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE job_applications SET status = 'REJECTED', updated_at = now()
		WHERE job_id = $1 AND id <> $2 AND status = 'PENDING'
	`, jobID, acceptedID)
	return err
}

// --- pool-scoped reads ---

func (r *Repository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*models.JobApplication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appColumns+` FROM job_applications WHERE job_id = $1 ORDER BY created_at ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (r *Repository) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.JobApplication, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appColumns+` FROM job_applications WHERE worker_id = $1 ORDER BY created_at DESC
	`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.JobApplication, error) {
	var a models.JobApplication
	err := row.Scan(&a.ID, &a.JobID, &a.WorkerID, &a.AgencyID, &a.AppliedSkillSlotID, &a.ProposalMessage,
		&a.ProposedBudgetCentavos, &a.BudgetOption, &a.Status, &a.IsInvite, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectApplications(rows pgx.Rows) ([]*models.JobApplication, error) {
	var list []*models.JobApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

package team

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanapbuhay/backend/internal/models"
)

const slotColumns = `id, job_id, specialization_id, workers_needed, budget_allocated_centavos,
	skill_level_required, status, created_at, updated_at`

const assignmentColumns = `id, job_id, skill_slot_id, worker_id, slot_position, assignment_status,
	share_centavos, worker_marked_complete, worker_marked_complete_at, individual_rating,
	client_confirmed_arrival, client_confirmed_arrival_at, created_at, updated_at`

// Repository is the pgx-backed slot and assignment store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) InsertSlot(ctx context.Context, tx pgx.Tx, s *models.JobSkillSlot) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO job_skill_slots (id, job_id, specialization_id, workers_needed,
			budget_allocated_centavos, skill_level_required, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.JobID, s.SpecializationID, s.WorkersNeeded, s.BudgetAllocatedCentavos,
		s.SkillLevelRequired, s.Status)
	return err
}

// SlotForUpdate locks the slot row so concurrent accepts serialize on it.
func (r *Repository) SlotForUpdate(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (*models.JobSkillSlot, error) {
	row := tx.QueryRow(ctx, `SELECT `+slotColumns+` FROM job_skill_slots WHERE id = $1 FOR UPDATE`, slotID)
	return scanSlot(row)
}

func (r *Repository) SlotsByJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobSkillSlot, error) {
	rows, err := tx.Query(ctx, `SELECT `+slotColumns+` FROM job_skill_slots WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.JobSkillSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *Repository) UpdateSlotStatus(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, status string) error {
	_, err := tx.Exec(ctx, `UPDATE job_skill_slots SET status = $2, updated_at = now() WHERE id = $1`, slotID, status)
	return err
}

func (r *Repository) InsertAssignment(ctx context.Context, tx pgx.Tx, a *models.JobWorkerAssignment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO job_worker_assignments (id, job_id, skill_slot_id, worker_id, slot_position,
			assignment_status, share_centavos)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.JobID, a.SkillSlotID, a.WorkerID, a.SlotPosition, a.AssignmentStatus, a.ShareCentavos)
	return err
}

func (r *Repository) AssignmentsByJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobWorkerAssignment, error) {
	rows, err := tx.Query(ctx, `SELECT `+assignmentColumns+` FROM job_worker_assignments WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (r *Repository) AssignmentsBySlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) ([]*models.JobWorkerAssignment, error) {
	rows, err := tx.Query(ctx, `SELECT `+assignmentColumns+` FROM job_worker_assignments WHERE skill_slot_id = $1 ORDER BY slot_position ASC`, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (r *Repository) AssignmentByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobWorkerAssignment, error) {
	row := tx.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM job_worker_assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// AssignmentByJobWorker returns the worker's most recent assignment on the
// job, or nil when the worker was never assigned.
func (r *Repository) AssignmentByJobWorker(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID) (*models.JobWorkerAssignment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+assignmentColumns+` FROM job_worker_assignments
		WHERE job_id = $1 AND worker_id = $2
		ORDER BY created_at DESC LIMIT 1
	`, jobID, workerID)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *Repository) UpdateAssignment(ctx context.Context, tx pgx.Tx, a *models.JobWorkerAssignment) error {
	_, err := tx.Exec(ctx, `
		UPDATE job_worker_assignments
		SET assignment_status = $2, worker_marked_complete = $3, worker_marked_complete_at = $4,
			individual_rating = $5, client_confirmed_arrival = $6, client_confirmed_arrival_at = $7,
			updated_at = now()
		WHERE id = $1
	`, a.ID, a.AssignmentStatus, a.WorkerMarkedComplete, a.WorkerMarkedCompleteAt,
		a.IndividualRating, a.ClientConfirmedArrival, a.ClientConfirmedArrivalAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*models.JobSkillSlot, error) {
	var s models.JobSkillSlot
	err := row.Scan(&s.ID, &s.JobID, &s.SpecializationID, &s.WorkersNeeded, &s.BudgetAllocatedCentavos,
		&s.SkillLevelRequired, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanAssignment(row rowScanner) (*models.JobWorkerAssignment, error) {
	var a models.JobWorkerAssignment
	err := row.Scan(&a.ID, &a.JobID, &a.SkillSlotID, &a.WorkerID, &a.SlotPosition, &a.AssignmentStatus,
		&a.ShareCentavos, &a.WorkerMarkedComplete, &a.WorkerMarkedCompleteAt, &a.IndividualRating,
		&a.ClientConfirmedArrival, &a.ClientConfirmedArrivalAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAssignments(rows pgx.Rows) ([]*models.JobWorkerAssignment, error) {
	var list []*models.JobWorkerAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

package team

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/models"
)

var (
	ErrSlotFull        = errors.New("skill slot has no open positions")
	ErrSlotClosed      = errors.New("skill slot is closed")
	ErrAlreadyAssigned = errors.New("worker already assigned to this job")
	ErrNotAssigned     = errors.New("worker has no active assignment on this job")
)

// Store is the persistence surface for slots and assignments. Methods taking
// a pgx.Tx participate in the caller's transaction.
type Store interface {
	InsertSlot(ctx context.Context, tx pgx.Tx, s *models.JobSkillSlot) error
	SlotForUpdate(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (*models.JobSkillSlot, error)
	SlotsByJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobSkillSlot, error)
	UpdateSlotStatus(ctx context.Context, tx pgx.Tx, slotID uuid.UUID, status string) error

	InsertAssignment(ctx context.Context, tx pgx.Tx, a *models.JobWorkerAssignment) error
	AssignmentsByJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobWorkerAssignment, error)
	AssignmentsBySlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) ([]*models.JobWorkerAssignment, error)
	AssignmentByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobWorkerAssignment, error)
	AssignmentByJobWorker(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID) (*models.JobWorkerAssignment, error)
	UpdateAssignment(ctx context.Context, tx pgx.Tx, a *models.JobWorkerAssignment) error
}

// Service owns slot composition and per-worker assignment tracking for team
// jobs. Money never moves here; callers pair these operations with escrow
// calls inside the same transaction.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateSlots allocates the job budget across the given slots and persists
// them. Slots arrive with WorkersNeeded and SkillLevelRequired set (and
// BudgetAllocatedCentavos for manual allocation).
func (s *Service) CreateSlots(ctx context.Context, tx pgx.Tx, job *models.Job, slots []*models.JobSkillSlot) error {
	if err := Allocate(job.BudgetAllocationType, job.BudgetCentavos, slots); err != nil {
		return err
	}
	now := time.Now()
	for _, slot := range slots {
		slot.ID = uuid.New()
		slot.JobID = job.ID
		slot.Status = models.SlotStatusOpen
		slot.CreatedAt = now
		slot.UpdatedAt = now
		if err := s.store.InsertSlot(ctx, tx, slot); err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}
	return nil
}

// ClaimPosition fills the next open position of a slot for a worker. The slot
// row is locked first so two concurrent accepts cannot claim the same
// position. Returns the created assignment with its share of the slot budget.
func (s *Service) ClaimPosition(ctx context.Context, tx pgx.Tx, jobID, slotID, workerID uuid.UUID) (*models.JobWorkerAssignment, error) {
	slot, err := s.store.SlotForUpdate(ctx, tx, slotID)
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	if slot.Status == models.SlotStatusClosed {
		return nil, ErrSlotClosed
	}

	existing, err := s.store.AssignmentByJobWorker(ctx, tx, jobID, workerID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.AssignmentStatus != models.AssignmentRemoved && existing.AssignmentStatus != models.AssignmentWithdrawn {
		return nil, ErrAlreadyAssigned
	}

	siblings, err := s.store.AssignmentsBySlot(ctx, tx, slotID)
	if err != nil {
		return nil, err
	}
	position, filled := nextPosition(slot, siblings)
	if position == 0 {
		return nil, ErrSlotFull
	}

	now := time.Now()
	a := &models.JobWorkerAssignment{
		ID:               uuid.New(),
		JobID:            jobID,
		SkillSlotID:      slotID,
		WorkerID:         workerID,
		SlotPosition:     position,
		AssignmentStatus: models.AssignmentActive,
		ShareCentavos:    slot.PerWorkerShareCentavos(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertAssignment(ctx, tx, a); err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	status := models.SlotStatusPartiallyFilled
	if filled+1 >= slot.WorkersNeeded {
		status = models.SlotStatusFilled
	}
	if err := s.store.UpdateSlotStatus(ctx, tx, slotID, status); err != nil {
		return nil, err
	}
	return a, nil
}

// nextPosition returns the lowest free position (1..workersNeeded) and the
// current occupied count, or position 0 when the slot is full.
func nextPosition(slot *models.JobSkillSlot, siblings []*models.JobWorkerAssignment) (int, int) {
	taken := make(map[int]bool, slot.WorkersNeeded)
	for _, a := range siblings {
		if a.AssignmentStatus == models.AssignmentActive || a.AssignmentStatus == models.AssignmentCompleted {
			taken[a.SlotPosition] = true
		}
	}
	for p := 1; p <= slot.WorkersNeeded; p++ {
		if !taken[p] {
			return p, len(taken)
		}
	}
	return 0, len(taken)
}

// ConfirmArrival records the client's per-assignment arrival confirmation.
func (s *Service) ConfirmArrival(ctx context.Context, tx pgx.Tx, assignmentID uuid.UUID) (*models.JobWorkerAssignment, error) {
	a, err := s.store.AssignmentByID(ctx, tx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.AssignmentStatus != models.AssignmentActive {
		return nil, ErrNotAssigned
	}
	if a.ClientConfirmedArrival {
		return a, nil
	}
	now := time.Now()
	a.ClientConfirmedArrival = true
	a.ClientConfirmedArrivalAt = &now
	a.UpdatedAt = now
	if err := s.store.UpdateAssignment(ctx, tx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// MarkComplete records the worker's own completion mark. The job transitions
// only when every active assignment has marked complete; see AllComplete.
func (s *Service) MarkComplete(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID) (*models.JobWorkerAssignment, error) {
	a, err := s.store.AssignmentByJobWorker(ctx, tx, jobID, workerID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.AssignmentStatus != models.AssignmentActive {
		return nil, ErrNotAssigned
	}
	if a.WorkerMarkedComplete {
		return a, nil
	}
	now := time.Now()
	a.WorkerMarkedComplete = true
	a.WorkerMarkedCompleteAt = &now
	a.UpdatedAt = now
	if err := s.store.UpdateAssignment(ctx, tx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Withdraw marks the worker's assignment WITHDRAWN (worker-initiated) or
// REMOVED (client-initiated) and reopens the slot.
func (s *Service) Withdraw(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID, removedByClient bool) (*models.JobWorkerAssignment, error) {
	a, err := s.store.AssignmentByJobWorker(ctx, tx, jobID, workerID)
	if err != nil {
		return nil, err
	}
	if a == nil || a.AssignmentStatus != models.AssignmentActive {
		return nil, ErrNotAssigned
	}
	a.AssignmentStatus = models.AssignmentWithdrawn
	if removedByClient {
		a.AssignmentStatus = models.AssignmentRemoved
	}
	a.UpdatedAt = time.Now()
	if err := s.store.UpdateAssignment(ctx, tx, a); err != nil {
		return nil, err
	}
	// Slot regains an open position; with no one left on it at all it goes
	// back to OPEN.
	siblings, err := s.store.AssignmentsBySlot(ctx, tx, a.SkillSlotID)
	if err != nil {
		return nil, err
	}
	slotStatus := models.SlotStatusOpen
	for _, sib := range siblings {
		if sib.AssignmentStatus == models.AssignmentActive || sib.AssignmentStatus == models.AssignmentCompleted {
			slotStatus = models.SlotStatusPartiallyFilled
			break
		}
	}
	if err := s.store.UpdateSlotStatus(ctx, tx, a.SkillSlotID, slotStatus); err != nil {
		return nil, err
	}
	return a, nil
}

// Fill returns the job's fill percentage over all slots.
func (s *Service) Fill(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (int, error) {
	slots, err := s.store.SlotsByJob(ctx, tx, jobID)
	if err != nil {
		return 0, err
	}
	assignments, err := s.store.AssignmentsByJob(ctx, tx, jobID)
	if err != nil {
		return 0, err
	}
	return FillPercentage(slots, assignments), nil
}

// AllArrived reports whether every active assignment has a confirmed arrival.
// False when the job has no active assignments at all.
func (s *Service) AllArrived(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (bool, error) {
	assignments, err := s.store.AssignmentsByJob(ctx, tx, jobID)
	if err != nil {
		return false, err
	}
	var active int
	for _, a := range assignments {
		if a.AssignmentStatus != models.AssignmentActive {
			continue
		}
		active++
		if !a.ClientConfirmedArrival {
			return false, nil
		}
	}
	return active > 0, nil
}

// AllComplete reports whether every active assignment is worker-marked
// complete. Removed and withdrawn assignments never gate completion.
func (s *Service) AllComplete(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (bool, error) {
	assignments, err := s.store.AssignmentsByJob(ctx, tx, jobID)
	if err != nil {
		return false, err
	}
	var active int
	for _, a := range assignments {
		if a.AssignmentStatus != models.AssignmentActive {
			continue
		}
		active++
		if !a.WorkerMarkedComplete {
			return false, nil
		}
	}
	return active > 0, nil
}

// FinishAssignments flips every active assignment to COMPLETED and returns
// them, for the payout loop at client approval.
func (s *Service) FinishAssignments(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobWorkerAssignment, error) {
	assignments, err := s.store.AssignmentsByJob(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var finished []*models.JobWorkerAssignment
	for _, a := range assignments {
		if a.AssignmentStatus != models.AssignmentActive {
			continue
		}
		a.AssignmentStatus = models.AssignmentCompleted
		a.UpdatedAt = now
		if err := s.store.UpdateAssignment(ctx, tx, a); err != nil {
			return nil, err
		}
		finished = append(finished, a)
	}
	return finished, nil
}

// ReopenAssignments flips completed assignments back to ACTIVE with cleared
// completion marks, for admin-ordered rework after a backjob.
func (s *Service) ReopenAssignments(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) error {
	assignments, err := s.store.AssignmentsByJob(ctx, tx, jobID)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, a := range assignments {
		if a.AssignmentStatus != models.AssignmentCompleted {
			continue
		}
		a.AssignmentStatus = models.AssignmentActive
		a.WorkerMarkedComplete = false
		a.WorkerMarkedCompleteAt = nil
		a.UpdatedAt = now
		if err := s.store.UpdateAssignment(ctx, tx, a); err != nil {
			return err
		}
	}
	return nil
}

// ActiveAssignments returns the job's assignments still in play.
func (s *Service) ActiveAssignments(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobWorkerAssignment, error) {
	return s.assignmentsWithStatus(ctx, tx, jobID, models.AssignmentActive)
}

// CompletedAssignments returns the assignments that were paid out at client
// approval.
func (s *Service) CompletedAssignments(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.JobWorkerAssignment, error) {
	return s.assignmentsWithStatus(ctx, tx, jobID, models.AssignmentCompleted)
}

func (s *Service) assignmentsWithStatus(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, status string) ([]*models.JobWorkerAssignment, error) {
	assignments, err := s.store.AssignmentsByJob(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	var out []*models.JobWorkerAssignment
	for _, a := range assignments {
		if a.AssignmentStatus == status {
			out = append(out, a)
		}
	}
	return out, nil
}

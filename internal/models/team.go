package models

import (
	"time"

	"github.com/google/uuid"
)

// Skill slot statuses.
const (
	SlotStatusOpen            = "OPEN"
	SlotStatusPartiallyFilled = "PARTIALLY_FILLED"
	SlotStatusFilled          = "FILLED"
	SlotStatusClosed          = "CLOSED"
)

// Worker assignment statuses.
const (
	AssignmentActive    = "ACTIVE"
	AssignmentCompleted = "COMPLETED"
	AssignmentRemoved   = "REMOVED"
	AssignmentWithdrawn = "WITHDRAWN"
)

// JobSkillSlot is a team-job requirement line: one specialization, a count of
// workers needed, and the slice of the job budget allocated to the slot.
// After allocation the slot budgets sum exactly to the job budget.
type JobSkillSlot struct {
	ID                 uuid.UUID `json:"id"`
	JobID              uuid.UUID `json:"job_id"`
	SpecializationID   uuid.UUID `json:"specialization_id"`
	WorkersNeeded      int       `json:"workers_needed"`
	BudgetAllocatedCentavos int64 `json:"budget_allocated_centavos"`
	SkillLevelRequired string    `json:"skill_level_required"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// PerWorkerShareCentavos is a slot's equal split across its positions.
func (s *JobSkillSlot) PerWorkerShareCentavos() int64 {
	if s.WorkersNeeded <= 0 {
		return 0
	}
	return s.BudgetAllocatedCentavos / int64(s.WorkersNeeded)
}

// JobWorkerAssignment is a filled slot position. Unique on (job, worker) and
// on (slot, position).
type JobWorkerAssignment struct {
	ID                       uuid.UUID  `json:"id"`
	JobID                    uuid.UUID  `json:"job_id"`
	SkillSlotID              uuid.UUID  `json:"skill_slot_id"`
	WorkerID                 uuid.UUID  `json:"worker_id"`
	SlotPosition             int        `json:"slot_position"`
	AssignmentStatus         string     `json:"assignment_status"`
	ShareCentavos            int64      `json:"share_centavos"`
	WorkerMarkedComplete     bool       `json:"worker_marked_complete"`
	WorkerMarkedCompleteAt   *time.Time `json:"worker_marked_complete_at,omitempty"`
	IndividualRating         *int       `json:"individual_rating,omitempty"`
	ClientConfirmedArrival   bool       `json:"client_confirmed_arrival"`
	ClientConfirmedArrivalAt *time.Time `json:"client_confirmed_arrival_at,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Application statuses.
const (
	ApplicationPending   = "PENDING"
	ApplicationAccepted  = "ACCEPTED"
	ApplicationRejected  = "REJECTED"
	ApplicationWithdrawn = "WITHDRAWN"
)

// Budget options: accept the posted budget or propose a new figure.
const (
	BudgetOptionAccept    = "ACCEPT"
	BudgetOptionNegotiate = "NEGOTIATE"
)

// JobApplication is a worker's bid for a listing or a team slot. Direct
// invites are stored as applications with IsInvite set; only the invitee may
// accept or decline those.
type JobApplication struct {
	ID                     uuid.UUID  `json:"id"`
	JobID                  uuid.UUID  `json:"job_id"`
	WorkerID               uuid.UUID  `json:"worker_id"`
	AgencyID               *uuid.UUID `json:"agency_id,omitempty"`
	AppliedSkillSlotID     *uuid.UUID `json:"applied_skill_slot_id,omitempty"`
	ProposalMessage        string     `json:"proposal_message"`
	ProposedBudgetCentavos int64      `json:"proposed_budget_centavos"`
	BudgetOption           string     `json:"budget_option"`
	Status                 string     `json:"status"`
	IsInvite               bool       `json:"is_invite"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. Transitions happen only through the state machine in
// internal/jobs; direct writes elsewhere are forbidden.
const (
	JobStatusDraft                 = "DRAFT"
	JobStatusPendingPayment        = "PENDING_PAYMENT"
	JobStatusActive                = "ACTIVE"
	JobStatusInProgress            = "IN_PROGRESS"
	JobStatusPendingClientApproval = "PENDING_CLIENT_APPROVAL"
	JobStatusCompleted             = "COMPLETED"
	JobStatusDisputed              = "DISPUTED"
	JobStatusCancelled             = "CANCELLED"
)

// Payment models.
const (
	PaymentModelProject = "PROJECT"
	PaymentModelDaily   = "DAILY"
)

// Job types: LISTING jobs accept open applications, INVITE jobs target a
// specific worker or agency.
const (
	JobTypeListing = "LISTING"
	JobTypeInvite  = "INVITE"
)

// Team budget allocation policies.
const (
	AllocEqualPerSkill    = "EQUAL_PER_SKILL"
	AllocEqualPerWorker   = "EQUAL_PER_WORKER"
	AllocManualAllocation = "MANUAL_ALLOCATION"
	AllocSkillWeighted    = "SKILL_WEIGHTED"
)

// Payment hold reasons for the buffer scheduler.
const (
	HoldReasonNone           = "NONE"
	HoldReasonBufferPeriod   = "BUFFER_PERIOD"
	HoldReasonBackjobPending = "BACKJOB_PENDING"
	HoldReasonReleased       = "RELEASED"
)

// Materials statuses.
const (
	MaterialsNone            = "NONE"
	MaterialsPendingPurchase = "PENDING_PURCHASE"
	MaterialsBuying          = "BUYING"
	MaterialsPurchased       = "PURCHASED"
	MaterialsApproved        = "APPROVED"
)

type Job struct {
	ID               uuid.UUID `json:"id"`
	ClientID         uuid.UUID `json:"client_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	SpecializationID uuid.UUID `json:"specialization_id"`
	Location         string    `json:"location"`

	BudgetCentavos        int64  `json:"budget_centavos"`
	PaymentModel          string `json:"payment_model"`
	DailyRateCentavos     int64  `json:"daily_rate_centavos"`
	DurationDays          int    `json:"duration_days"`
	MaterialsCostCentavos int64  `json:"materials_cost_centavos"`

	// EscrowAmountCentavos is the nominal escrow for a fully staffed job;
	// EscrowChargedCentavos is what acceptance and top-ups actually reserved.
	// The two diverge on partially filled teams, and refunds must work off
	// the charged figure.
	EscrowAmountCentavos   int64      `json:"escrow_amount_centavos"`
	EscrowChargedCentavos  int64      `json:"escrow_charged_centavos"`
	EscrowConsumedCentavos int64      `json:"escrow_consumed_centavos"`
	EscrowPaid             bool       `json:"escrow_paid"`
	EscrowPaidAt           *time.Time `json:"escrow_paid_at,omitempty"`
	CommissionFeeCentavos  int64      `json:"commission_fee_centavos"`

	Status  string `json:"status"`
	JobType string `json:"job_type"`

	IsTeamJob            bool   `json:"is_team_job"`
	BudgetAllocationType string `json:"budget_allocation_type,omitempty"`
	TeamStartThreshold   int    `json:"team_start_threshold,omitempty"`

	AssignedWorkerID *uuid.UUID `json:"assigned_worker_id,omitempty"`
	AssignedAgencyID *uuid.UUID `json:"assigned_agency_id,omitempty"`
	InvitedWorkerID  *uuid.UUID `json:"invited_worker_id,omitempty"`
	InvitedAgencyID  *uuid.UUID `json:"invited_agency_id,omitempty"`

	PaymentReleaseDate      *time.Time `json:"payment_release_date,omitempty"`
	PaymentReleasedToWorker bool       `json:"payment_released_to_worker"`
	PaymentReleasedAt       *time.Time `json:"payment_released_at,omitempty"`
	PaymentHeldReason       string     `json:"payment_held_reason"`

	MaterialsStatus string `json:"materials_status"`

	ClientConfirmedWorkStartedAt *time.Time `json:"client_confirmed_work_started_at,omitempty"`
	WorkerMarkedCompleteAt       *time.Time `json:"worker_marked_complete_at,omitempty"`
	CompletedAt                  *time.Time `json:"completed_at,omitempty"`
	CancelledAt                  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt                    time.Time  `json:"created_at"`
	UpdatedAt                    time.Time  `json:"updated_at"`
}

// Terminal reports whether the job can no longer transition.
func (j *Job) Terminal() bool {
	return (j.Status == JobStatusCompleted && j.PaymentReleasedToWorker) || j.Status == JobStatusCancelled
}

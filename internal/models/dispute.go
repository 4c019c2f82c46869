package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute (backjob) statuses. At most one non-CLOSED dispute exists per job.
const (
	DisputeOpen        = "OPEN"
	DisputeUnderReview = "UNDER_REVIEW"
	DisputeClosed      = "CLOSED"
)

// Resolution outcomes recorded on close.
const (
	ResolutionFullRefund    = "FULL_REFUND"
	ResolutionPartialRefund = "PARTIAL_REFUND"
	ResolutionRework        = "REWORK"
	ResolutionRejected      = "REJECTED"
)

type JobDispute struct {
	ID                   uuid.UUID  `json:"id"`
	JobID                uuid.UUID  `json:"job_id"`
	OpenedBy             uuid.UUID  `json:"opened_by"`
	Reason               string     `json:"reason"`
	Description          string     `json:"description"`
	Status               string     `json:"status"`
	Resolution           string     `json:"resolution,omitempty"`
	RefundAmountCentavos int64      `json:"refund_amount_centavos,omitempty"`
	AdminApprovedAt      *time.Time `json:"admin_approved_at,omitempty"`
	AdminRejectedAt      *time.Time `json:"admin_rejected_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Active reports whether the dispute still blocks payment release.
func (d *JobDispute) Active() bool {
	return d.Status == DisputeOpen || d.Status == DisputeUnderReview
}

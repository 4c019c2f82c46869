package models

import (
	"time"

	"github.com/google/uuid"
)

// Daily attendance statuses.
const (
	AttendancePending  = "PENDING"
	AttendancePresent  = "PRESENT"
	AttendanceHalfDay  = "HALF_DAY"
	AttendanceAbsent   = "ABSENT"
	AttendanceDisputed = "DISPUTED"
)

// Mutual-approval request statuses (extensions and rate changes).
const (
	MutationPending  = "PENDING"
	MutationApproved = "APPROVED"
	MutationRejected = "REJECTED"
	MutationExpired  = "EXPIRED"
)

// DailyAttendance is one working day of a DAILY-model job. Unique on
// (job, worker, date). The day is final once both parties confirm (or the
// grace window passes); finalized days are promoted into pending earnings by
// the nightly sweep.
type DailyAttendance struct {
	ID                   uuid.UUID  `json:"id"`
	JobID                uuid.UUID  `json:"job_id"`
	WorkerID             uuid.UUID  `json:"worker_id"`
	AssignmentID         *uuid.UUID `json:"assignment_id,omitempty"`
	Date                 time.Time  `json:"date"`
	TimeIn               *time.Time `json:"time_in,omitempty"`
	TimeOut              *time.Time `json:"time_out,omitempty"`
	Status               string     `json:"status"`
	WorkerConfirmed      bool       `json:"worker_confirmed"`
	WorkerStatus         string     `json:"worker_status,omitempty"`
	ClientConfirmed      bool       `json:"client_confirmed"`
	ClientStatus         string     `json:"client_status,omitempty"`
	AmountEarnedCentavos int64      `json:"amount_earned_centavos"`
	PaymentProcessed     bool       `json:"payment_processed"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// EarningFactor returns the pay multiplier for a final attendance status,
// scaled by 100 (PRESENT=100, HALF_DAY=50, ABSENT=0).
func EarningFactor(status string) int64 {
	switch status {
	case AttendancePresent:
		return 100
	case AttendanceHalfDay:
		return 50
	default:
		return 0
	}
}

// DailyJobExtension adds days to a DAILY job once both parties approve.
// The additional escrow is charged at the moment of mutual approval.
type DailyJobExtension struct {
	ID                        uuid.UUID  `json:"id"`
	JobID                     uuid.UUID  `json:"job_id"`
	RequestedBy               uuid.UUID  `json:"requested_by"`
	AdditionalDays            int        `json:"additional_days"`
	AdditionalEscrowCentavos  int64      `json:"additional_escrow_centavos"`
	Reason                    string     `json:"reason"`
	ClientApproved            bool       `json:"client_approved"`
	WorkerApproved            bool       `json:"worker_approved"`
	Status                    string     `json:"status"`
	EffectiveAt               *time.Time `json:"effective_at,omitempty"`
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}

// DailyRateChange adjusts the daily rate once both parties approve. Increases
// charge a reserved top-up for the remaining days; decreases release the
// excess back to the client.
type DailyRateChange struct {
	ID                    uuid.UUID  `json:"id"`
	JobID                 uuid.UUID  `json:"job_id"`
	RequestedBy           uuid.UUID  `json:"requested_by"`
	NewDailyRateCentavos  int64      `json:"new_daily_rate_centavos"`
	EscrowDeltaCentavos   int64      `json:"escrow_delta_centavos"`
	RemainingDays         int        `json:"remaining_days"`
	ClientApproved        bool       `json:"client_approved"`
	WorkerApproved        bool       `json:"worker_approved"`
	Status                string     `json:"status"`
	EffectiveAt           *time.Time `json:"effective_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

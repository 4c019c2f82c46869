package escrow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reference numbers are unique per business event; re-posting one is an
// idempotent no-op in the ledger.

func ChargeRef(jobID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-ESCROW", jobID)
}

// SlotChargeRef identifies the escrow top-up for one team assignment.
func SlotChargeRef(jobID, assignmentID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-ESCROW-%s", jobID, assignmentID)
}

func RefundRef(jobID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-REFUND", jobID)
}

func PartialRefundRef(jobID, disputeID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-REFUND-%s", jobID, disputeID)
}

// DisputeFeeRef identifies the commission the platform gives back on an
// approved backjob.
func DisputeFeeRef(jobID, disputeID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-FEEBACK-%s", jobID, disputeID)
}

func ReleaseRef(jobID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-RELEASE", jobID)
}

// WorkerReleaseRef identifies one team member's share release.
func WorkerReleaseRef(jobID, workerID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-RELEASE-%s", jobID, workerID)
}

func FeeRef(jobID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-FEE", jobID)
}

// WorkerFeeRef identifies the commission withheld from one team member's share.
func WorkerFeeRef(jobID, workerID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-FEE-%s", jobID, workerID)
}

// MaterialsRef identifies the materials cost reimbursement.
func MaterialsRef(jobID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-MATERIALS", jobID)
}

// DayFeeRef identifies the commission withheld from one confirmed day.
func DayFeeRef(jobID, workerID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("JOB-%s-DAYFEE-%s-%s", jobID, workerID, day.Format("2006-01-02"))
}

// DayReleaseRef identifies one confirmed attendance day's earning.
func DayReleaseRef(jobID, workerID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("JOB-%s-DAY-%s-%s", jobID, workerID, day.Format("2006-01-02"))
}

// DayRefundRef identifies the refund of one day's escrow holdback after an
// admin ruling.
func DayRefundRef(jobID, workerID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("JOB-%s-DAYREFUND-%s-%s", jobID, workerID, day.Format("2006-01-02"))
}

// ExtensionChargeRef identifies the escrow top-up of an approved extension.
func ExtensionChargeRef(jobID, extensionID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-EXT-%s", jobID, extensionID)
}

// RateChangeRef identifies the escrow delta of an approved rate change.
func RateChangeRef(jobID, changeID uuid.UUID) string {
	return fmt.Sprintf("JOB-%s-RATE-%s", jobID, changeID)
}

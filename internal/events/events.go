package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types emitted to collaborators (chat, notifications, cache
// invalidation). Events are published only after the enclosing transaction
// commits; consumers fetch entity details themselves.
const (
	TypeApplicationAccepted = "application.accepted"
	TypeJobStarted          = "job.started"
	TypeJobCompleted        = "job.completed"
	TypePaymentReleased     = "payment.released"
	TypeDisputeOpened       = "dispute.opened"
	TypeDisputeResolved     = "dispute.resolved"
	TypeAttendanceConfirmed = "attendance.confirmed"
	TypeExtensionApproved   = "extension.approved"
)

// Event carries the affected entity ids and minimal context. Delivery
// retries dedupe on EventID.
type Event struct {
	EventID    uuid.UUID  `json:"event_id"`
	Type       string     `json:"type"`
	JobID      uuid.UUID  `json:"job_id"`
	ActorID    uuid.UUID  `json:"actor_id"`
	SubjectID  *uuid.UUID `json:"subject_id,omitempty"`
	Amount     int64      `json:"amount_centavos,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// New stamps a fresh event.
func New(eventType string, jobID, actorID uuid.UUID) Event {
	return Event{
		EventID:    uuid.New(),
		Type:       eventType,
		JobID:      jobID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

// WithSubject attaches a secondary entity id (assignment, dispute, worker).
func (e Event) WithSubject(id uuid.UUID) Event {
	e.SubjectID = &id
	return e
}

// WithAmount attaches a centavo amount.
func (e Event) WithAmount(amount int64) Event {
	e.Amount = amount
	return e
}

package disputes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/config"
	"github.com/hanapbuhay/backend/internal/db"
	"github.com/hanapbuhay/backend/internal/escrow"
	"github.com/hanapbuhay/backend/internal/events"
	"github.com/hanapbuhay/backend/internal/jobs"
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/models"
	"github.com/hanapbuhay/backend/internal/team"
)

var (
	ErrNotFound      = errors.New("dispute not found")
	ErrForbidden     = errors.New("actor may not act on this dispute")
	ErrInvalidState  = errors.New("dispute state does not allow this operation")
	ErrActiveDispute = errors.New("job already has an active dispute")
	ErrReleased      = errors.New("payment already released to worker")
	ErrBadRefund     = errors.New("refund amount out of range")
	ErrBadResolution = errors.New("unknown resolution")
)

// CooldownError is returned when a client reopens a backjob before the
// per-job cooldown from the last rejection has elapsed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("backjob cooldown active, %s remaining", e.Remaining.Round(time.Minute))
}

// Store is the persistence surface for dispute rows.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, d *models.JobDispute) error
	DisputeForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobDispute, error)
	Update(ctx context.Context, tx pgx.Tx, d *models.JobDispute) error
	ActiveByJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*models.JobDispute, error)
	LastRejectedAt(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*time.Time, error)
}

// Service runs the backjob flow: a client contests a completed job during the
// buffer window, an admin reviews, and the resolution either claws released
// funds back, sends the job to rework, or rearms the buffer.
type Service struct {
	store   Store
	jobs    jobs.Store
	wallets jobs.WalletDirectory
	ledger  *ledger.Service
	escrow  *escrow.Service
	team    *team.Service
	runner  db.Runner
	cfg     config.Platform
	bus     *events.Bus
	log     *slog.Logger
}

func NewService(store Store, jobStore jobs.Store, wallets jobs.WalletDirectory, led *ledger.Service,
	esc *escrow.Service, tm *team.Service, runner db.Runner, cfg config.Platform, bus *events.Bus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, jobs: jobStore, wallets: wallets, ledger: led,
		escrow: esc, team: tm, runner: runner, cfg: cfg, bus: bus, log: log}
}

func (s *Service) publish(rec *events.Recorder) {
	if s.bus != nil {
		s.bus.PublishAll(rec.Drain())
	}
}

// Open files a backjob on a completed job. Only the job's client may file,
// only while the payment is still held, and only after the cooldown from the
// last rejected dispute has passed. The job moves to DISPUTED and the sweep
// skips it until the dispute closes.
func (s *Service) Open(ctx context.Context, clientID, jobID uuid.UUID, reason, description string) (*models.JobDispute, error) {
	rec := &events.Recorder{}
	var d *models.JobDispute
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		j, err := s.jobs.JobForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if j.ClientID != clientID {
			return ErrForbidden
		}
		if j.Status != models.JobStatusCompleted {
			return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
		}
		if j.PaymentReleasedToWorker {
			return ErrReleased
		}
		active, err := s.store.ActiveByJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrActiveDispute
		}
		last, err := s.store.LastRejectedAt(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if last != nil {
			if until := last.Add(s.cfg.Cooldown()); time.Now().Before(until) {
				return &CooldownError{Remaining: time.Until(until)}
			}
		}
		now := time.Now()
		d = &models.JobDispute{
			ID:          uuid.New(),
			JobID:       jobID,
			OpenedBy:    clientID,
			Reason:      reason,
			Description: description,
			Status:      models.DisputeOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Insert(ctx, tx, d); err != nil {
			return err
		}
		if err := jobs.Transition(j, models.JobStatusDisputed); err != nil {
			return err
		}
		j.PaymentHeldReason = models.HoldReasonBackjobPending
		if err := s.jobs.Update(ctx, tx, j); err != nil {
			return err
		}
		rec.Record(events.New(events.TypeDisputeOpened, jobID, clientID).WithSubject(d.ID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(rec)
	return d, nil
}

// Review marks an open dispute as under admin review.
func (s *Service) Review(ctx context.Context, adminID, disputeID uuid.UUID) (*models.JobDispute, error) {
	var d *models.JobDispute
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		d, err = s.store.DisputeForUpdate(ctx, tx, disputeID)
		if err != nil {
			return err
		}
		if d.Status != models.DisputeOpen {
			return fmt.Errorf("%w: dispute is %s", ErrInvalidState, d.Status)
		}
		d.Status = models.DisputeUnderReview
		d.UpdatedAt = time.Now()
		return s.store.Update(ctx, tx, d)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("dispute under review", "dispute_id", disputeID, "admin_id", adminID)
	return d, nil
}

// ResolveInput carries the admin's decision. RefundCentavos applies only to
// PARTIAL_REFUND and names the net portion of the payout to return.
type ResolveInput struct {
	Resolution     string
	RefundCentavos int64
}

// Resolve closes a dispute. Approved refunds cancel the workers' pending
// earnings and credit the client net plus commission; REWORK sends the job
// back to IN_PROGRESS without moving money; REJECTED rearms the payment
// buffer and starts the cooldown.
func (s *Service) Resolve(ctx context.Context, adminID, disputeID uuid.UUID, in ResolveInput) (*models.JobDispute, error) {
	rec := &events.Recorder{}
	var d *models.JobDispute
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		d, err = s.store.DisputeForUpdate(ctx, tx, disputeID)
		if err != nil {
			return err
		}
		if !d.Active() {
			return fmt.Errorf("%w: dispute is %s", ErrInvalidState, d.Status)
		}
		j, err := s.jobs.JobForUpdate(ctx, tx, d.JobID)
		if err != nil {
			return err
		}
		now := time.Now()
		switch in.Resolution {
		case models.ResolutionFullRefund, models.ResolutionPartialRefund:
			refunded, err := s.refund(ctx, tx, j, d, in)
			if err != nil {
				return err
			}
			d.RefundAmountCentavos = refunded
			d.AdminApprovedAt = &now
			if err := jobs.Transition(j, models.JobStatusCompleted); err != nil {
				return err
			}
			if in.Resolution == models.ResolutionFullRefund {
				// Nothing left to pay out.
				j.PaymentHeldReason = models.HoldReasonNone
				j.PaymentReleaseDate = nil
			} else {
				j.PaymentHeldReason = models.HoldReasonBufferPeriod
			}
			rec.Record(events.New(events.TypeDisputeResolved, j.ID, adminID).WithSubject(d.ID).WithAmount(refunded))
		case models.ResolutionRework:
			d.AdminApprovedAt = &now
			if j.IsTeamJob {
				if err := s.team.ReopenAssignments(ctx, tx, j.ID); err != nil {
					return err
				}
			}
			if err := jobs.Transition(j, models.JobStatusInProgress); err != nil {
				return err
			}
			j.PaymentHeldReason = models.HoldReasonNone
			j.WorkerMarkedCompleteAt = nil
			rec.Record(events.New(events.TypeDisputeResolved, j.ID, adminID).WithSubject(d.ID))
		case models.ResolutionRejected:
			d.AdminRejectedAt = &now
			if err := jobs.Transition(j, models.JobStatusCompleted); err != nil {
				return err
			}
			j.PaymentHeldReason = models.HoldReasonBufferPeriod
			rec.Record(events.New(events.TypeDisputeResolved, j.ID, adminID).WithSubject(d.ID))
		default:
			return fmt.Errorf("%w: %s", ErrBadResolution, in.Resolution)
		}
		d.Status = models.DisputeClosed
		d.Resolution = in.Resolution
		d.UpdatedAt = now
		if err := s.store.Update(ctx, tx, d); err != nil {
			return err
		}
		return s.jobs.Update(ctx, tx, j)
	})
	if err != nil {
		return nil, err
	}
	s.publish(rec)
	return d, nil
}

// refund claws the approved portion back from the job's pending payouts.
func (s *Service) refund(ctx context.Context, tx pgx.Tx, j *models.Job, d *models.JobDispute, in ResolveInput) (int64, error) {
	pendings, err := s.pendingRows(ctx, tx, j)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, p := range pendings {
		total += p.AmountCentavos
	}
	net := total
	if in.Resolution == models.ResolutionPartialRefund {
		net = in.RefundCentavos
		if net <= 0 || net > total {
			return 0, fmt.Errorf("%w: %d of %d pending", ErrBadRefund, net, total)
		}
	}
	if net == 0 {
		return 0, fmt.Errorf("%w: no pending payout to refund", ErrBadRefund)
	}
	clientWallet, err := s.wallets.WalletByAccount(ctx, j.ClientID)
	if err != nil {
		return 0, err
	}
	return s.escrow.RefundReleased(ctx, tx, j.ID, d.ID, clientWallet.ID, net, pendings)
}

// pendingRows collects the held pending-earning rows across every payout
// recipient of the job.
func (s *Service) pendingRows(ctx context.Context, tx pgx.Tx, j *models.Job) ([]*models.Transaction, error) {
	var accounts []uuid.UUID
	switch {
	case j.IsTeamJob:
		assignments, err := s.team.CompletedAssignments(ctx, tx, j.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range assignments {
			accounts = append(accounts, a.WorkerID)
		}
	case j.AssignedAgencyID != nil:
		accounts = append(accounts, *j.AssignedAgencyID)
	case j.AssignedWorkerID != nil:
		accounts = append(accounts, *j.AssignedWorkerID)
	}
	var rows []*models.Transaction
	for _, account := range accounts {
		w, err := s.wallets.WalletByAccount(ctx, account)
		if err != nil {
			return nil, err
		}
		pending, err := s.ledger.PendingEarnings(ctx, tx, w.ID, j.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range pending {
			if p.Status == models.TxStatusPending {
				rows = append(rows, p)
			}
		}
	}
	return rows, nil
}

// ByJob returns the job's active dispute inside the caller's transaction, for
// the sweep guard.
func (s *Service) ByJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (*models.JobDispute, error) {
	return s.store.ActiveByJob(ctx, tx, jobID)
}

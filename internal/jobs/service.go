package jobs

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
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/models"
	"github.com/hanapbuhay/backend/internal/team"
)

// Store is the persistence surface for job rows. Mutations go through the
// transition methods below; nothing else writes job state.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, j *models.Job) error
	JobForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	Update(ctx context.Context, tx pgx.Tx, j *models.Job) error
}

// WalletDirectory resolves the wallet backing an account.
type WalletDirectory interface {
	WalletByAccount(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error)
}

// transitions is the legal edge set of the job state machine. DISPUTED can
// fall back to IN_PROGRESS when an admin orders rework.
var transitions = map[string]map[string]bool{
	models.JobStatusDraft:                 {models.JobStatusPendingPayment: true, models.JobStatusCancelled: true},
	models.JobStatusPendingPayment:        {models.JobStatusActive: true, models.JobStatusCancelled: true},
	models.JobStatusActive:                {models.JobStatusInProgress: true, models.JobStatusCancelled: true},
	models.JobStatusInProgress:            {models.JobStatusPendingClientApproval: true, models.JobStatusCancelled: true},
	models.JobStatusPendingClientApproval: {models.JobStatusCompleted: true, models.JobStatusCancelled: true},
	models.JobStatusCompleted:             {models.JobStatusDisputed: true},
	models.JobStatusDisputed:              {models.JobStatusCompleted: true, models.JobStatusInProgress: true},
}

// Transition moves the job to the target status after checking edge legality.
// Timestamps and side effects belong to the calling operation.
func Transition(j *models.Job, to string) error {
	if !transitions[j.Status][to] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, j.Status, to)
	}
	j.Status = to
	j.UpdatedAt = time.Now()
	return nil
}

// Service drives the job lifecycle. Every operation runs in one transaction:
// the job row is locked first, wallet moves ride along, and events buffered
// during the transaction publish only after commit.
type Service struct {
	store   Store
	runner  db.Runner
	wallets WalletDirectory
	ledger  *ledger.Service
	escrow  *escrow.Service
	team    *team.Service
	daily   DailySettler
	cfg     config.Platform
	bus     *events.Bus
	log     *slog.Logger
}

// DailySettler closes out a daily job's outstanding attendance inside the
// approval transaction: unconfirmed days finalize from the worker's claim,
// finalized days release their earnings, and the returned amount is the
// escrow kept reserved for days an admin still has to rule on.
type DailySettler interface {
	SettleOnApproval(ctx context.Context, tx pgx.Tx, j *models.Job, now time.Time) (int64, error)
}

// SetDailySettler wires the attendance service in after construction; the
// dependency runs the other way at compile time.
func (s *Service) SetDailySettler(d DailySettler) { s.daily = d }

func NewService(store Store, runner db.Runner, wallets WalletDirectory, led *ledger.Service,
	esc *escrow.Service, tm *team.Service, cfg config.Platform, bus *events.Bus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, runner: runner, wallets: wallets, ledger: led,
		escrow: esc, team: tm, cfg: cfg, bus: bus, log: log}
}

func (s *Service) publish(rec *events.Recorder) {
	if s.bus != nil {
		s.bus.PublishAll(rec.Drain())
	}
}

// CreateInput carries the client's job posting. Team jobs arrive with skill
// slots; invite jobs name the invited worker or agency.
type CreateInput struct {
	Title                 string
	Description           string
	SpecializationID      uuid.UUID
	Location              string
	BudgetCentavos        int64
	PaymentModel          string
	DailyRateCentavos     int64
	DurationDays          int
	MaterialsCostCentavos int64
	JobType               string
	InvitedWorkerID       *uuid.UUID
	InvitedAgencyID       *uuid.UUID
	IsTeamJob             bool
	BudgetAllocationType  string
	TeamStartThreshold    int
	Slots                 []*models.JobSkillSlot
}

// Create validates the posting and persists a DRAFT job (with its skill slots
// for team jobs). No money moves until an acceptance charges escrow.
func (s *Service) Create(ctx context.Context, clientID uuid.UUID, in CreateInput) (*models.Job, error) {
	if in.Title == "" || in.Description == "" {
		return nil, fmt.Errorf("%w: title and description required", ErrInvalidState)
	}
	if in.InvitedWorkerID != nil && *in.InvitedWorkerID == clientID {
		return nil, ErrSelfHire
	}
	if in.InvitedAgencyID != nil && *in.InvitedAgencyID == clientID {
		return nil, ErrSelfHire
	}

	workers := 1
	if in.IsTeamJob {
		workers = 0
		for _, slot := range in.Slots {
			workers += slot.WorkersNeeded
		}
	}

	budget := in.BudgetCentavos
	var escrowAmt, commission int64
	switch in.PaymentModel {
	case models.PaymentModelProject:
		if budget <= 0 {
			return nil, fmt.Errorf("%w: budget must be positive", ErrInvalidState)
		}
		escrowAmt, commission = s.escrow.ProjectCost(budget)
	case models.PaymentModelDaily:
		if in.DailyRateCentavos <= 0 || in.DurationDays <= 0 {
			return nil, fmt.Errorf("%w: daily jobs need a rate and duration", ErrInvalidState)
		}
		budget = in.DailyRateCentavos * int64(workers) * int64(in.DurationDays)
		escrowAmt, commission = s.escrow.DailyCost(in.DailyRateCentavos, workers, in.DurationDays)
	default:
		return nil, fmt.Errorf("%w: unknown payment model %q", ErrInvalidState, in.PaymentModel)
	}

	threshold := in.TeamStartThreshold
	if threshold <= 0 || threshold > 100 {
		threshold = s.cfg.TeamStartDefaultThreshold
	}
	materials := models.MaterialsNone
	if in.MaterialsCostCentavos > 0 {
		materials = models.MaterialsPendingPurchase
	}
	jobType := in.JobType
	if jobType == "" {
		jobType = models.JobTypeListing
	}

	now := time.Now()
	j := &models.Job{
		ID:                    uuid.New(),
		ClientID:              clientID,
		Title:                 in.Title,
		Description:           in.Description,
		SpecializationID:      in.SpecializationID,
		Location:              in.Location,
		BudgetCentavos:        budget,
		PaymentModel:          in.PaymentModel,
		DailyRateCentavos:     in.DailyRateCentavos,
		DurationDays:          in.DurationDays,
		MaterialsCostCentavos: in.MaterialsCostCentavos,
		EscrowAmountCentavos:  escrowAmt,
		CommissionFeeCentavos: commission,
		Status:                models.JobStatusDraft,
		JobType:               jobType,
		IsTeamJob:             in.IsTeamJob,
		BudgetAllocationType:  in.BudgetAllocationType,
		TeamStartThreshold:    threshold,
		InvitedWorkerID:       in.InvitedWorkerID,
		InvitedAgencyID:       in.InvitedAgencyID,
		PaymentHeldReason:     models.HoldReasonNone,
		MaterialsStatus:       materials,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.store.Insert(ctx, tx, j); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		if j.IsTeamJob {
			if err := s.team.CreateSlots(ctx, tx, j, in.Slots); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Publish opens the DRAFT job for applications.
func (s *Service) Publish(ctx context.Context, clientID, jobID uuid.UUID) (*models.Job, error) {
	var j *models.Job
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		j, err = s.ownedJob(ctx, tx, clientID, jobID)
		if err != nil {
			return err
		}
		if err := Transition(j, models.JobStatusPendingPayment); err != nil {
			return err
		}
		return s.store.Update(ctx, tx, j)
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// ConfirmArrival records the client's confirmation that one team worker has
// shown up on site. Late joiners on a partially started job are confirmed the
// same way.
func (s *Service) ConfirmArrival(ctx context.Context, clientID, jobID, assignmentID uuid.UUID) error {
	return s.runner.InTx(ctx, func(tx pgx.Tx) error {
		j, err := s.ownedJob(ctx, tx, clientID, jobID)
		if err != nil {
			return err
		}
		if j.Status != models.JobStatusActive && j.Status != models.JobStatusInProgress {
			return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
		}
		a, err := s.team.ConfirmArrival(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if a.JobID != jobID {
			return ErrNotFound
		}
		return nil
	})
}

// Start moves an ACTIVE job to IN_PROGRESS. Team jobs require the fill
// threshold and every active worker's confirmed arrival.
func (s *Service) Start(ctx context.Context, clientID, jobID uuid.UUID) (*models.Job, error) {
	rec := &events.Recorder{}
	var j *models.Job
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		j, err = s.ownedJob(ctx, tx, clientID, jobID)
		if err != nil {
			return err
		}
		if j.Status != models.JobStatusActive {
			return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
		}
		if j.IsTeamJob {
			fill, err := s.team.Fill(ctx, tx, jobID)
			if err != nil {
				return err
			}
			if fill < j.TeamStartThreshold {
				return fmt.Errorf("%w: filled %d%%, threshold %d%%", ErrNotReady, fill, j.TeamStartThreshold)
			}
			arrived, err := s.team.AllArrived(ctx, tx, jobID)
			if err != nil {
				return err
			}
			if !arrived {
				return fmt.Errorf("%w: arrivals not confirmed", ErrNotReady)
			}
		} else if j.AssignedWorkerID == nil && j.AssignedAgencyID == nil {
			return fmt.Errorf("%w: no assignment", ErrNotReady)
		}
		if err := Transition(j, models.JobStatusInProgress); err != nil {
			return err
		}
		now := time.Now()
		j.ClientConfirmedWorkStartedAt = &now
		if err := s.store.Update(ctx, tx, j); err != nil {
			return err
		}
		rec.Record(events.New(events.TypeJobStarted, j.ID, clientID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(rec)
	return j, nil
}

// MarkWorkerComplete records the worker's completion claim. Single-worker
// jobs transition immediately; team jobs wait until every active assignment
// has marked complete.
func (s *Service) MarkWorkerComplete(ctx context.Context, workerID, jobID uuid.UUID) (*models.Job, error) {
	var j *models.Job
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		j, err = s.store.JobForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if j.Status != models.JobStatusInProgress {
			return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
		}
		allDone := true
		if j.IsTeamJob {
			if _, err := s.team.MarkComplete(ctx, tx, jobID, workerID); err != nil {
				return err
			}
			allDone, err = s.team.AllComplete(ctx, tx, jobID)
			if err != nil {
				return err
			}
		} else if !assignedTo(j, workerID) {
			return ErrForbidden
		}
		if !allDone {
			return nil
		}
		if err := Transition(j, models.JobStatusPendingClientApproval); err != nil {
			return err
		}
		now := time.Now()
		j.WorkerMarkedCompleteAt = &now
		return s.store.Update(ctx, tx, j)
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// ApproveCompletion is the client's sign-off: escrow flows out to the worker
// side as pending earnings with a release date, the commission lands on the
// platform wallet, and any unconsumed remainder returns to the client.
func (s *Service) ApproveCompletion(ctx context.Context, clientID, jobID uuid.UUID) (*models.Job, error) {
	rec := &events.Recorder{}
	var j *models.Job
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		j, err = s.ownedJob(ctx, tx, clientID, jobID)
		if err != nil {
			return err
		}
		if j.Status != models.JobStatusPendingClientApproval {
			return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
		}
		clientWallet, err := s.wallets.WalletByAccount(ctx, j.ClientID)
		if err != nil {
			return err
		}
		now := time.Now()
		releaseDate := now.Add(s.cfg.BufferWindow())

		var held int64
		switch {
		case j.EscrowChargedCentavos > 0 && j.EscrowConsumedCentavos >= j.EscrowChargedCentavos:
			// Re-approval after rework: the escrow already flowed out, only
			// the buffer re-arms.
		case j.IsTeamJob:
			if err := s.releaseTeam(ctx, tx, j, clientWallet.ID, releaseDate, rec); err != nil {
				return err
			}
		case j.PaymentModel == models.PaymentModelDaily:
			// Daily earnings flow per confirmed day, but approval can land
			// before the nightly promotion catches up. Settle the backlog
			// here so the refund below is the true remainder; disputed days
			// keep their escrow reserved until the admin rules.
			if s.daily != nil {
				held, err = s.daily.SettleOnApproval(ctx, tx, j, now)
				if err != nil {
					return err
				}
			}
		default:
			recipient := j.AssignedWorkerID
			if recipient == nil {
				recipient = j.AssignedAgencyID
			}
			if recipient == nil {
				return fmt.Errorf("%w: no assignment", ErrInvalidState)
			}
			workerWallet, err := s.wallets.WalletByAccount(ctx, *recipient)
			if err != nil {
				return err
			}
			pending, err := s.escrow.Release(ctx, tx, escrow.Release{
				JobID:          j.ID,
				ClientWalletID: clientWallet.ID,
				WorkerWalletID: workerWallet.ID,
				GrossCentavos:  j.EscrowChargedCentavos,
				FeeCentavos:    j.CommissionFeeCentavos,
				ReleaseDate:    releaseDate,
				PendingRef:     escrow.ReleaseRef(j.ID),
				FeeRef:         escrow.FeeRef(j.ID),
			})
			if err != nil {
				return err
			}
			j.EscrowConsumedCentavos = j.EscrowChargedCentavos
			rec.Record(events.New(events.TypeJobCompleted, j.ID, clientID).
				WithSubject(*recipient).WithAmount(pending.AmountCentavos))
		}

		// Refund what was actually reserved and never spent. The nominal
		// escrow overstates this on partially filled teams, so the charged
		// figure is the base.
		if remaining := j.EscrowChargedCentavos - j.EscrowConsumedCentavos - held; remaining > 0 {
			if err := s.escrow.RefundPartial(ctx, tx, j.ID, clientWallet.ID, remaining, escrow.RefundRef(j.ID)); err != nil {
				return err
			}
			j.EscrowConsumedCentavos += remaining
		}

		if err := Transition(j, models.JobStatusCompleted); err != nil {
			return err
		}
		j.CompletedAt = &now
		j.PaymentReleaseDate = &releaseDate
		j.PaymentHeldReason = models.HoldReasonBufferPeriod
		return s.store.Update(ctx, tx, j)
	})
	if err != nil {
		return nil, err
	}
	s.publish(rec)
	return j, nil
}

// releaseTeam pays each finished assignment its share; commission is withheld
// per share so removed assignments never generate a fee.
func (s *Service) releaseTeam(ctx context.Context, tx pgx.Tx, j *models.Job, clientWalletID uuid.UUID, releaseDate time.Time, rec *events.Recorder) error {
	finished, err := s.team.FinishAssignments(ctx, tx, j.ID)
	if err != nil {
		return err
	}
	if len(finished) == 0 {
		return fmt.Errorf("%w: no active assignments", ErrInvalidState)
	}
	for _, a := range finished {
		fee := s.cfg.CommissionFor(a.ShareCentavos)
		workerWallet, err := s.wallets.WalletByAccount(ctx, a.WorkerID)
		if err != nil {
			return err
		}
		pending, err := s.escrow.Release(ctx, tx, escrow.Release{
			JobID:          j.ID,
			ClientWalletID: clientWalletID,
			WorkerWalletID: workerWallet.ID,
			GrossCentavos:  a.ShareCentavos + fee,
			FeeCentavos:    fee,
			ReleaseDate:    releaseDate,
			PendingRef:     escrow.WorkerReleaseRef(j.ID, a.WorkerID),
			FeeRef:         escrow.WorkerFeeRef(j.ID, a.WorkerID),
		})
		if err != nil {
			return err
		}
		j.EscrowConsumedCentavos += a.ShareCentavos + fee
		rec.Record(events.New(events.TypeJobCompleted, j.ID, j.ClientID).
			WithSubject(a.WorkerID).WithAmount(pending.AmountCentavos))
	}
	return nil
}

// Cancel aborts a non-terminal job. Before assignment the cancel is free;
// after assignment but before work starts the platform keeps the commission;
// once work is in progress only an admin can cancel, with a full refund of
// whatever escrow remains.
func (s *Service) Cancel(ctx context.Context, actorID, jobID uuid.UUID, admin bool) (*models.Job, error) {
	var j *models.Job
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		j, err = s.store.JobForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if !admin && j.ClientID != actorID {
			return ErrForbidden
		}
		switch j.Status {
		case models.JobStatusDraft, models.JobStatusPendingPayment:
			// No escrow yet.
		case models.JobStatusActive:
			clientWallet, err := s.wallets.WalletByAccount(ctx, j.ClientID)
			if err != nil {
				return err
			}
			// Commission scales with what was actually reserved: a team
			// cancelled at 2/3 filled keeps 2/3 of the fee.
			fee := j.CommissionFeeCentavos
			if j.EscrowAmountCentavos > 0 {
				fee = j.CommissionFeeCentavos * j.EscrowChargedCentavos / j.EscrowAmountCentavos
			}
			if err := s.escrow.RefundMinusCommission(ctx, tx, j.ID, clientWallet.ID,
				j.EscrowChargedCentavos, fee); err != nil {
				return err
			}
		case models.JobStatusInProgress, models.JobStatusPendingClientApproval:
			if !admin {
				return fmt.Errorf("%w: in-progress cancellation requires admin", ErrForbidden)
			}
			clientWallet, err := s.wallets.WalletByAccount(ctx, j.ClientID)
			if err != nil {
				return err
			}
			remaining := j.EscrowChargedCentavos - j.EscrowConsumedCentavos
			if remaining > 0 {
				if err := s.escrow.RefundFull(ctx, tx, j.ID, clientWallet.ID, remaining); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
		}
		if err := Transition(j, models.JobStatusCancelled); err != nil {
			return err
		}
		now := time.Now()
		j.CancelledAt = &now
		return s.store.Update(ctx, tx, j)
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// materialsNext maps each materials status to its legal successor and the
// party that triggers it.
var materialsNext = map[string]struct {
	next     string
	byClient bool
}{
	models.MaterialsPendingPurchase: {models.MaterialsBuying, false},
	models.MaterialsBuying:          {models.MaterialsPurchased, false},
	models.MaterialsPurchased:       {models.MaterialsApproved, true},
}

// AdvanceMaterials walks the materials flow. The worker reports buying and
// purchased; the client's approval reimburses the materials cost from the
// client balance to the worker.
func (s *Service) AdvanceMaterials(ctx context.Context, actorID, jobID uuid.UUID) (*models.Job, error) {
	var j *models.Job
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		j, err = s.store.JobForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if j.Status != models.JobStatusInProgress && j.Status != models.JobStatusPendingClientApproval {
			return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
		}
		step, ok := materialsNext[j.MaterialsStatus]
		if !ok {
			return fmt.Errorf("%w: materials are %s", ErrInvalidState, j.MaterialsStatus)
		}
		if step.byClient {
			if j.ClientID != actorID {
				return ErrForbidden
			}
		} else if ok, err := s.isWorkerOnJob(ctx, tx, j, actorID); err != nil {
			return err
		} else if !ok {
			return ErrForbidden
		}
		j.MaterialsStatus = step.next
		j.UpdatedAt = time.Now()

		if step.next == models.MaterialsApproved && j.MaterialsCostCentavos > 0 {
			if err := s.reimburseMaterials(ctx, tx, j, actorID); err != nil {
				return err
			}
		}
		return s.store.Update(ctx, tx, j)
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Service) reimburseMaterials(ctx context.Context, tx pgx.Tx, j *models.Job, clientID uuid.UUID) error {
	recipient := j.AssignedWorkerID
	if recipient == nil {
		recipient = j.AssignedAgencyID
	}
	if recipient == nil {
		return fmt.Errorf("%w: no assignment to reimburse", ErrInvalidState)
	}
	clientWallet, err := s.wallets.WalletByAccount(ctx, clientID)
	if err != nil {
		return err
	}
	workerWallet, err := s.wallets.WalletByAccount(ctx, *recipient)
	if err != nil {
		return err
	}
	if err := s.ledger.LockWallets(ctx, tx, clientWallet.ID, workerWallet.ID); err != nil {
		return err
	}
	ref := escrow.MaterialsRef(j.ID)
	if _, err := s.ledger.Debit(ctx, tx, clientWallet.ID, j.MaterialsCostCentavos, models.TxKindPayment, ref+"-PAY", &j.ID); err != nil {
		return err
	}
	_, err = s.ledger.Credit(ctx, tx, workerWallet.ID, j.MaterialsCostCentavos, models.TxKindMaterialsReimbursement, ref, &j.ID)
	return err
}

func (s *Service) isWorkerOnJob(ctx context.Context, tx pgx.Tx, j *models.Job, workerID uuid.UUID) (bool, error) {
	if assignedTo(j, workerID) {
		return true, nil
	}
	if !j.IsTeamJob {
		return false, nil
	}
	active, err := s.team.ActiveAssignments(ctx, tx, j.ID)
	if err != nil {
		return false, err
	}
	for _, a := range active {
		if a.WorkerID == workerID {
			return true, nil
		}
	}
	return false, nil
}

func assignedTo(j *models.Job, workerID uuid.UUID) bool {
	return (j.AssignedWorkerID != nil && *j.AssignedWorkerID == workerID) ||
		(j.AssignedAgencyID != nil && *j.AssignedAgencyID == workerID)
}

func (s *Service) ownedJob(ctx context.Context, tx pgx.Tx, clientID, jobID uuid.UUID) (*models.Job, error) {
	j, err := s.store.JobForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}
	if j.ClientID != clientID {
		return nil, ErrForbidden
	}
	return j, nil
}

// IsNotFound reports whether the error means the job row was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

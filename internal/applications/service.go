package applications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/db"
	"github.com/hanapbuhay/backend/internal/escrow"
	"github.com/hanapbuhay/backend/internal/events"
	"github.com/hanapbuhay/backend/internal/jobs"
	"github.com/hanapbuhay/backend/internal/models"
	"github.com/hanapbuhay/backend/internal/team"
)

var (
	ErrNotFound     = errors.New("application not found")
	ErrDuplicate    = errors.New("a pending application already exists")
	ErrNotOpen      = errors.New("job is not accepting workers")
	ErrWrongActor   = errors.New("only the addressed party may act on this application")
	ErrSlotRequired = errors.New("team jobs require a skill slot")
)

// Store is the persistence surface for applications.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, a *models.JobApplication) error
	ApplicationForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.JobApplication, error)
	Update(ctx context.Context, tx pgx.Tx, a *models.JobApplication) error
	PendingByJobWorker(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID, slotID *uuid.UUID) (*models.JobApplication, error)
	RejectSiblings(ctx context.Context, tx pgx.Tx, jobID, acceptedID uuid.UUID) error
}

// Service handles bids, invites, and the acceptance transaction that charges
// escrow and attaches workers to jobs.
type Service struct {
	store   Store
	jobs    jobs.Store
	wallets jobs.WalletDirectory
	escrow  *escrow.Service
	team    *team.Service
	runner  db.Runner
	bus     *events.Bus
	log     *slog.Logger
}

func NewService(store Store, jobStore jobs.Store, wallets jobs.WalletDirectory,
	esc *escrow.Service, tm *team.Service, runner db.Runner, bus *events.Bus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, jobs: jobStore, wallets: wallets,
		escrow: esc, team: tm, runner: runner, bus: bus, log: log}
}

// ApplyInput is a worker's bid.
type ApplyInput struct {
	SkillSlotID            *uuid.UUID
	AgencyID               *uuid.UUID
	ProposalMessage        string
	ProposedBudgetCentavos int64
	BudgetOption           string
}

// Apply submits a worker's application for a listing. Team jobs take exactly
// one skill slot per application.
func (s *Service) Apply(ctx context.Context, workerID, jobID uuid.UUID, in ApplyInput) (*models.JobApplication, error) {
	var app *models.JobApplication
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		j, err := s.jobs.JobForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if !acceptsApplications(j) {
			return ErrNotOpen
		}
		if j.ClientID == workerID {
			return jobs.ErrSelfHire
		}
		if j.JobType == models.JobTypeInvite {
			return fmt.Errorf("%w: invite-only job", ErrNotOpen)
		}
		if j.IsTeamJob && in.SkillSlotID == nil {
			return ErrSlotRequired
		}
		if !j.IsTeamJob {
			in.SkillSlotID = nil
		}
		existing, err := s.store.PendingByJobWorker(ctx, tx, jobID, workerID, in.SkillSlotID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicate
		}
		budgetOption := in.BudgetOption
		if budgetOption == "" {
			budgetOption = models.BudgetOptionAccept
		}
		now := time.Now()
		app = &models.JobApplication{
			ID:                     uuid.New(),
			JobID:                  jobID,
			WorkerID:               workerID,
			AgencyID:               in.AgencyID,
			AppliedSkillSlotID:     in.SkillSlotID,
			ProposalMessage:        in.ProposalMessage,
			ProposedBudgetCentavos: in.ProposedBudgetCentavos,
			BudgetOption:           budgetOption,
			Status:                 models.ApplicationPending,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		return s.store.Insert(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Invite creates the pseudo-application for a direct worker or agency invite.
// Only the invitee may accept or decline it.
func (s *Service) Invite(ctx context.Context, clientID, jobID, inviteeID uuid.UUID, agency bool) (*models.JobApplication, error) {
	var app *models.JobApplication
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		j, err := s.jobs.JobForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if j.ClientID != clientID {
			return jobs.ErrForbidden
		}
		if !acceptsApplications(j) {
			return ErrNotOpen
		}
		if inviteeID == clientID {
			return jobs.ErrSelfHire
		}
		existing, err := s.store.PendingByJobWorker(ctx, tx, jobID, inviteeID, nil)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicate
		}
		now := time.Now()
		app = &models.JobApplication{
			ID:           uuid.New(),
			JobID:        jobID,
			WorkerID:     inviteeID,
			BudgetOption: models.BudgetOptionAccept,
			Status:       models.ApplicationPending,
			IsInvite:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if agency {
			app.AgencyID = &inviteeID
		}
		return s.store.Insert(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Accept runs the acceptance transaction: mark the application accepted,
// attach the worker (assignment or direct), charge escrow, and auto-reject
// sibling bids on single-worker jobs. Listing applications are accepted by
// the client; invites by the invitee. Everything commits or nothing does.
func (s *Service) Accept(ctx context.Context, actorID, applicationID uuid.UUID) (*models.JobApplication, error) {
	rec := &events.Recorder{}
	var app *models.JobApplication
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		app, err = s.store.ApplicationForUpdate(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationPending {
			return fmt.Errorf("%w: application is %s", jobs.ErrInvalidState, app.Status)
		}
		j, err := s.jobs.JobForUpdate(ctx, tx, app.JobID)
		if err != nil {
			return err
		}
		if app.IsInvite {
			if app.WorkerID != actorID {
				return ErrWrongActor
			}
		} else if j.ClientID != actorID {
			return ErrWrongActor
		}
		if !acceptsApplications(j) {
			return ErrNotOpen
		}
		clientWallet, err := s.wallets.WalletByAccount(ctx, j.ClientID)
		if err != nil {
			return err
		}

		if j.IsTeamJob {
			if err := s.acceptTeam(ctx, tx, j, app, clientWallet.ID); err != nil {
				return err
			}
		} else {
			if err := s.acceptSingle(ctx, tx, j, app, clientWallet.ID); err != nil {
				return err
			}
		}

		now := time.Now()
		app.Status = models.ApplicationAccepted
		app.UpdatedAt = now
		if err := s.store.Update(ctx, tx, app); err != nil {
			return err
		}
		if !j.EscrowPaid {
			j.EscrowPaid = true
			j.EscrowPaidAt = &now
		}
		if j.Status == models.JobStatusPendingPayment {
			if err := jobs.Transition(j, models.JobStatusActive); err != nil {
				return err
			}
		}
		if err := s.jobs.Update(ctx, tx, j); err != nil {
			return err
		}
		rec.Record(events.New(events.TypeApplicationAccepted, j.ID, actorID).WithSubject(app.WorkerID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.bus != nil {
		s.bus.PublishAll(rec.Drain())
	}
	return app, nil
}

// acceptSingle charges the full job escrow and attaches the worker or agency.
func (s *Service) acceptSingle(ctx context.Context, tx pgx.Tx, j *models.Job, app *models.JobApplication, clientWalletID uuid.UUID) error {
	if j.AssignedWorkerID != nil || j.AssignedAgencyID != nil {
		return fmt.Errorf("%w: already assigned", jobs.ErrInvalidState)
	}
	if app.BudgetOption == models.BudgetOptionNegotiate && app.ProposedBudgetCentavos > 0 {
		j.BudgetCentavos = app.ProposedBudgetCentavos
		j.EscrowAmountCentavos, j.CommissionFeeCentavos = s.escrow.ProjectCost(app.ProposedBudgetCentavos)
	}
	if err := s.escrow.Charge(ctx, tx, j.ID, clientWalletID, j.EscrowAmountCentavos, escrow.ChargeRef(j.ID)); err != nil {
		return err
	}
	j.EscrowChargedCentavos = j.EscrowAmountCentavos
	if app.AgencyID != nil {
		j.AssignedAgencyID = app.AgencyID
	} else {
		j.AssignedWorkerID = &app.WorkerID
	}
	return s.store.RejectSiblings(ctx, tx, j.ID, app.ID)
}

// acceptTeam claims the next slot position and charges that share's escrow
// (share plus its commission slice). Late joiners on a started job are
// charged at their own acceptance.
func (s *Service) acceptTeam(ctx context.Context, tx pgx.Tx, j *models.Job, app *models.JobApplication, clientWalletID uuid.UUID) error {
	if app.AppliedSkillSlotID == nil {
		return ErrSlotRequired
	}
	a, err := s.team.ClaimPosition(ctx, tx, j.ID, *app.AppliedSkillSlotID, app.WorkerID)
	if err != nil {
		return err
	}
	fee := a.ShareCentavos * j.CommissionFeeCentavos / j.BudgetCentavos
	if err := s.escrow.Charge(ctx, tx, j.ID, clientWalletID, a.ShareCentavos+fee, escrow.SlotChargeRef(j.ID, a.ID)); err != nil {
		return err
	}
	j.EscrowChargedCentavos += a.ShareCentavos + fee
	return nil
}

// Reject declines a pending application.
func (s *Service) Reject(ctx context.Context, actorID, applicationID uuid.UUID) (*models.JobApplication, error) {
	return s.close(ctx, actorID, applicationID, models.ApplicationRejected)
}

// Withdraw retracts the worker's own pending application.
func (s *Service) Withdraw(ctx context.Context, workerID, applicationID uuid.UUID) (*models.JobApplication, error) {
	var app *models.JobApplication
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		app, err = s.store.ApplicationForUpdate(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if app.WorkerID != workerID {
			return ErrWrongActor
		}
		if app.Status != models.ApplicationPending {
			return fmt.Errorf("%w: application is %s", jobs.ErrInvalidState, app.Status)
		}
		app.Status = models.ApplicationWithdrawn
		app.UpdatedAt = time.Now()
		return s.store.Update(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// close rejects (client) or declines (invitee) a pending application. No
// money has moved for pending applications, so balances are untouched.
func (s *Service) close(ctx context.Context, actorID, applicationID uuid.UUID, status string) (*models.JobApplication, error) {
	var app *models.JobApplication
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		app, err = s.store.ApplicationForUpdate(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != models.ApplicationPending {
			return fmt.Errorf("%w: application is %s", jobs.ErrInvalidState, app.Status)
		}
		j, err := s.jobs.JobForUpdate(ctx, tx, app.JobID)
		if err != nil {
			return err
		}
		allowed := j.ClientID == actorID || (app.IsInvite && app.WorkerID == actorID)
		if !allowed {
			return ErrWrongActor
		}
		app.Status = status
		app.UpdatedAt = time.Now()
		return s.store.Update(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// acceptsApplications reports whether the job can still take workers:
// published and unstarted, or a team job still filling open slots.
func acceptsApplications(j *models.Job) bool {
	switch j.Status {
	case models.JobStatusPendingPayment, models.JobStatusActive:
		return true
	case models.JobStatusInProgress:
		return j.IsTeamJob
	default:
		return false
	}
}

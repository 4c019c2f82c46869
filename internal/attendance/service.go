package attendance

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
	"github.com/hanapbuhay/backend/internal/models"
	"github.com/hanapbuhay/backend/internal/team"
)

var (
	ErrNotFound        = errors.New("attendance record not found")
	ErrForbidden       = errors.New("actor may not act on this job")
	ErrInvalidState    = errors.New("job state does not allow this operation")
	ErrNotDaily        = errors.New("job is not on the daily payment model")
	ErrBadStatus       = errors.New("invalid attendance status")
	ErrOutsideSchedule = errors.New("date is outside the job's working days")
	ErrDayFinal        = errors.New("attendance for this day is already final")
	ErrWorkerRequired  = errors.New("worker must be named on team jobs")
	ErrBadMutation     = errors.New("invalid extension or rate-change request")
)

// Store is the persistence surface for attendance days and the two
// mutual-approval request tables.
type Store interface {
	InsertDay(ctx context.Context, tx pgx.Tx, d *models.DailyAttendance) error
	DayForUpdate(ctx context.Context, tx pgx.Tx, jobID, workerID uuid.UUID, date time.Time) (*models.DailyAttendance, error)
	UpdateDay(ctx context.Context, tx pgx.Tx, d *models.DailyAttendance) error
	DaysByJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) ([]*models.DailyAttendance, error)
	DayCount(ctx context.Context, tx pgx.Tx, jobID uuid.UUID) (int, error)
	LapsedPendingDays(ctx context.Context, tx pgx.Tx, cutoff time.Time) ([]*models.DailyAttendance, error)
	UnprocessedDays(ctx context.Context, tx pgx.Tx, limit int) ([]*models.DailyAttendance, error)

	InsertExtension(ctx context.Context, tx pgx.Tx, e *models.DailyJobExtension) error
	ExtensionForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.DailyJobExtension, error)
	UpdateExtension(ctx context.Context, tx pgx.Tx, e *models.DailyJobExtension) error

	InsertRateChange(ctx context.Context, tx pgx.Tx, rc *models.DailyRateChange) error
	RateChangeForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.DailyRateChange, error)
	UpdateRateChange(ctx context.Context, tx pgx.Tx, rc *models.DailyRateChange) error
}

// Service owns the DAILY-model workflows: per-day dual attendance
// confirmation with a grace window, nightly promotion of confirmed days into
// pending earnings, and the two mutual-approval mutations (extension, rate
// change) with their escrow deltas.
type Service struct {
	store   Store
	jobs    jobs.Store
	wallets jobs.WalletDirectory
	escrow  *escrow.Service
	team    *team.Service
	runner  db.Runner
	cfg     config.Platform
	bus     *events.Bus
	log     *slog.Logger
}

func NewService(store Store, jobStore jobs.Store, wallets jobs.WalletDirectory, esc *escrow.Service,
	tm *team.Service, runner db.Runner, cfg config.Platform, bus *events.Bus, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, jobs: jobStore, wallets: wallets, escrow: esc,
		team: tm, runner: runner, cfg: cfg, bus: bus, log: log}
}

func (s *Service) publish(rec *events.Recorder) {
	if s.bus != nil {
		s.bus.PublishAll(rec.Drain())
	}
}

// DayOf truncates a timestamp to its working day in UTC.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var confirmable = map[string]bool{
	models.AttendancePresent: true,
	models.AttendanceHalfDay: true,
	models.AttendanceAbsent:  true,
}

// ConfirmInput is one party's attendance statement for one working day.
// WorkerID may be zero: workers confirm their own day, and on single-worker
// jobs the client's confirmation targets the assignee.
type ConfirmInput struct {
	JobID    uuid.UUID
	WorkerID uuid.UUID
	Date     time.Time
	Status   string
}

// Confirm records one party's attendance statement. The day becomes final
// when both parties agree (either marking absent wins); disagreement between
// two confirmations escalates to DISPUTED for admin resolution. A day with
// only the worker's claim finalizes when the grace window lapses.
func (s *Service) Confirm(ctx context.Context, actorID uuid.UUID, in ConfirmInput) (*models.DailyAttendance, error) {
	if !confirmable[in.Status] {
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, in.Status)
	}
	rec := &events.Recorder{}
	var day *models.DailyAttendance
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		j, err := s.jobs.JobForUpdate(ctx, tx, in.JobID)
		if err != nil {
			return err
		}
		if j.PaymentModel != models.PaymentModelDaily {
			return ErrNotDaily
		}
		if j.Status != models.JobStatusInProgress {
			return fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
		}
		byClient := actorID == j.ClientID
		workerID := in.WorkerID
		if byClient {
			if workerID == uuid.Nil {
				workerID, err = s.soleAssignee(j)
				if err != nil {
					return err
				}
			}
		} else {
			onJob, err := s.isWorkerOnJob(ctx, tx, j, actorID)
			if err != nil {
				return err
			}
			if !onJob {
				return ErrForbidden
			}
			workerID = actorID
		}
		if err := s.checkSchedule(j, in.Date); err != nil {
			return err
		}

		date := DayOf(in.Date)
		day, err = s.store.DayForUpdate(ctx, tx, j.ID, workerID, date)
		if err != nil {
			return err
		}
		created := false
		if day == nil {
			created = true
			now := time.Now()
			day = &models.DailyAttendance{
				ID:        uuid.New(),
				JobID:     j.ID,
				WorkerID:  workerID,
				Date:      date,
				Status:    models.AttendancePending,
				CreatedAt: now,
				UpdatedAt: now,
			}
		}
		if day.Status != models.AttendancePending {
			return ErrDayFinal
		}
		if byClient {
			day.ClientConfirmed = true
			day.ClientStatus = in.Status
		} else {
			day.WorkerConfirmed = true
			day.WorkerStatus = in.Status
		}
		if day.WorkerConfirmed && day.ClientConfirmed {
			s.finalize(day, agreedStatus(day.WorkerStatus, day.ClientStatus), j.DailyRateCentavos)
			if day.Status != models.AttendanceDisputed {
				rec.Record(events.New(events.TypeAttendanceConfirmed, j.ID, actorID).
					WithSubject(workerID).WithAmount(day.AmountEarnedCentavos))
			}
		}
		day.UpdatedAt = time.Now()
		if created {
			return s.store.InsertDay(ctx, tx, day)
		}
		return s.store.UpdateDay(ctx, tx, day)
	})
	if err != nil {
		return nil, err
	}
	s.publish(rec)
	return day, nil
}

// agreedStatus merges two confirmations: agreement stands, either side
// marking absent wins, anything else is a disagreement.
func agreedStatus(worker, client string) string {
	switch {
	case worker == client:
		return worker
	case worker == models.AttendanceAbsent || client == models.AttendanceAbsent:
		return models.AttendanceAbsent
	default:
		return models.AttendanceDisputed
	}
}

func (s *Service) finalize(day *models.DailyAttendance, status string, dailyRateCentavos int64) {
	day.Status = status
	if status != models.AttendanceDisputed {
		day.AmountEarnedCentavos = dailyRateCentavos * models.EarningFactor(status) / 100
	}
}

// ResolveDisputedDay is the admin ruling on a day both parties contested.
func (s *Service) ResolveDisputedDay(ctx context.Context, adminID, jobID, workerID uuid.UUID, date time.Time, status string) (*models.DailyAttendance, error) {
	if !confirmable[status] {
		return nil, fmt.Errorf("%w: %s", ErrBadStatus, status)
	}
	var day *models.DailyAttendance
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		j, err := s.jobs.JobForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		day, err = s.store.DayForUpdate(ctx, tx, jobID, workerID, DayOf(date))
		if err != nil {
			return err
		}
		if day == nil {
			return ErrNotFound
		}
		if day.Status != models.AttendanceDisputed {
			return fmt.Errorf("%w: day is %s", ErrInvalidState, day.Status)
		}
		s.finalize(day, status, j.DailyRateCentavos)
		day.UpdatedAt = time.Now()
		if err := s.store.UpdateDay(ctx, tx, day); err != nil {
			return err
		}
		if j.Status != models.JobStatusCompleted {
			return nil
		}
		// The job was approved with this day's gross held in reserve; the
		// ruling settles it now instead of waiting for the nightly sweep.
		heldGross := j.DailyRateCentavos + s.cfg.CommissionFor(j.DailyRateCentavos)
		if err := s.settleDay(ctx, tx, j, day, time.Now()); err != nil {
			return err
		}
		gross := day.AmountEarnedCentavos
		if gross > 0 {
			gross += s.cfg.CommissionFor(day.AmountEarnedCentavos)
		}
		if rest := heldGross - gross; rest > 0 {
			clientWallet, err := s.wallets.WalletByAccount(ctx, j.ClientID)
			if err != nil {
				return err
			}
			if err := s.escrow.RefundPartial(ctx, tx, j.ID, clientWallet.ID, rest,
				escrow.DayRefundRef(j.ID, day.WorkerID, day.Date)); err != nil {
				return err
			}
			j.EscrowConsumedCentavos += rest
		}
		return s.jobs.Update(ctx, tx, j)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("disputed attendance resolved", "job_id", jobID, "worker_id", workerID, "status", status, "admin_id", adminID)
	return day, nil
}

// FinalizeLapsed closes out PENDING days whose grace window has passed: an
// uncontested worker claim stands, a day with no claim at all is absent.
// Runs inside the caller's transaction; the nightly sweep drives it.
func (s *Service) FinalizeLapsed(ctx context.Context, tx pgx.Tx, now time.Time) ([]*models.DailyAttendance, error) {
	cutoff := DayOf(now.Add(-s.cfg.AttendanceGrace() - 24*time.Hour))
	lapsed, err := s.store.LapsedPendingDays(ctx, tx, cutoff)
	if err != nil {
		return nil, err
	}
	var finalized []*models.DailyAttendance
	for _, day := range lapsed {
		j, err := s.jobs.JobForUpdate(ctx, tx, day.JobID)
		if err != nil {
			return nil, err
		}
		status := models.AttendanceAbsent
		if day.WorkerConfirmed {
			status = day.WorkerStatus
		}
		s.finalize(day, status, j.DailyRateCentavos)
		day.UpdatedAt = time.Now()
		if err := s.store.UpdateDay(ctx, tx, day); err != nil {
			return nil, err
		}
		finalized = append(finalized, day)
	}
	return finalized, nil
}

// PromoteDue runs the nightly attendance payout: lapsed days are finalized,
// then every finalized unprocessed day releases its earning out of escrow
// into the worker's pending balance, each day in its own transaction so one
// failure cannot hold up the rest. Returns the number of days promoted.
func (s *Service) PromoteDue(ctx context.Context, now time.Time, limit int) (int, error) {
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		_, err := s.FinalizeLapsed(ctx, tx, now)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("finalize lapsed days: %w", err)
	}

	var due []*models.DailyAttendance
	err = s.runner.InTx(ctx, func(tx pgx.Tx) error {
		due, err = s.store.UnprocessedDays(ctx, tx, limit)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list unprocessed days: %w", err)
	}

	promoted := 0
	for _, day := range due {
		if err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
			return s.promoteDay(ctx, tx, day, now)
		}); err != nil {
			s.log.Error("attendance promotion failed", "job_id", day.JobID, "worker_id", day.WorkerID,
				"date", day.Date.Format("2006-01-02"), "error", err)
			continue
		}
		promoted++
	}
	return promoted, nil
}

func (s *Service) promoteDay(ctx context.Context, tx pgx.Tx, day *models.DailyAttendance, now time.Time) error {
	j, err := s.jobs.JobForUpdate(ctx, tx, day.JobID)
	if err != nil {
		return err
	}
	if err := s.settleDay(ctx, tx, j, day, now); err != nil {
		return err
	}
	return s.jobs.Update(ctx, tx, j)
}

// settleDay releases one finalized day's earning out of escrow. It mutates
// j's consumed figure; persisting the job row is the caller's job.
func (s *Service) settleDay(ctx context.Context, tx pgx.Tx, j *models.Job, day *models.DailyAttendance, now time.Time) error {
	if day.AmountEarnedCentavos == 0 {
		day.PaymentProcessed = true
		day.UpdatedAt = time.Now()
		return s.store.UpdateDay(ctx, tx, day)
	}
	clientWallet, err := s.wallets.WalletByAccount(ctx, j.ClientID)
	if err != nil {
		return err
	}
	workerWallet, err := s.wallets.WalletByAccount(ctx, day.WorkerID)
	if err != nil {
		return err
	}
	fee := s.cfg.CommissionFor(day.AmountEarnedCentavos)
	gross := day.AmountEarnedCentavos + fee
	if _, err := s.escrow.Release(ctx, tx, escrow.Release{
		JobID:          j.ID,
		ClientWalletID: clientWallet.ID,
		WorkerWalletID: workerWallet.ID,
		GrossCentavos:  gross,
		FeeCentavos:    fee,
		ReleaseDate:    now.Add(s.cfg.BufferWindow()),
		PendingRef:     escrow.DayReleaseRef(j.ID, day.WorkerID, day.Date),
		FeeRef:         escrow.DayFeeRef(j.ID, day.WorkerID, day.Date),
	}); err != nil {
		return err
	}
	j.EscrowConsumedCentavos += gross
	day.PaymentProcessed = true
	day.UpdatedAt = time.Now()
	return s.store.UpdateDay(ctx, tx, day)
}

var _ jobs.DailySettler = (*Service)(nil)

// SettleOnApproval closes out a daily job's attendance inside the client's
// completion sign-off. PENDING days finalize from the worker's claim (the
// approval stands in for the lapsed grace window), finalized unpaid days
// settle immediately, and each DISPUTED day keeps one full day's gross
// reserved until the admin rules. Returns the total held back; the caller
// persists the job row.
func (s *Service) SettleOnApproval(ctx context.Context, tx pgx.Tx, j *models.Job, now time.Time) (int64, error) {
	days, err := s.store.DaysByJob(ctx, tx, j.ID)
	if err != nil {
		return 0, err
	}
	var held int64
	for _, day := range days {
		switch day.Status {
		case models.AttendancePending:
			status := models.AttendanceAbsent
			if day.WorkerConfirmed {
				status = day.WorkerStatus
			}
			s.finalize(day, status, j.DailyRateCentavos)
			day.UpdatedAt = time.Now()
			if err := s.store.UpdateDay(ctx, tx, day); err != nil {
				return 0, err
			}
		case models.AttendanceDisputed:
			held += j.DailyRateCentavos + s.cfg.CommissionFor(j.DailyRateCentavos)
			continue
		}
		if day.PaymentProcessed {
			continue
		}
		if err := s.settleDay(ctx, tx, j, day, now); err != nil {
			return 0, err
		}
	}
	return held, nil
}

// --- extensions ---

// RequestExtension opens a mutual-approval request for extra working days.
// The requester's side counts as approved.
func (s *Service) RequestExtension(ctx context.Context, actorID, jobID uuid.UUID, additionalDays int, reason string) (*models.DailyJobExtension, error) {
	if additionalDays <= 0 {
		return nil, fmt.Errorf("%w: additional days must be positive", ErrBadMutation)
	}
	var ext *models.DailyJobExtension
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		j, byClient, err := s.dailyParty(ctx, tx, actorID, jobID)
		if err != nil {
			return err
		}
		workers, err := s.workerCount(ctx, tx, j)
		if err != nil {
			return err
		}
		gross := j.DailyRateCentavos * int64(workers) * int64(additionalDays)
		now := time.Now()
		ext = &models.DailyJobExtension{
			ID:                       uuid.New(),
			JobID:                    jobID,
			RequestedBy:              actorID,
			AdditionalDays:           additionalDays,
			AdditionalEscrowCentavos: gross + s.cfg.CommissionFor(gross),
			Reason:                   reason,
			ClientApproved:           byClient,
			WorkerApproved:           !byClient,
			Status:                   models.MutationPending,
			CreatedAt:                now,
			UpdatedAt:                now,
		}
		return s.store.InsertExtension(ctx, tx, ext)
	})
	if err != nil {
		return nil, err
	}
	return ext, nil
}

// ApproveExtension records the counterparty's approval. Once both sides have
// approved, the additional escrow is charged and the job duration grows; an
// underfunded client wallet aborts the whole approval.
func (s *Service) ApproveExtension(ctx context.Context, actorID, extensionID uuid.UUID) (*models.DailyJobExtension, error) {
	rec := &events.Recorder{}
	var ext *models.DailyJobExtension
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		ext, err = s.store.ExtensionForUpdate(ctx, tx, extensionID)
		if err != nil {
			return err
		}
		if ext.Status != models.MutationPending {
			return fmt.Errorf("%w: extension is %s", ErrInvalidState, ext.Status)
		}
		j, byClient, err := s.dailyParty(ctx, tx, actorID, ext.JobID)
		if err != nil {
			return err
		}
		if byClient {
			ext.ClientApproved = true
		} else {
			ext.WorkerApproved = true
		}
		now := time.Now()
		if ext.ClientApproved && ext.WorkerApproved {
			clientWallet, err := s.wallets.WalletByAccount(ctx, j.ClientID)
			if err != nil {
				return err
			}
			if err := s.escrow.Charge(ctx, tx, j.ID, clientWallet.ID,
				ext.AdditionalEscrowCentavos, escrow.ExtensionChargeRef(j.ID, ext.ID)); err != nil {
				return err
			}
			workers, err := s.workerCount(ctx, tx, j)
			if err != nil {
				return err
			}
			gross := j.DailyRateCentavos * int64(workers) * int64(ext.AdditionalDays)
			j.DurationDays += ext.AdditionalDays
			j.BudgetCentavos += gross
			j.EscrowAmountCentavos += ext.AdditionalEscrowCentavos
			j.EscrowChargedCentavos += ext.AdditionalEscrowCentavos
			j.CommissionFeeCentavos += ext.AdditionalEscrowCentavos - gross
			if err := s.jobs.Update(ctx, tx, j); err != nil {
				return err
			}
			ext.Status = models.MutationApproved
			ext.EffectiveAt = &now
			rec.Record(events.New(events.TypeExtensionApproved, j.ID, actorID).
				WithSubject(ext.ID).WithAmount(ext.AdditionalEscrowCentavos))
		}
		ext.UpdatedAt = now
		return s.store.UpdateExtension(ctx, tx, ext)
	})
	if err != nil {
		return nil, err
	}
	s.publish(rec)
	return ext, nil
}

// RejectExtension closes the request without effect.
func (s *Service) RejectExtension(ctx context.Context, actorID, extensionID uuid.UUID) (*models.DailyJobExtension, error) {
	var ext *models.DailyJobExtension
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		ext, err = s.store.ExtensionForUpdate(ctx, tx, extensionID)
		if err != nil {
			return err
		}
		if ext.Status != models.MutationPending {
			return fmt.Errorf("%w: extension is %s", ErrInvalidState, ext.Status)
		}
		if _, _, err := s.dailyParty(ctx, tx, actorID, ext.JobID); err != nil {
			return err
		}
		ext.Status = models.MutationRejected
		ext.UpdatedAt = time.Now()
		return s.store.UpdateExtension(ctx, tx, ext)
	})
	if err != nil {
		return nil, err
	}
	return ext, nil
}

// --- rate changes ---

// RequestRateChange opens a mutual-approval request for a new daily rate
// applied to the remaining working days.
func (s *Service) RequestRateChange(ctx context.Context, actorID, jobID uuid.UUID, newRateCentavos int64) (*models.DailyRateChange, error) {
	if newRateCentavos <= 0 {
		return nil, fmt.Errorf("%w: rate must be positive", ErrBadMutation)
	}
	var rc *models.DailyRateChange
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		j, byClient, err := s.dailyParty(ctx, tx, actorID, jobID)
		if err != nil {
			return err
		}
		if newRateCentavos == j.DailyRateCentavos {
			return fmt.Errorf("%w: rate unchanged", ErrBadMutation)
		}
		elapsed, err := s.store.DayCount(ctx, tx, jobID)
		if err != nil {
			return err
		}
		remaining := j.DurationDays - elapsed
		if remaining <= 0 {
			return fmt.Errorf("%w: no working days remain", ErrBadMutation)
		}
		workers, err := s.workerCount(ctx, tx, j)
		if err != nil {
			return err
		}
		gross := (newRateCentavos - j.DailyRateCentavos) * int64(workers) * int64(remaining)
		now := time.Now()
		rc = &models.DailyRateChange{
			ID:                   uuid.New(),
			JobID:                jobID,
			RequestedBy:          actorID,
			NewDailyRateCentavos: newRateCentavos,
			EscrowDeltaCentavos:  gross + s.cfg.CommissionFor(gross),
			RemainingDays:        remaining,
			ClientApproved:       byClient,
			WorkerApproved:       !byClient,
			Status:               models.MutationPending,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		return s.store.InsertRateChange(ctx, tx, rc)
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// ApproveRateChange records the counterparty's approval. On mutual approval a
// rate increase charges the delta into escrow and a decrease releases the
// excess back to the client.
func (s *Service) ApproveRateChange(ctx context.Context, actorID, changeID uuid.UUID) (*models.DailyRateChange, error) {
	rec := &events.Recorder{}
	var rc *models.DailyRateChange
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		rc, err = s.store.RateChangeForUpdate(ctx, tx, changeID)
		if err != nil {
			return err
		}
		if rc.Status != models.MutationPending {
			return fmt.Errorf("%w: rate change is %s", ErrInvalidState, rc.Status)
		}
		j, byClient, err := s.dailyParty(ctx, tx, actorID, rc.JobID)
		if err != nil {
			return err
		}
		if byClient {
			rc.ClientApproved = true
		} else {
			rc.WorkerApproved = true
		}
		now := time.Now()
		if rc.ClientApproved && rc.WorkerApproved {
			clientWallet, err := s.wallets.WalletByAccount(ctx, j.ClientID)
			if err != nil {
				return err
			}
			switch {
			case rc.EscrowDeltaCentavos > 0:
				if err := s.escrow.Charge(ctx, tx, j.ID, clientWallet.ID,
					rc.EscrowDeltaCentavos, escrow.RateChangeRef(j.ID, rc.ID)); err != nil {
					return err
				}
			case rc.EscrowDeltaCentavos < 0:
				if err := s.escrow.RefundPartial(ctx, tx, j.ID, clientWallet.ID,
					-rc.EscrowDeltaCentavos, escrow.RateChangeRef(j.ID, rc.ID)); err != nil {
					return err
				}
			}
			workers, err := s.workerCount(ctx, tx, j)
			if err != nil {
				return err
			}
			gross := (rc.NewDailyRateCentavos - j.DailyRateCentavos) * int64(workers) * int64(rc.RemainingDays)
			j.DailyRateCentavos = rc.NewDailyRateCentavos
			j.BudgetCentavos += gross
			j.EscrowAmountCentavos += rc.EscrowDeltaCentavos
			j.EscrowChargedCentavos += rc.EscrowDeltaCentavos
			j.CommissionFeeCentavos += rc.EscrowDeltaCentavos - gross
			if err := s.jobs.Update(ctx, tx, j); err != nil {
				return err
			}
			rc.Status = models.MutationApproved
			rc.EffectiveAt = &now
			rec.Record(events.New(events.TypeExtensionApproved, j.ID, actorID).
				WithSubject(rc.ID).WithAmount(rc.EscrowDeltaCentavos))
		}
		rc.UpdatedAt = now
		return s.store.UpdateRateChange(ctx, tx, rc)
	})
	if err != nil {
		return nil, err
	}
	s.publish(rec)
	return rc, nil
}

// --- helpers ---

// dailyParty locks the job and identifies the actor's side of a mutation.
func (s *Service) dailyParty(ctx context.Context, tx pgx.Tx, actorID, jobID uuid.UUID) (*models.Job, bool, error) {
	j, err := s.jobs.JobForUpdate(ctx, tx, jobID)
	if err != nil {
		return nil, false, err
	}
	if j.PaymentModel != models.PaymentModelDaily {
		return nil, false, ErrNotDaily
	}
	if j.Status != models.JobStatusInProgress && j.Status != models.JobStatusActive {
		return nil, false, fmt.Errorf("%w: job is %s", ErrInvalidState, j.Status)
	}
	if actorID == j.ClientID {
		return j, true, nil
	}
	onJob, err := s.isWorkerOnJob(ctx, tx, j, actorID)
	if err != nil {
		return nil, false, err
	}
	if !onJob {
		return nil, false, ErrForbidden
	}
	return j, false, nil
}

func (s *Service) soleAssignee(j *models.Job) (uuid.UUID, error) {
	switch {
	case j.IsTeamJob:
		return uuid.Nil, ErrWorkerRequired
	case j.AssignedWorkerID != nil:
		return *j.AssignedWorkerID, nil
	case j.AssignedAgencyID != nil:
		return *j.AssignedAgencyID, nil
	}
	return uuid.Nil, fmt.Errorf("%w: no assignment", ErrInvalidState)
}

func (s *Service) isWorkerOnJob(ctx context.Context, tx pgx.Tx, j *models.Job, accountID uuid.UUID) (bool, error) {
	if j.AssignedWorkerID != nil && *j.AssignedWorkerID == accountID {
		return true, nil
	}
	if j.AssignedAgencyID != nil && *j.AssignedAgencyID == accountID {
		return true, nil
	}
	if !j.IsTeamJob {
		return false, nil
	}
	assignments, err := s.team.ActiveAssignments(ctx, tx, j.ID)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		if a.WorkerID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) workerCount(ctx context.Context, tx pgx.Tx, j *models.Job) (int, error) {
	if !j.IsTeamJob {
		return 1, nil
	}
	assignments, err := s.team.ActiveAssignments(ctx, tx, j.ID)
	if err != nil {
		return 0, err
	}
	if len(assignments) == 0 {
		return 0, fmt.Errorf("%w: no active assignments", ErrInvalidState)
	}
	return len(assignments), nil
}

// checkSchedule verifies the date falls inside the job's working window.
func (s *Service) checkSchedule(j *models.Job, date time.Time) error {
	if j.ClientConfirmedWorkStartedAt == nil {
		return fmt.Errorf("%w: work has not started", ErrInvalidState)
	}
	start := DayOf(*j.ClientConfirmedWorkStartedAt)
	idx := int(DayOf(date).Sub(start).Hours() / 24)
	if idx < 0 || idx >= j.DurationDays {
		return ErrOutsideSchedule
	}
	return nil
}

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/config"
	"github.com/hanapbuhay/backend/internal/db"
	"github.com/hanapbuhay/backend/internal/events"
	"github.com/hanapbuhay/backend/internal/jobs"
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/models"
	"github.com/hanapbuhay/backend/internal/team"
)

// JobSource is the slice of the jobs store the payment sweeper drives.
// DueForRelease claims eligible rows with SKIP LOCKED so concurrent sweeps
// never fight over a job.
type JobSource interface {
	DueForRelease(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]*models.Job, error)
	JobForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Job, error)
	Update(ctx context.Context, tx pgx.Tx, j *models.Job) error
}

// Sweeper releases buffered earnings once a job clears its hold window. Each
// job is processed in its own transaction with the eligibility re-checked
// under the row lock, so one bad job never blocks the batch and a dispute
// opened between claim and release still holds the payment.
type Sweeper struct {
	jobs    JobSource
	wallets jobs.WalletDirectory
	ledger  *ledger.Service
	team    *team.Service
	runner  db.Runner
	cfg     config.Platform
	bus     *events.Bus
	lease   Lease
	log     *slog.Logger
}

func NewSweeper(source JobSource, wallets jobs.WalletDirectory, led *ledger.Service, tm *team.Service,
	runner db.Runner, cfg config.Platform, bus *events.Bus, lease Lease, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{jobs: source, wallets: wallets, ledger: led, team: tm,
		runner: runner, cfg: cfg, bus: bus, lease: lease, log: log}
}

// Sweep runs one pass: claim up to the batch cap of due jobs, promote their
// pending earnings, mark them released. Returns the number of jobs released.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s.lease != nil {
		ok, err := s.lease.Acquire(ctx, "payment_buffer_sweep", s.cfg.SweepInterval())
		if err != nil {
			// The lease is advisory; a broken cache must not stop payouts.
			s.log.Warn("sweep lease unavailable, proceeding", "error", err)
		} else if !ok {
			return 0, nil
		} else {
			defer func() {
				if err := s.lease.Free(ctx, "payment_buffer_sweep"); err != nil {
					s.log.Warn("sweep lease free failed", "error", err)
				}
			}()
		}
	}

	var due []*models.Job
	err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		due, err = s.jobs.DueForRelease(ctx, tx, now, s.cfg.SweepBatchSize)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("select due jobs: %w", err)
	}

	rec := &events.Recorder{}
	released := 0
	for _, candidate := range due {
		if err := s.runner.InTx(ctx, func(tx pgx.Tx) error {
			return s.releaseJob(ctx, tx, candidate.ID, now, rec)
		}); err != nil {
			s.log.Error("payment release failed", "job_id", candidate.ID, "error", err)
			continue
		}
		released++
	}
	if s.bus != nil {
		s.bus.PublishAll(rec.Drain())
	}
	return released, nil
}

func (s *Sweeper) releaseJob(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, now time.Time, rec *events.Recorder) error {
	j, err := s.jobs.JobForUpdate(ctx, tx, jobID)
	if err != nil {
		return err
	}
	// Re-check under the lock: a dispute or a concurrent sweep may have won.
	if j.Status != models.JobStatusCompleted || j.PaymentReleasedToWorker ||
		j.PaymentHeldReason != models.HoldReasonBufferPeriod {
		return nil
	}
	if j.PaymentReleaseDate == nil || j.PaymentReleaseDate.After(now) {
		return nil
	}

	rows, err := s.pendingRows(ctx, tx, j)
	if err != nil {
		return err
	}
	var total int64
	var nextDue *time.Time
	for _, p := range rows {
		if p.ReleaseDate != nil && p.ReleaseDate.After(now) {
			if nextDue == nil || p.ReleaseDate.Before(*nextDue) {
				nextDue = p.ReleaseDate
			}
			continue
		}
		if _, err := s.ledger.PromotePending(ctx, tx, p); err != nil {
			return err
		}
		total += p.AmountCentavos
	}

	if nextDue != nil {
		// Later earnings (per-day holds) keep the job in the buffer.
		j.PaymentReleaseDate = nextDue
	} else {
		j.PaymentReleasedToWorker = true
		j.PaymentReleasedAt = &now
		j.PaymentHeldReason = models.HoldReasonReleased
	}
	j.UpdatedAt = now
	if err := s.jobs.Update(ctx, tx, j); err != nil {
		return err
	}
	rec.Record(events.New(events.TypePaymentReleased, j.ID, models.SystemPlatformAccountID).WithAmount(total))
	return nil
}

// pendingRows collects the still-pending earning rows across every payout
// recipient of the job.
func (s *Sweeper) pendingRows(ctx context.Context, tx pgx.Tx, j *models.Job) ([]*models.Transaction, error) {
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

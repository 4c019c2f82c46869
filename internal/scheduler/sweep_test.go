package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/config"
	"github.com/hanapbuhay/backend/internal/db"
	"github.com/hanapbuhay/backend/internal/escrow"
	"github.com/hanapbuhay/backend/internal/events"
	"github.com/hanapbuhay/backend/internal/jobs"
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/ledger/ledgertest"
	"github.com/hanapbuhay/backend/internal/models"
	"github.com/hanapbuhay/backend/internal/scheduler"
	"github.com/hanapbuhay/backend/internal/team"
	"github.com/hanapbuhay/backend/internal/team/teamtest"
)

type memJobs struct {
	mu sync.Mutex
	m  map[uuid.UUID]*models.Job
}

func (s *memJobs) Insert(_ context.Context, _ pgx.Tx, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.m[j.ID] = &cp
	return nil
}

func (s *memJobs) JobForUpdate(_ context.Context, _ pgx.Tx, id uuid.UUID) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.m[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memJobs) Update(_ context.Context, _ pgx.Tx, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.m[j.ID] = &cp
	return nil
}

func (s *memJobs) DueForRelease(_ context.Context, _ pgx.Tx, now time.Time, limit int) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, j := range s.m {
		if j.Status != models.JobStatusCompleted || j.PaymentReleasedToWorker {
			continue
		}
		if j.PaymentHeldReason != models.HoldReasonBufferPeriod {
			continue
		}
		if j.PaymentReleaseDate == nil || j.PaymentReleaseDate.After(now) {
			continue
		}
		cp := *j
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memJobs) get(id uuid.UUID) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.m[id]
}

type env struct {
	ledg     *ledgertest.Store
	jobStore *memJobs
	esc      *escrow.Service
	sweeper  *scheduler.Sweeper
	cfg      config.Platform

	platformWallet uuid.UUID
	published      []events.Event
}

func newEnv(t *testing.T, cfg config.Platform) *env {
	t.Helper()
	e := &env{
		ledg:     ledgertest.NewStore(),
		jobStore: &memJobs{m: make(map[uuid.UUID]*models.Job)},
		cfg:      cfg,
	}
	e.platformWallet = e.ledg.AddAccountWallet(models.SystemPlatformAccountID, 0)
	led := ledger.NewService(e.ledg)
	e.esc = escrow.NewService(led, e.platformWallet, e.cfg)
	tm := team.NewService(teamtest.NewStore())
	bus := events.NewBus(nil)
	bus.Subscribe("", func(ev events.Event) { e.published = append(e.published, ev) })
	e.sweeper = scheduler.NewSweeper(e.jobStore, e.ledg, led, tm, db.NoTx, e.cfg, bus, nil, nil)
	return e
}

// seedBuffered stands up a completed job whose escrow has been released into
// the worker's pending compartment, payment held for the buffer window.
func (e *env) seedBuffered(t *testing.T, releaseDate time.Time) (workerID, jobID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	clientID := uuid.New()
	workerID = uuid.New()
	clientWallet := e.ledg.AddAccountWallet(clientID, 165000)
	workerWallet := e.ledg.AddAccountWallet(workerID, 0)
	jobID = uuid.New()

	if err := e.esc.Charge(ctx, nil, jobID, clientWallet, 165000, escrow.ChargeRef(jobID)); err != nil {
		t.Fatalf("charge: %v", err)
	}
	_, err := e.esc.Release(ctx, nil, escrow.Release{
		JobID:          jobID,
		ClientWalletID: clientWallet,
		WorkerWalletID: workerWallet,
		GrossCentavos:  165000,
		FeeCentavos:    15000,
		ReleaseDate:    releaseDate,
		PendingRef:     escrow.ReleaseRef(jobID),
		FeeRef:         escrow.FeeRef(jobID),
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	now := time.Now()
	j := &models.Job{
		ID:                     jobID,
		ClientID:               clientID,
		Title:                  "Fence repair",
		SpecializationID:       uuid.New(),
		BudgetCentavos:         150000,
		PaymentModel:           models.PaymentModelProject,
		EscrowAmountCentavos:   165000,
		EscrowChargedCentavos:  165000,
		EscrowConsumedCentavos: 165000,
		EscrowPaid:             true,
		CommissionFeeCentavos:  15000,
		Status:                 models.JobStatusCompleted,
		JobType:                models.JobTypeListing,
		AssignedWorkerID:       &workerID,
		PaymentReleaseDate:     &releaseDate,
		PaymentHeldReason:      models.HoldReasonBufferPeriod,
		MaterialsStatus:        models.MaterialsNone,
		CompletedAt:            &now,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := e.jobStore.Insert(ctx, nil, j); err != nil {
		t.Fatalf("insert job: %v", err)
	}
	return workerID, jobID
}

func (e *env) walletOf(t *testing.T, accountID uuid.UUID) models.Wallet {
	t.Helper()
	w, err := e.ledg.WalletByAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	return *w
}

func TestSweepReleasesDueJob(t *testing.T) {
	e := newEnv(t, config.Defaults())
	ctx := context.Background()
	workerID, jobID := e.seedBuffered(t, time.Now().Add(-time.Hour))
	before := e.ledg.TotalFunds()

	released, err := e.sweeper.Sweep(ctx, time.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if released != 1 {
		t.Fatalf("released = %d", released)
	}

	worker := e.walletOf(t, workerID)
	if worker.BalanceCentavos != 150000 || worker.PendingCentavos != 0 {
		t.Fatalf("worker wallet = %+v", worker)
	}
	if got := e.ledg.TotalFunds(); got != before {
		t.Fatalf("total funds %d, want %d", got, before)
	}

	j := e.jobStore.get(jobID)
	if !j.PaymentReleasedToWorker || j.PaymentReleasedAt == nil {
		t.Fatalf("job not marked released: %+v", j)
	}
	if j.PaymentHeldReason != models.HoldReasonReleased {
		t.Fatalf("held reason = %s", j.PaymentHeldReason)
	}
	if len(e.published) != 1 || e.published[0].Type != events.TypePaymentReleased {
		t.Fatalf("published = %+v", e.published)
	}
	if e.published[0].Amount != 150000 {
		t.Fatalf("event amount = %d", e.published[0].Amount)
	}
}

func TestSweepIdempotent(t *testing.T) {
	e := newEnv(t, config.Defaults())
	ctx := context.Background()
	workerID, _ := e.seedBuffered(t, time.Now().Add(-time.Hour))

	if _, err := e.sweeper.Sweep(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}
	released, err := e.sweeper.Sweep(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if released != 0 {
		t.Fatalf("second sweep released = %d", released)
	}
	if worker := e.walletOf(t, workerID); worker.BalanceCentavos != 150000 {
		t.Fatalf("worker balance = %d", worker.BalanceCentavos)
	}
	if rows := e.ledg.RowsByKind(models.TxKindEarning); len(rows) != 1 {
		t.Fatalf("earning rows = %d", len(rows))
	}
}

func TestSweepSkipsDisputeHold(t *testing.T) {
	e := newEnv(t, config.Defaults())
	ctx := context.Background()
	workerID, jobID := e.seedBuffered(t, time.Now().Add(-time.Hour))

	j := e.jobStore.get(jobID)
	j.Status = models.JobStatusDisputed
	j.PaymentHeldReason = models.HoldReasonBackjobPending
	if err := e.jobStore.Update(ctx, nil, &j); err != nil {
		t.Fatal(err)
	}

	released, err := e.sweeper.Sweep(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if released != 0 {
		t.Fatalf("released = %d", released)
	}
	if worker := e.walletOf(t, workerID); worker.PendingCentavos != 150000 {
		t.Fatalf("worker pending = %d", worker.PendingCentavos)
	}
	if len(e.published) != 0 {
		t.Fatalf("published = %+v", e.published)
	}
}

func TestSweepHonorsBatchCap(t *testing.T) {
	cfg := config.Defaults()
	cfg.SweepBatchSize = 1
	e := newEnv(t, cfg)
	ctx := context.Background()
	e.seedBuffered(t, time.Now().Add(-2*time.Hour))
	e.seedBuffered(t, time.Now().Add(-time.Hour))

	released, err := e.sweeper.Sweep(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Fatalf("first pass released = %d", released)
	}
	released, err = e.sweeper.Sweep(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Fatalf("second pass released = %d", released)
	}
}

func TestZeroBufferReleasesNextSweep(t *testing.T) {
	cfg := config.Defaults()
	cfg.BufferDays = 0
	e := newEnv(t, cfg)
	ctx := context.Background()
	workerID, _ := e.seedBuffered(t, time.Now())

	released, err := e.sweeper.Sweep(ctx, time.Now().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Fatalf("released = %d", released)
	}
	if worker := e.walletOf(t, workerID); worker.BalanceCentavos != 150000 {
		t.Fatalf("worker balance = %d", worker.BalanceCentavos)
	}
}

func TestSweepDefersLaterDailyEarnings(t *testing.T) {
	e := newEnv(t, config.Defaults())
	ctx := context.Background()
	workerID, jobID := e.seedBuffered(t, time.Now().Add(-time.Hour))

	// A second per-day earning still inside its own buffer window.
	w, err := e.ledg.WalletByAccount(ctx, workerID)
	if err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(48 * time.Hour)
	led := ledger.NewService(e.ledg)
	if _, err := led.AddPending(ctx, nil, w.ID, 50000, jobID, later, escrow.DayReleaseRef(jobID, workerID, later)); err != nil {
		t.Fatalf("add pending: %v", err)
	}

	released, err := e.sweeper.Sweep(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Fatalf("released = %d", released)
	}

	worker := e.walletOf(t, workerID)
	if worker.BalanceCentavos != 150000 || worker.PendingCentavos != 50000 {
		t.Fatalf("worker wallet = %+v", worker)
	}
	j := e.jobStore.get(jobID)
	if j.PaymentReleasedToWorker {
		t.Fatal("job released while a day is still buffered")
	}
	if j.PaymentHeldReason != models.HoldReasonBufferPeriod {
		t.Fatalf("held reason = %s", j.PaymentHeldReason)
	}
	if j.PaymentReleaseDate == nil || !j.PaymentReleaseDate.Equal(later) {
		t.Fatalf("release date = %v, want %v", j.PaymentReleaseDate, later)
	}

	released, err = e.sweeper.Sweep(ctx, later.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Fatalf("final pass released = %d", released)
	}
	worker = e.walletOf(t, workerID)
	if worker.BalanceCentavos != 200000 || worker.PendingCentavos != 0 {
		t.Fatalf("worker wallet after final pass = %+v", worker)
	}
	if j := e.jobStore.get(jobID); !j.PaymentReleasedToWorker {
		t.Fatal("job not released after final day")
	}
}

type deniedLease struct{}

func (deniedLease) Acquire(context.Context, string, time.Duration) (bool, error) { return false, nil }
func (deniedLease) Free(context.Context, string) error                           { return nil }

func TestLeaseDeniedSkipsPass(t *testing.T) {
	e := newEnv(t, config.Defaults())
	ctx := context.Background()
	workerID, _ := e.seedBuffered(t, time.Now().Add(-time.Hour))

	led := ledger.NewService(e.ledg)
	tm := team.NewService(teamtest.NewStore())
	guarded := scheduler.NewSweeper(e.jobStore, e.ledg, led, tm, db.NoTx, e.cfg, nil, deniedLease{}, nil)

	released, err := guarded.Sweep(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if released != 0 {
		t.Fatalf("released = %d", released)
	}
	if worker := e.walletOf(t, workerID); worker.PendingCentavos != 150000 {
		t.Fatalf("worker pending = %d", worker.PendingCentavos)
	}
}

func TestAutoWithdrawDrainsOptedInWallets(t *testing.T) {
	cfg := config.Defaults()
	e := newEnv(t, cfg)
	ctx := context.Background()
	led := ledger.NewService(e.ledg)
	withdrawer := scheduler.NewAutoWithdrawer(e.ledg, led, db.NoTx, cfg, nil)

	optedIn := e.ledg.AddWallet(120000, 0, 0)
	e.ledg.SetAutoWithdraw(optedIn, true)
	belowMin := e.ledg.AddWallet(20000, 0, 0)
	e.ledg.SetAutoWithdraw(belowMin, true)
	e.ledg.AddWallet(300000, 0, 0)

	now := time.Now()
	drained, err := withdrawer.Run(ctx, now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if drained != 1 {
		t.Fatalf("drained = %d", drained)
	}
	if w := e.ledg.Wallet(optedIn); w.BalanceCentavos != 0 || w.LastAutoWithdrawAt == nil {
		t.Fatalf("opted-in wallet = %+v", w)
	}
	if w := e.ledg.Wallet(belowMin); w.BalanceCentavos != 20000 {
		t.Fatalf("below-min wallet drained: %+v", w)
	}
	if rows := e.ledg.RowsByKind(models.TxKindWithdrawal); len(rows) != 1 || rows[0].AmountCentavos != 120000 {
		t.Fatalf("withdrawal rows = %+v", rows)
	}
}

func TestAutoWithdrawReplaySameDay(t *testing.T) {
	cfg := config.Defaults()
	e := newEnv(t, cfg)
	ctx := context.Background()
	led := ledger.NewService(e.ledg)
	withdrawer := scheduler.NewAutoWithdrawer(e.ledg, led, db.NoTx, cfg, nil)

	walletID := e.ledg.AddWallet(120000, 0, 0)
	e.ledg.SetAutoWithdraw(walletID, true)

	now := time.Now()
	if _, err := withdrawer.Run(ctx, now); err != nil {
		t.Fatal(err)
	}
	// Fresh funds arrive the same day; the date-scoped reference replays so
	// the wallet is not debited twice.
	if _, err := led.Credit(ctx, nil, walletID, 80000, models.TxKindDeposit, "DEP-"+uuid.NewString(), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := withdrawer.Run(ctx, now); err != nil {
		t.Fatal(err)
	}
	if w := e.ledg.Wallet(walletID); w.BalanceCentavos != 80000 {
		t.Fatalf("balance = %d", w.BalanceCentavos)
	}
	if rows := e.ledg.RowsByKind(models.TxKindWithdrawal); len(rows) != 1 {
		t.Fatalf("withdrawal rows = %d", len(rows))
	}

	// Next day the reference rotates and the sweep drains again.
	if _, err := withdrawer.Run(ctx, now.Add(24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if w := e.ledg.Wallet(walletID); w.BalanceCentavos != 0 {
		t.Fatalf("next-day balance = %d", w.BalanceCentavos)
	}
}

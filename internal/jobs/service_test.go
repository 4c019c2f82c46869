package jobs_test

import (
	"context"
	"errors"
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
	"github.com/hanapbuhay/backend/internal/team"
	"github.com/hanapbuhay/backend/internal/team/teamtest"
)

type memJobs struct {
	mu sync.Mutex
	m  map[uuid.UUID]*models.Job
}

func newMemJobs() *memJobs {
	return &memJobs{m: make(map[uuid.UUID]*models.Job)}
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

func (s *memJobs) get(id uuid.UUID) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.m[id]
}

type env struct {
	svc       *jobs.Service
	jobStore  *memJobs
	ledg      *ledgertest.Store
	teamStore *teamtest.Store
	escrow    *escrow.Service
	bus       *events.Bus
	published []events.Event
	platform  uuid.UUID
	cfg       config.Platform
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		jobStore:  newMemJobs(),
		ledg:      ledgertest.NewStore(),
		teamStore: teamtest.NewStore(),
		cfg:       config.Defaults(),
	}
	e.platform = e.ledg.AddWallet(0, 0, 0)
	led := ledger.NewService(e.ledg)
	e.escrow = escrow.NewService(led, e.platform, e.cfg)
	e.bus = events.NewBus(nil)
	e.bus.Subscribe("", func(ev events.Event) { e.published = append(e.published, ev) })
	e.svc = jobs.NewService(e.jobStore, db.NoTx, e.ledg, led, e.escrow,
		team.NewService(e.teamStore), e.cfg, e.bus, nil)
	return e
}

// acceptSingle emulates the acceptance flow outcome: escrow charged and the
// worker attached, job ACTIVE.
func (e *env) acceptSingle(t *testing.T, j models.Job, clientWalletID, workerID uuid.UUID) models.Job {
	t.Helper()
	ctx := context.Background()
	if err := e.escrow.Charge(ctx, nil, j.ID, clientWalletID, j.EscrowAmountCentavos, escrow.ChargeRef(j.ID)); err != nil {
		t.Fatalf("charge: %v", err)
	}
	j.EscrowChargedCentavos = j.EscrowAmountCentavos
	j.AssignedWorkerID = &workerID
	j.EscrowPaid = true
	now := time.Now()
	j.EscrowPaidAt = &now
	if err := jobs.Transition(&j, models.JobStatusActive); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := e.jobStore.Update(ctx, nil, &j); err != nil {
		t.Fatal(err)
	}
	return j
}

func projectInput(budget int64) jobs.CreateInput {
	return jobs.CreateInput{
		Title:            "Fix kitchen sink",
		Description:      "Leaking trap under the sink",
		SpecializationID: uuid.New(),
		Location:         "Quezon City",
		BudgetCentavos:   budget,
		PaymentModel:     models.PaymentModelProject,
	}
}

// ---------------------------------------------------------------------------
// Creation and publication
// ---------------------------------------------------------------------------

func TestCreateComputesEscrow(t *testing.T) {
	e := newEnv(t)
	client := uuid.New()

	j, err := e.svc.Create(context.Background(), client, projectInput(150000))
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != models.JobStatusDraft {
		t.Errorf("status: got %s", j.Status)
	}
	if j.EscrowAmountCentavos != 165000 || j.CommissionFeeCentavos != 15000 {
		t.Errorf("economics: escrow=%d fee=%d", j.EscrowAmountCentavos, j.CommissionFeeCentavos)
	}
}

func TestCreateDailyDerivesBudget(t *testing.T) {
	e := newEnv(t)
	in := projectInput(0)
	in.PaymentModel = models.PaymentModelDaily
	in.DailyRateCentavos = 50000
	in.DurationDays = 5

	j, err := e.svc.Create(context.Background(), uuid.New(), in)
	if err != nil {
		t.Fatal(err)
	}
	if j.BudgetCentavos != 250000 {
		t.Errorf("daily budget: got %d, want 250000", j.BudgetCentavos)
	}
	if j.EscrowAmountCentavos != 275000 {
		t.Errorf("daily escrow: got %d, want 275000", j.EscrowAmountCentavos)
	}
}

func TestCreateRejectsSelfInvite(t *testing.T) {
	e := newEnv(t)
	client := uuid.New()
	in := projectInput(100000)
	in.JobType = models.JobTypeInvite
	in.InvitedWorkerID = &client

	_, err := e.svc.Create(context.Background(), client, in)
	if !errors.Is(err, jobs.ErrSelfHire) {
		t.Errorf("got %v, want ErrSelfHire", err)
	}
}

func TestPublishOnlyByOwner(t *testing.T) {
	e := newEnv(t)
	client := uuid.New()
	ctx := context.Background()
	j, err := e.svc.Create(ctx, client, projectInput(100000))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.svc.Publish(ctx, uuid.New(), j.ID); !errors.Is(err, jobs.ErrForbidden) {
		t.Errorf("stranger publish: got %v", err)
	}
	published, err := e.svc.Publish(ctx, client, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if published.Status != models.JobStatusPendingPayment {
		t.Errorf("status: got %s", published.Status)
	}
	// Publishing twice is an illegal transition.
	if _, err := e.svc.Publish(ctx, client, j.ID); !errors.Is(err, jobs.ErrInvalidState) {
		t.Errorf("double publish: got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Transition legality
// ---------------------------------------------------------------------------

func TestTransitionEdges(t *testing.T) {
	j := &models.Job{Status: models.JobStatusDraft}
	if err := jobs.Transition(j, models.JobStatusCompleted); !errors.Is(err, jobs.ErrInvalidState) {
		t.Errorf("draft->completed allowed: %v", err)
	}
	j.Status = models.JobStatusCompleted
	if err := jobs.Transition(j, models.JobStatusDisputed); err != nil {
		t.Errorf("completed->disputed refused: %v", err)
	}
	if err := jobs.Transition(j, models.JobStatusInProgress); err != nil {
		t.Errorf("disputed->in_progress (rework) refused: %v", err)
	}
	j.Status = models.JobStatusCancelled
	if err := jobs.Transition(j, models.JobStatusActive); !errors.Is(err, jobs.ErrInvalidState) {
		t.Errorf("cancelled job resurrected: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Single-worker lifecycle
// ---------------------------------------------------------------------------

func TestSingleWorkerLifecycle(t *testing.T) {
	e := newEnv(t)
	client, worker := uuid.New(), uuid.New()
	clientWallet := e.ledg.AddAccountWallet(client, 500000)
	workerWallet := e.ledg.AddAccountWallet(worker, 0)
	ctx := context.Background()
	initial := e.ledg.TotalFunds()

	j, err := e.svc.Create(ctx, client, projectInput(150000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Publish(ctx, client, j.ID); err != nil {
		t.Fatal(err)
	}
	active := e.acceptSingle(t, e.jobStore.get(j.ID), clientWallet, worker)

	started, err := e.svc.Start(ctx, client, active.ID)
	if err != nil {
		t.Fatal(err)
	}
	if started.Status != models.JobStatusInProgress || started.ClientConfirmedWorkStartedAt == nil {
		t.Fatalf("after start: %+v", started.Status)
	}

	// Only the assigned worker may mark complete.
	if _, err := e.svc.MarkWorkerComplete(ctx, uuid.New(), j.ID); !errors.Is(err, jobs.ErrForbidden) {
		t.Errorf("stranger complete: got %v", err)
	}
	marked, err := e.svc.MarkWorkerComplete(ctx, worker, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if marked.Status != models.JobStatusPendingClientApproval {
		t.Fatalf("after worker complete: %s", marked.Status)
	}

	done, err := e.svc.ApproveCompletion(ctx, client, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != models.JobStatusCompleted {
		t.Errorf("status: %s", done.Status)
	}
	if done.PaymentHeldReason != models.HoldReasonBufferPeriod || done.PaymentReleaseDate == nil {
		t.Errorf("buffer not armed: reason=%s date=%v", done.PaymentHeldReason, done.PaymentReleaseDate)
	}
	wantRelease := time.Now().Add(7 * 24 * time.Hour)
	if d := done.PaymentReleaseDate.Sub(wantRelease); d < -time.Minute || d > time.Minute {
		t.Errorf("release date off: %v", done.PaymentReleaseDate)
	}

	cw := e.ledg.Wallet(clientWallet)
	ww := e.ledg.Wallet(workerWallet)
	pw := e.ledg.Wallet(e.platform)
	if cw.ReservedCentavos != 0 || cw.BalanceCentavos != 335000 {
		t.Errorf("client wallet: %+v", cw)
	}
	if ww.PendingCentavos != 150000 {
		t.Errorf("worker pending: %d", ww.PendingCentavos)
	}
	if pw.BalanceCentavos != 15000 {
		t.Errorf("platform fee: %d", pw.BalanceCentavos)
	}
	if got := e.ledg.TotalFunds(); got != initial {
		t.Errorf("conservation: initial %d, now %d", initial, got)
	}

	var sawStart, sawComplete bool
	for _, ev := range e.published {
		switch ev.Type {
		case events.TypeJobStarted:
			sawStart = true
		case events.TypeJobCompleted:
			sawComplete = true
		}
	}
	if !sawStart || !sawComplete {
		t.Errorf("events: started=%v completed=%v", sawStart, sawComplete)
	}
}

// ---------------------------------------------------------------------------
// Cancellation
// ---------------------------------------------------------------------------

func TestCancelActiveKeepsCommission(t *testing.T) {
	e := newEnv(t)
	client, worker := uuid.New(), uuid.New()
	clientWallet := e.ledg.AddAccountWallet(client, 200000)
	ctx := context.Background()

	j, err := e.svc.Create(ctx, client, projectInput(100000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Publish(ctx, client, j.ID); err != nil {
		t.Fatal(err)
	}
	active := e.acceptSingle(t, e.jobStore.get(j.ID), clientWallet, worker)

	cancelled, err := e.svc.Cancel(ctx, client, active.ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != models.JobStatusCancelled || cancelled.CancelledAt == nil {
		t.Errorf("after cancel: %s", cancelled.Status)
	}
	cw := e.ledg.Wallet(clientWallet)
	// 110000 was escrowed; the 10000 commission stays with the platform.
	if cw.BalanceCentavos != 190000 || cw.ReservedCentavos != 0 {
		t.Errorf("client wallet: %+v", cw)
	}
	if got := e.ledg.Wallet(e.platform).BalanceCentavos; got != 10000 {
		t.Errorf("platform: %d", got)
	}
}

func TestCancelBeforeEscrowIsFree(t *testing.T) {
	e := newEnv(t)
	client := uuid.New()
	ctx := context.Background()

	j, err := e.svc.Create(ctx, client, projectInput(100000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Cancel(ctx, client, j.ID, false); err != nil {
		t.Fatal(err)
	}
	if n := len(e.ledg.Rows()); n != 0 {
		t.Errorf("draft cancel wrote %d ledger rows", n)
	}
}

func TestCancelInProgressRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	client, worker := uuid.New(), uuid.New()
	clientWallet := e.ledg.AddAccountWallet(client, 200000)
	ctx := context.Background()

	j, err := e.svc.Create(ctx, client, projectInput(100000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Publish(ctx, client, j.ID); err != nil {
		t.Fatal(err)
	}
	e.acceptSingle(t, e.jobStore.get(j.ID), clientWallet, worker)
	if _, err := e.svc.Start(ctx, client, j.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := e.svc.Cancel(ctx, client, j.ID, false); !errors.Is(err, jobs.ErrForbidden) {
		t.Fatalf("client cancel in progress: got %v", err)
	}
	if _, err := e.svc.Cancel(ctx, models.AdminAccountID, j.ID, true); err != nil {
		t.Fatal(err)
	}
	// Admin cancellation refunds the whole escrow, commission included.
	if cw := e.ledg.Wallet(clientWallet); cw.BalanceCentavos != 200000 || cw.ReservedCentavos != 0 {
		t.Errorf("client wallet after admin cancel: %+v", cw)
	}
}

// ---------------------------------------------------------------------------
// Team lifecycle
// ---------------------------------------------------------------------------

func TestTeamStartThresholdAndPayout(t *testing.T) {
	e := newEnv(t)
	client := uuid.New()
	w1, w2 := uuid.New(), uuid.New()
	clientWallet := e.ledg.AddAccountWallet(client, 2000000)
	w1Wallet := e.ledg.AddAccountWallet(w1, 0)
	w2Wallet := e.ledg.AddAccountWallet(w2, 0)
	ctx := context.Background()

	in := projectInput(900000)
	in.IsTeamJob = true
	in.BudgetAllocationType = models.AllocEqualPerWorker
	in.TeamStartThreshold = 66
	in.Slots = []*models.JobSkillSlot{
		{SpecializationID: uuid.New(), WorkersNeeded: 2, SkillLevelRequired: models.SkillLevelEntry},
		{SpecializationID: uuid.New(), WorkersNeeded: 1, SkillLevelRequired: models.SkillLevelEntry},
	}
	j, err := e.svc.Create(ctx, client, in)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Publish(ctx, client, j.ID); err != nil {
		t.Fatal(err)
	}

	slots, err := e.teamStore.SlotsByJob(ctx, nil, j.ID)
	if err != nil || len(slots) != 2 {
		t.Fatalf("slots: %v %d", err, len(slots))
	}
	var plumbing, electrical *models.JobSkillSlot
	for _, s := range slots {
		if s.WorkersNeeded == 2 {
			plumbing = s
		} else {
			electrical = s
		}
	}

	// Move the job to ACTIVE the way an acceptance would, then claim
	// positions for two of three workers. Escrow is reserved per accepted
	// share; the unfilled third position reserves nothing.
	tm := team.NewService(e.teamStore)
	active := e.jobStore.get(j.ID)
	if err := jobs.Transition(&active, models.JobStatusActive); err != nil {
		t.Fatal(err)
	}
	a1, err := tm.ClaimPosition(ctx, nil, j.ID, plumbing.ID, w1)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := tm.ClaimPosition(ctx, nil, j.ID, electrical.ID, w2)
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range []*models.JobWorkerAssignment{a1, a2} {
		fee := a.ShareCentavos * active.CommissionFeeCentavos / active.BudgetCentavos
		if err := e.escrow.Charge(ctx, nil, j.ID, clientWallet, a.ShareCentavos+fee, escrow.SlotChargeRef(j.ID, a.ID)); err != nil {
			t.Fatal(err)
		}
		active.EscrowChargedCentavos += a.ShareCentavos + fee
	}
	if err := e.jobStore.Update(ctx, nil, &active); err != nil {
		t.Fatal(err)
	}

	// Arrivals unconfirmed: start refused even past the threshold.
	if _, err := e.svc.Start(ctx, client, j.ID); !errors.Is(err, jobs.ErrNotReady) {
		t.Fatalf("start without arrivals: %v", err)
	}
	if err := e.svc.ConfirmArrival(ctx, client, j.ID, a1.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.svc.ConfirmArrival(ctx, client, j.ID, a2.ID); err != nil {
		t.Fatal(err)
	}
	// Fill is 2/3 = 66 percent, exactly at the threshold.
	if _, err := e.svc.Start(ctx, client, j.ID); err != nil {
		t.Fatalf("start at threshold: %v", err)
	}

	if _, err := e.svc.MarkWorkerComplete(ctx, w1, j.ID); err != nil {
		t.Fatal(err)
	}
	cur := e.jobStore.get(j.ID)
	if cur.Status != models.JobStatusInProgress {
		t.Fatalf("one of two marked, job moved to %s", cur.Status)
	}
	marked, err := e.svc.MarkWorkerComplete(ctx, w2, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if marked.Status != models.JobStatusPendingClientApproval {
		t.Fatalf("all marked, job is %s", marked.Status)
	}

	done, err := e.svc.ApproveCompletion(ctx, client, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != models.JobStatusCompleted {
		t.Fatalf("status: %s", done.Status)
	}
	// Each worker's share is 3000.00 pending. Only the two accepted shares
	// were ever reserved, so the approval consumes the escrow exactly.
	if got := e.ledg.Wallet(w1Wallet).PendingCentavos; got != 300000 {
		t.Errorf("w1 pending: %d", got)
	}
	if got := e.ledg.Wallet(w2Wallet).PendingCentavos; got != 300000 {
		t.Errorf("w2 pending: %d", got)
	}
	cw := e.ledg.Wallet(clientWallet)
	if cw.ReservedCentavos != 0 {
		t.Errorf("client reserved after approval: %d", cw.ReservedCentavos)
	}
	if cw.BalanceCentavos != 2000000-660000 {
		t.Errorf("client balance: %d", cw.BalanceCentavos)
	}
	if got := e.ledg.Wallet(e.platform).BalanceCentavos; got != 60000 {
		t.Errorf("platform fees: %d", got)
	}
	if done.EscrowConsumedCentavos != done.EscrowChargedCentavos {
		t.Errorf("escrow books: charged=%d consumed=%d", done.EscrowChargedCentavos, done.EscrowConsumedCentavos)
	}
}

// Approving a partially filled team job settles against what was actually
// reserved. The client's escrow for other jobs stays untouched.
func TestPartialTeamApprovalLeavesOtherEscrowAlone(t *testing.T) {
	e := newEnv(t)
	client, w1, other := uuid.New(), uuid.New(), uuid.New()
	clientWallet := e.ledg.AddAccountWallet(client, 3000000)
	w1Wallet := e.ledg.AddAccountWallet(w1, 0)
	ctx := context.Background()

	// An unrelated single-worker job holds its own 110000 reservation.
	otherJob, err := e.svc.Create(ctx, client, projectInput(100000))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Publish(ctx, client, otherJob.ID); err != nil {
		t.Fatal(err)
	}
	e.acceptSingle(t, e.jobStore.get(otherJob.ID), clientWallet, other)

	in := projectInput(600000)
	in.IsTeamJob = true
	in.BudgetAllocationType = models.AllocEqualPerWorker
	in.TeamStartThreshold = 50
	in.Slots = []*models.JobSkillSlot{
		{SpecializationID: uuid.New(), WorkersNeeded: 2, SkillLevelRequired: models.SkillLevelEntry},
	}
	j, err := e.svc.Create(ctx, client, in)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Publish(ctx, client, j.ID); err != nil {
		t.Fatal(err)
	}
	slots, err := e.teamStore.SlotsByJob(ctx, nil, j.ID)
	if err != nil || len(slots) != 1 {
		t.Fatalf("slots: %v %d", err, len(slots))
	}

	tm := team.NewService(e.teamStore)
	active := e.jobStore.get(j.ID)
	if err := jobs.Transition(&active, models.JobStatusActive); err != nil {
		t.Fatal(err)
	}
	a1, err := tm.ClaimPosition(ctx, nil, j.ID, slots[0].ID, w1)
	if err != nil {
		t.Fatal(err)
	}
	fee := a1.ShareCentavos * active.CommissionFeeCentavos / active.BudgetCentavos
	if err := e.escrow.Charge(ctx, nil, j.ID, clientWallet, a1.ShareCentavos+fee, escrow.SlotChargeRef(j.ID, a1.ID)); err != nil {
		t.Fatal(err)
	}
	active.EscrowChargedCentavos = a1.ShareCentavos + fee
	if err := e.jobStore.Update(ctx, nil, &active); err != nil {
		t.Fatal(err)
	}

	if err := e.svc.ConfirmArrival(ctx, client, j.ID, a1.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Start(ctx, client, j.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.MarkWorkerComplete(ctx, w1, j.ID); err != nil {
		t.Fatal(err)
	}
	done, err := e.svc.ApproveCompletion(ctx, client, j.ID)
	if err != nil {
		t.Fatalf("approve half-filled team: %v", err)
	}
	if done.Status != models.JobStatusCompleted {
		t.Fatalf("status: %s", done.Status)
	}
	if got := e.ledg.Wallet(w1Wallet).PendingCentavos; got != 300000 {
		t.Errorf("w1 pending: %d", got)
	}
	cw := e.ledg.Wallet(clientWallet)
	// The single job's escrow is still reserved; the team job's is fully
	// consumed rather than clawed from it.
	if cw.ReservedCentavos != 110000 {
		t.Errorf("client reserved: %d", cw.ReservedCentavos)
	}
	if done.EscrowConsumedCentavos != done.EscrowChargedCentavos {
		t.Errorf("escrow books: charged=%d consumed=%d", done.EscrowChargedCentavos, done.EscrowConsumedCentavos)
	}
}

// ---------------------------------------------------------------------------
// Materials
// ---------------------------------------------------------------------------

func TestMaterialsFlowReimbursesWorker(t *testing.T) {
	e := newEnv(t)
	client, worker := uuid.New(), uuid.New()
	clientWallet := e.ledg.AddAccountWallet(client, 500000)
	workerWallet := e.ledg.AddAccountWallet(worker, 0)
	ctx := context.Background()

	in := projectInput(100000)
	in.MaterialsCostCentavos = 25000
	j, err := e.svc.Create(ctx, client, in)
	if err != nil {
		t.Fatal(err)
	}
	if j.MaterialsStatus != models.MaterialsPendingPurchase {
		t.Fatalf("materials status: %s", j.MaterialsStatus)
	}
	if _, err := e.svc.Publish(ctx, client, j.ID); err != nil {
		t.Fatal(err)
	}
	e.acceptSingle(t, e.jobStore.get(j.ID), clientWallet, worker)
	if _, err := e.svc.Start(ctx, client, j.ID); err != nil {
		t.Fatal(err)
	}

	// Worker buys, worker reports purchased, client approves.
	if _, err := e.svc.AdvanceMaterials(ctx, worker, j.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.AdvanceMaterials(ctx, worker, j.ID); err != nil {
		t.Fatal(err)
	}
	// The purchased -> approved step belongs to the client.
	if _, err := e.svc.AdvanceMaterials(ctx, worker, j.ID); !errors.Is(err, jobs.ErrForbidden) {
		t.Fatalf("worker approved own purchase: %v", err)
	}
	approved, err := e.svc.AdvanceMaterials(ctx, client, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if approved.MaterialsStatus != models.MaterialsApproved {
		t.Errorf("materials status: %s", approved.MaterialsStatus)
	}
	if got := e.ledg.Wallet(workerWallet).BalanceCentavos; got != 25000 {
		t.Errorf("worker reimbursement: %d", got)
	}
	reimb := e.ledg.RowsByKind(models.TxKindMaterialsReimbursement)
	if len(reimb) != 1 || reimb[0].AmountCentavos != 25000 {
		t.Errorf("reimbursement rows: %+v", reimb)
	}
}

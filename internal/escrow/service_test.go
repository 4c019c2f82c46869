package escrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hanapbuhay/backend/internal/config"
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/ledger/ledgertest"
	"github.com/hanapbuhay/backend/internal/models"
)

func newFixture(commissionPercent int) (*Service, *ledgertest.Store, uuid.UUID) {
	store := ledgertest.NewStore()
	platform := store.AddWallet(0, 0, 0)
	cfg := config.Defaults()
	cfg.CommissionPercent = commissionPercent
	svc := NewService(ledger.NewService(store), platform, cfg)
	return svc, store, platform
}

// ---------------------------------------------------------------------------
// Cost model
// ---------------------------------------------------------------------------

func TestProjectCost(t *testing.T) {
	svc, _, _ := newFixture(10)
	escrowAmt, fee := svc.ProjectCost(150000)
	if fee != 15000 {
		t.Errorf("commission: got %d, want 15000", fee)
	}
	if escrowAmt != 165000 {
		t.Errorf("escrow: got %d, want 165000", escrowAmt)
	}
}

func TestDailyCost(t *testing.T) {
	svc, _, _ := newFixture(10)
	// 500.00/day x 1 worker x 5 days = 2500.00 + 10%.
	escrowAmt, fee := svc.DailyCost(50000, 1, 5)
	if escrowAmt != 275000 || fee != 25000 {
		t.Errorf("daily escrow: got %d/%d, want 275000/25000", escrowAmt, fee)
	}
}

// ---------------------------------------------------------------------------
// Charge / refund round trip
// ---------------------------------------------------------------------------

func TestChargeThenRefundRestoresBalance(t *testing.T) {
	svc, store, _ := newFixture(10)
	client := store.AddWallet(500000, 0, 0)
	job := uuid.New()
	ctx := context.Background()

	if err := svc.Charge(ctx, nil, job, client, 165000, ChargeRef(job)); err != nil {
		t.Fatalf("Charge: %v", err)
	}
	w := store.Wallet(client)
	if w.BalanceCentavos != 335000 || w.ReservedCentavos != 165000 {
		t.Fatalf("after charge: balance=%d reserved=%d", w.BalanceCentavos, w.ReservedCentavos)
	}

	if err := svc.RefundFull(ctx, nil, job, client, 165000); err != nil {
		t.Fatalf("RefundFull: %v", err)
	}
	w = store.Wallet(client)
	if w.BalanceCentavos != 500000 || w.ReservedCentavos != 0 {
		t.Errorf("refund did not restore balance exactly: balance=%d reserved=%d", w.BalanceCentavos, w.ReservedCentavos)
	}
}

func TestChargeInsufficientFunds(t *testing.T) {
	svc, store, _ := newFixture(10)
	client := store.AddWallet(1000, 0, 0)
	job := uuid.New()

	err := svc.Charge(context.Background(), nil, job, client, 165000, ChargeRef(job))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	if n := len(store.Rows()); n != 0 {
		t.Errorf("failed charge must not write rows, got %d", n)
	}
}

func TestChargeIdempotent(t *testing.T) {
	svc, store, _ := newFixture(10)
	client := store.AddWallet(500000, 0, 0)
	job := uuid.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Charge(ctx, nil, job, client, 165000, ChargeRef(job)); err != nil {
			t.Fatalf("Charge #%d: %v", i+1, err)
		}
	}
	if got := store.Wallet(client).ReservedCentavos; got != 165000 {
		t.Errorf("retried charge reserved %d, want 165000", got)
	}
}

// ---------------------------------------------------------------------------
// Release: commission split & conservation
// ---------------------------------------------------------------------------

func TestReleaseSplitsCommission(t *testing.T) {
	svc, store, platform := newFixture(10)
	client := store.AddWallet(500000, 0, 0)
	worker := store.AddWallet(0, 0, 0)
	job := uuid.New()
	ctx := context.Background()
	initial := store.TotalFunds()

	if err := svc.Charge(ctx, nil, job, client, 165000, ChargeRef(job)); err != nil {
		t.Fatalf("Charge: %v", err)
	}
	pending, err := svc.Release(ctx, nil, Release{
		JobID:          job,
		ClientWalletID: client,
		WorkerWalletID: worker,
		GrossCentavos:  165000,
		FeeCentavos:    15000,
		ReleaseDate:    time.Now().Add(7 * 24 * time.Hour),
		PendingRef:     ReleaseRef(job),
		FeeRef:         FeeRef(job),
	})
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if pending.AmountCentavos != 150000 {
		t.Errorf("worker pending: got %d, want 150000", pending.AmountCentavos)
	}
	if got := store.Wallet(platform).BalanceCentavos; got != 15000 {
		t.Errorf("platform fee: got %d, want 15000", got)
	}
	if got := store.Wallet(client).ReservedCentavos; got != 0 {
		t.Errorf("client reserved after release: got %d, want 0", got)
	}
	if got := store.Wallet(worker).PendingCentavos; got != 150000 {
		t.Errorf("worker pending compartment: got %d, want 150000", got)
	}

	// Conservation: no funds created or destroyed by the release.
	if got := store.TotalFunds(); got != initial {
		t.Errorf("conservation violated: initial %d, now %d", initial, got)
	}

	fees := store.RowsByKind(models.TxKindFee)
	if len(fees) != 1 || fees[0].AmountCentavos != 15000 {
		t.Fatalf("fee rows: got %+v", fees)
	}
}

func TestReleaseZeroCommission(t *testing.T) {
	svc, store, platform := newFixture(0)
	client := store.AddWallet(200000, 0, 0)
	worker := store.AddWallet(0, 0, 0)
	job := uuid.New()
	ctx := context.Background()

	if err := svc.Charge(ctx, nil, job, client, 150000, ChargeRef(job)); err != nil {
		t.Fatalf("Charge: %v", err)
	}
	pending, err := svc.Release(ctx, nil, Release{
		JobID: job, ClientWalletID: client, WorkerWalletID: worker,
		GrossCentavos: 150000, FeeCentavos: 0,
		ReleaseDate: time.Now(), PendingRef: ReleaseRef(job), FeeRef: FeeRef(job),
	})
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	// Zero commission: the full budget reaches the worker, no FEE row.
	if pending.AmountCentavos != 150000 {
		t.Errorf("worker pending: got %d, want 150000", pending.AmountCentavos)
	}
	if got := store.Wallet(platform).BalanceCentavos; got != 0 {
		t.Errorf("platform should receive nothing, got %d", got)
	}
	if n := len(store.RowsByKind(models.TxKindFee)); n != 0 {
		t.Errorf("fee rows: got %d, want 0", n)
	}
}

func TestPartialRefundKeepsEscrowOpen(t *testing.T) {
	svc, store, _ := newFixture(10)
	client := store.AddWallet(500000, 0, 0)
	job := uuid.New()
	dispute := uuid.New()
	ctx := context.Background()

	if err := svc.Charge(ctx, nil, job, client, 165000, ChargeRef(job)); err != nil {
		t.Fatalf("Charge: %v", err)
	}
	if err := svc.RefundPartial(ctx, nil, job, client, 60000, PartialRefundRef(job, dispute)); err != nil {
		t.Fatalf("RefundPartial: %v", err)
	}
	w := store.Wallet(client)
	if w.BalanceCentavos != 395000 || w.ReservedCentavos != 105000 {
		t.Errorf("after partial refund: balance=%d reserved=%d", w.BalanceCentavos, w.ReservedCentavos)
	}
	pays := store.RowsByKind(models.TxKindPayment)
	if len(pays) != 1 || pays[0].Status != models.TxStatusPending {
		t.Errorf("escrow payment must stay PENDING after partial refund, got %+v", pays)
	}
}

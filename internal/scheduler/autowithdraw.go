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
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/models"
)

// WalletSource lists wallets opted into automatic withdrawal.
type WalletSource interface {
	AutoWithdrawCandidates(ctx context.Context, minCentavos int64, limit int) ([]*models.Wallet, error)
	WalletForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*models.Wallet, error)
	TouchAutoWithdraw(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) error
}

// AutoWithdrawer drains opted-in wallets to the owner's payment method once
// the balance clears the platform minimum.
type AutoWithdrawer struct {
	wallets WalletSource
	ledger  *ledger.Service
	runner  db.Runner
	cfg     config.Platform
	log     *slog.Logger
}

func NewAutoWithdrawer(wallets WalletSource, led *ledger.Service, runner db.Runner, cfg config.Platform, log *slog.Logger) *AutoWithdrawer {
	if log == nil {
		log = slog.Default()
	}
	return &AutoWithdrawer{wallets: wallets, ledger: led, runner: runner, cfg: cfg, log: log}
}

// autoWithdrawRef is date-scoped so a wallet withdraws at most once per day
// and a retried sweep replays instead of double-debiting.
func autoWithdrawRef(walletID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("WALLET-%s-AUTOWD-%s", walletID, day.Format("2006-01-02"))
}

// Run performs one pass and returns the number of wallets drained.
func (a *AutoWithdrawer) Run(ctx context.Context, now time.Time) (int, error) {
	candidates, err := a.wallets.AutoWithdrawCandidates(ctx, a.cfg.MinAutoWithdrawCentavos, a.cfg.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("select auto-withdraw wallets: %w", err)
	}
	drained := 0
	for _, candidate := range candidates {
		if err := a.runner.InTx(ctx, func(tx pgx.Tx) error {
			return a.withdraw(ctx, tx, candidate.ID, now)
		}); err != nil {
			a.log.Error("auto-withdraw failed", "wallet_id", candidate.ID, "error", err)
			continue
		}
		drained++
	}
	return drained, nil
}

func (a *AutoWithdrawer) withdraw(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, now time.Time) error {
	w, err := a.wallets.WalletForUpdate(ctx, tx, walletID)
	if err != nil {
		return err
	}
	// Re-check under the lock; a spend since candidate selection may have
	// dropped the balance below the line.
	if !w.AutoWithdrawEnabled || w.BalanceCentavos < a.cfg.MinAutoWithdrawCentavos {
		return nil
	}
	ref := autoWithdrawRef(w.ID, now)
	if _, err := a.ledger.Debit(ctx, tx, w.ID, w.BalanceCentavos, models.TxKindWithdrawal, ref, nil); err != nil {
		return err
	}
	return a.wallets.TouchAutoWithdraw(ctx, tx, w.ID)
}

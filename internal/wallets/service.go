package wallets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/db"
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/models"
)

var (
	ErrBadAmount      = errors.New("amount must be positive")
	ErrMethodRequired = errors.New("payment method required")
)

// Directory is the wallet lookup and preference surface backed by the ledger
// repository.
type Directory interface {
	WalletByAccount(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error)
	CreateWallet(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, kind string, limit int) ([]*models.Transaction, error)
	SetAutoWithdrawPrefs(ctx context.Context, walletID uuid.UUID, enabled bool, method string) error
}

// Service is the account-facing wallet surface: deposits, withdrawals,
// balances and history. All money movement goes through the ledger so the
// idempotency and compartment rules hold here too.
type Service struct {
	dir    Directory
	ledger *ledger.Service
	runner db.Runner
	log    *slog.Logger
}

func NewService(dir Directory, led *ledger.Service, runner db.Runner, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{dir: dir, ledger: led, runner: runner, log: log}
}

// Deposit credits the account's wallet from an external payment method.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, amount int64, method string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrBadAmount
	}
	if method == "" {
		return nil, ErrMethodRequired
	}
	w, err := s.dir.WalletByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ref := fmt.Sprintf("WALLET-%s-DEP-%s", w.ID, uuid.New())
	var row *models.Transaction
	err = s.runner.InTx(ctx, func(tx pgx.Tx) error {
		row, err = s.ledger.Credit(ctx, tx, w.ID, amount, models.TxKindDeposit, ref, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("deposit", "account_id", accountID, "amount_centavos", amount, "method", method)
	return row, nil
}

// Withdraw debits available balance out to the account's payment method.
// Reserved and pending funds are not withdrawable.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64, method string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrBadAmount
	}
	w, err := s.dir.WalletByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = w.PreferredPaymentMethod
	}
	if method == "" {
		return nil, ErrMethodRequired
	}
	ref := fmt.Sprintf("WALLET-%s-WD-%s", w.ID, uuid.New())
	var row *models.Transaction
	err = s.runner.InTx(ctx, func(tx pgx.Tx) error {
		row, err = s.ledger.Debit(ctx, tx, w.ID, amount, models.TxKindWithdrawal, ref, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("withdraw", "account_id", accountID, "amount_centavos", amount, "method", method)
	return row, nil
}

// Balance returns the account's wallet with its three compartments.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	return s.dir.WalletByAccount(ctx, accountID)
}

// History pages the wallet's transaction rows, optionally narrowed by kind.
func (s *Service) History(ctx context.Context, accountID uuid.UUID, kind string, limit int) ([]*models.Transaction, error) {
	w, err := s.dir.WalletByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.dir.ListTransactions(ctx, w.ID, kind, limit)
}

// SetAutoWithdraw updates the wallet's auto-withdraw opt-in. Enabling
// requires a payment method for the sweep to pay out to.
func (s *Service) SetAutoWithdraw(ctx context.Context, accountID uuid.UUID, enabled bool, method string) (*models.Wallet, error) {
	w, err := s.dir.WalletByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = w.PreferredPaymentMethod
	}
	if enabled && method == "" {
		return nil, ErrMethodRequired
	}
	if err := s.dir.SetAutoWithdrawPrefs(ctx, w.ID, enabled, method); err != nil {
		return nil, err
	}
	w.AutoWithdrawEnabled = enabled
	w.PreferredPaymentMethod = method
	return w, nil
}

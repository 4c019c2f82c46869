package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/models"
)

var (
	// ErrInsufficientFunds is returned when balance < amount for a debit or reserve.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientReserved is returned when reserved < amount for consume/release.
	ErrInsufficientReserved = errors.New("insufficient reserved balance")
	// ErrInsufficientPending is returned when pending < amount for a promotion.
	ErrInsufficientPending = errors.New("insufficient pending earnings")
	// ErrInvalidKind is returned when a transaction kind is not valid for the operation.
	ErrInvalidKind = errors.New("invalid transaction kind for operation")
	// ErrNonPositiveAmount is returned when a money movement is zero or negative.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// Store is the persistence interface the ledger service drives. The pgx
// implementation locks wallet rows with FOR UPDATE; test doubles serialize
// with a mutex and ignore the tx argument.
type Store interface {
	WalletForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*models.Wallet, error)
	SaveBalances(ctx context.Context, tx pgx.Tx, w *models.Wallet) error
	InsertTransaction(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	TransactionByReference(ctx context.Context, tx pgx.Tx, ref string) (*models.Transaction, error)
	EscrowPaymentRow(ctx context.Context, tx pgx.Tx, walletID, jobID uuid.UUID) (*models.Transaction, error)
	PendingEarningRows(ctx context.Context, tx pgx.Tx, walletID, jobID uuid.UUID) ([]*models.Transaction, error)
	SetTransactionStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, completedAt *time.Time) error
}

// Service exposes the wallet operations. Every operation runs inside the
// caller's transaction, mutates exactly one compartment pair, and writes (or
// flips) exactly one ledger row. Re-posting a reference number is a no-op
// that returns the original row.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

var creditKinds = map[string]bool{
	models.TxKindDeposit:                true,
	models.TxKindEarning:                true,
	models.TxKindRefund:                 true,
	models.TxKindMaterialsReimbursement: true,
}

var debitKinds = map[string]bool{
	models.TxKindWithdrawal: true,
	models.TxKindPayment:    true,
	models.TxKindFee:        true,
}

// Credit adds amount to the wallet balance.
func (s *Service) Credit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, kind, ref string, jobID *uuid.UUID) (*models.Transaction, error) {
	if !creditKinds[kind] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if existing, err := s.replay(ctx, tx, ref); existing != nil || err != nil {
		return existing, err
	}
	w, err := s.store.WalletForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	w.BalanceCentavos += amount
	if err := s.store.SaveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	return s.insertCompleted(ctx, tx, w, amount, kind, ref, jobID)
}

// Debit removes amount from the wallet balance.
func (s *Service) Debit(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, kind, ref string, jobID *uuid.UUID) (*models.Transaction, error) {
	if !debitKinds[kind] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, kind)
	}
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if existing, err := s.replay(ctx, tx, ref); existing != nil || err != nil {
		return existing, err
	}
	w, err := s.store.WalletForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if w.BalanceCentavos < amount {
		return nil, ErrInsufficientFunds
	}
	w.BalanceCentavos -= amount
	if err := s.store.SaveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	return s.insertCompleted(ctx, tx, w, amount, kind, ref, jobID)
}

// Reserve moves amount from balance into the reserved compartment for an
// escrow charge. The ledger row is a PENDING payment that completes when the
// escrow is consumed (release to worker) or cancels on full refund.
func (s *Service) Reserve(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, jobID uuid.UUID, ref string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if existing, err := s.replay(ctx, tx, ref); existing != nil || err != nil {
		return existing, err
	}
	w, err := s.store.WalletForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if w.BalanceCentavos < amount {
		return nil, ErrInsufficientFunds
	}
	w.BalanceCentavos -= amount
	w.ReservedCentavos += amount
	if err := s.store.SaveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	t := &models.Transaction{
		ID:                   uuid.New(),
		WalletID:             w.ID,
		Kind:                 models.TxKindPayment,
		AmountCentavos:       amount,
		BalanceAfterCentavos: w.BalanceCentavos,
		Status:               models.TxStatusPending,
		ReferenceNumber:      ref,
		RelatedJobID:         &jobID,
	}
	if err := s.store.InsertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ConsumeReserved removes amount from the reserved compartment without
// returning it to balance (escrow flowing out to the worker side). When the
// wallet's escrow payment row for the job is still pending it is flipped to
// COMPLETED, so the job's payment appears exactly once in the ledger.
func (s *Service) ConsumeReserved(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, jobID uuid.UUID) error {
	w, err := s.store.WalletForUpdate(ctx, tx, walletID)
	if err != nil {
		return err
	}
	if w.ReservedCentavos < amount {
		return ErrInsufficientReserved
	}
	w.ReservedCentavos -= amount
	if err := s.store.SaveBalances(ctx, tx, w); err != nil {
		return err
	}
	row, err := s.store.EscrowPaymentRow(ctx, tx, walletID, jobID)
	if err != nil {
		return err
	}
	if row != nil && row.Status == models.TxStatusPending {
		now := time.Now().UTC()
		if err := s.store.SetTransactionStatus(ctx, tx, row.ID, models.TxStatusCompleted, &now); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseReserved returns amount from the reserved compartment to balance
// (refund path). closeEscrow cancels the pending escrow payment row; pass it
// on full refunds so the job's payment is recorded as cancelled, not paid.
func (s *Service) ReleaseReserved(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, jobID uuid.UUID, ref string, closeEscrow bool) (*models.Transaction, error) {
	if existing, err := s.replay(ctx, tx, ref); existing != nil || err != nil {
		return existing, err
	}
	w, err := s.store.WalletForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if w.ReservedCentavos < amount {
		return nil, ErrInsufficientReserved
	}
	w.ReservedCentavos -= amount
	w.BalanceCentavos += amount
	if err := s.store.SaveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	if closeEscrow {
		row, err := s.store.EscrowPaymentRow(ctx, tx, walletID, jobID)
		if err != nil {
			return nil, err
		}
		if row != nil && row.Status == models.TxStatusPending {
			if err := s.store.SetTransactionStatus(ctx, tx, row.ID, models.TxStatusCancelled, nil); err != nil {
				return nil, err
			}
		}
	}
	return s.insertCompleted(ctx, tx, w, amount, models.TxKindRefund, ref, &jobID)
}

// CollectFee credits a commission into the platform wallet balance and
// records it as a FEE row. Fees are the only credit recorded under a debit
// kind: the row documents what was withheld from the job's payout.
func (s *Service) CollectFee(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, ref string, jobID *uuid.UUID) (*models.Transaction, error) {
	if existing, err := s.replay(ctx, tx, ref); existing != nil || err != nil {
		return existing, err
	}
	w, err := s.store.WalletForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	w.BalanceCentavos += amount
	if err := s.store.SaveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	return s.insertCompleted(ctx, tx, w, amount, models.TxKindFee, ref, jobID)
}

// AddPending credits the pending-earnings compartment with a release date.
func (s *Service) AddPending(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount int64, jobID uuid.UUID, releaseDate time.Time, ref string) (*models.Transaction, error) {
	if existing, err := s.replay(ctx, tx, ref); existing != nil || err != nil {
		return existing, err
	}
	w, err := s.store.WalletForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	w.PendingCentavos += amount
	if err := s.store.SaveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	t := &models.Transaction{
		ID:                   uuid.New(),
		WalletID:             w.ID,
		Kind:                 models.TxKindPendingEarning,
		AmountCentavos:       amount,
		BalanceAfterCentavos: w.BalanceCentavos,
		Status:               models.TxStatusPending,
		ReferenceNumber:      ref,
		RelatedJobID:         &jobID,
		ReleaseDate:          &releaseDate,
	}
	if err := s.store.InsertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// PromotePending moves one pending earning into balance: flips the original
// PENDING_EARNING row to COMPLETED and writes the paired EARNING row. Calling
// it again for an already-promoted row is a no-op returning the earning row.
func (s *Service) PromotePending(ctx context.Context, tx pgx.Tx, pending *models.Transaction) (*models.Transaction, error) {
	if pending.Kind != models.TxKindPendingEarning {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKind, pending.Kind)
	}
	earnRef := pending.ReferenceNumber + "-EARN"
	if pending.Status != models.TxStatusPending {
		return s.store.TransactionByReference(ctx, tx, earnRef)
	}
	w, err := s.store.WalletForUpdate(ctx, tx, pending.WalletID)
	if err != nil {
		return nil, err
	}
	if w.PendingCentavos < pending.AmountCentavos {
		return nil, ErrInsufficientPending
	}
	w.PendingCentavos -= pending.AmountCentavos
	w.BalanceCentavos += pending.AmountCentavos
	if err := s.store.SaveBalances(ctx, tx, w); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.store.SetTransactionStatus(ctx, tx, pending.ID, models.TxStatusCompleted, &now); err != nil {
		return nil, err
	}
	return s.insertCompleted(ctx, tx, w, pending.AmountCentavos, models.TxKindEarning, earnRef, pending.RelatedJobID)
}

// CancelPending removes a pending earning without paying it out (dispute
// refund path). The original row flips to CANCELLED.
func (s *Service) CancelPending(ctx context.Context, tx pgx.Tx, pending *models.Transaction) error {
	if pending.Kind != models.TxKindPendingEarning {
		return fmt.Errorf("%w: %s", ErrInvalidKind, pending.Kind)
	}
	if pending.Status != models.TxStatusPending {
		return nil
	}
	w, err := s.store.WalletForUpdate(ctx, tx, pending.WalletID)
	if err != nil {
		return err
	}
	if w.PendingCentavos < pending.AmountCentavos {
		return ErrInsufficientPending
	}
	w.PendingCentavos -= pending.AmountCentavos
	if err := s.store.SaveBalances(ctx, tx, w); err != nil {
		return err
	}
	return s.store.SetTransactionStatus(ctx, tx, pending.ID, models.TxStatusCancelled, nil)
}

// PendingEarnings lists the wallet's pending-earning rows for a job.
func (s *Service) PendingEarnings(ctx context.Context, tx pgx.Tx, walletID, jobID uuid.UUID) ([]*models.Transaction, error) {
	return s.store.PendingEarningRows(ctx, tx, walletID, jobID)
}

// LockWallets acquires the row locks for all given wallets in ascending id
// order so two-wallet transfers cannot deadlock.
func (s *Service) LockWallets(ctx context.Context, tx pgx.Tx, walletIDs ...uuid.UUID) error {
	ids := append([]uuid.UUID{}, walletIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := s.store.WalletForUpdate(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

// replay returns the original row for a reference that was already posted.
// Duplicate references within a wallet are serialized by the wallet row lock.
func (s *Service) replay(ctx context.Context, tx pgx.Tx, ref string) (*models.Transaction, error) {
	return s.store.TransactionByReference(ctx, tx, ref)
}

func (s *Service) insertCompleted(ctx context.Context, tx pgx.Tx, w *models.Wallet, amount int64, kind, ref string, jobID *uuid.UUID) (*models.Transaction, error) {
	now := time.Now().UTC()
	t := &models.Transaction{
		ID:                   uuid.New(),
		WalletID:             w.ID,
		Kind:                 kind,
		AmountCentavos:       amount,
		BalanceAfterCentavos: w.BalanceCentavos,
		Status:               models.TxStatusCompleted,
		ReferenceNumber:      ref,
		RelatedJobID:         jobID,
		CompletedAt:          &now,
	}
	if err := s.store.InsertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

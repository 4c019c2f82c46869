// Package ledgertest provides an in-memory ledger.Store so services layered
// on the ledger can be unit-tested without a database. The tx argument is
// ignored; a single mutex stands in for row locks.
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/models"
)

type Store struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
	rows    []*models.Transaction
}

func NewStore(wallets ...*models.Wallet) *Store {
	s := &Store{wallets: make(map[uuid.UUID]*models.Wallet)}
	for _, w := range wallets {
		cp := *w
		s.wallets[w.ID] = &cp
	}
	return s
}

// AddWallet creates a wallet seeded with the given compartments and returns its id.
func (s *Store) AddWallet(balance, reserved, pending int64) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &models.Wallet{
		ID:               uuid.New(),
		AccountID:        uuid.New(),
		BalanceCentavos:  balance,
		ReservedCentavos: reserved,
		PendingCentavos:  pending,
	}
	s.wallets[w.ID] = w
	return w.ID
}

// AddAccountWallet creates a wallet owned by the given account and returns
// its id.
func (s *Store) AddAccountWallet(accountID uuid.UUID, balance int64) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &models.Wallet{
		ID:              uuid.New(),
		AccountID:       accountID,
		BalanceCentavos: balance,
	}
	s.wallets[w.ID] = w
	return w.ID
}

// WalletByAccount implements the wallet directory interface services resolve
// parties through.
func (s *Store) WalletByAccount(_ context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wallets {
		if w.AccountID == accountID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no wallet for account %s", accountID)
}

func (s *Store) WalletForUpdate(_ context.Context, _ pgx.Tx, walletID uuid.UUID) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("wallet %s not found", walletID)
	}
	cp := *w
	return &cp, nil
}

func (s *Store) SaveBalances(_ context.Context, _ pgx.Tx, w *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.wallets[w.ID]
	if !ok {
		return fmt.Errorf("wallet %s not found", w.ID)
	}
	stored.BalanceCentavos = w.BalanceCentavos
	stored.ReservedCentavos = w.ReservedCentavos
	stored.PendingCentavos = w.PendingCentavos
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, _ pgx.Tx, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rows {
		if existing.ReferenceNumber == t.ReferenceNumber {
			return fmt.Errorf("duplicate reference %s", t.ReferenceNumber)
		}
	}
	cp := *t
	cp.CreatedAt = time.Now().UTC()
	s.rows = append(s.rows, &cp)
	return nil
}

func (s *Store) TransactionByReference(_ context.Context, _ pgx.Tx, ref string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.rows {
		if t.ReferenceNumber == ref {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) EscrowPaymentRow(_ context.Context, _ pgx.Tx, walletID, jobID uuid.UUID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.rows) - 1; i >= 0; i-- {
		t := s.rows[i]
		if t.WalletID == walletID && t.Kind == models.TxKindPayment && t.RelatedJobID != nil && *t.RelatedJobID == jobID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) PendingEarningRows(_ context.Context, _ pgx.Tx, walletID, jobID uuid.UUID) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Transaction
	for _, t := range s.rows {
		if t.WalletID == walletID && t.Kind == models.TxKindPendingEarning && t.RelatedJobID != nil && *t.RelatedJobID == jobID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) SetTransactionStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, status string, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.rows {
		if t.ID == id {
			t.Status = status
			if completedAt != nil {
				t.CompletedAt = completedAt
			}
			return nil
		}
	}
	return fmt.Errorf("transaction %s not found", id)
}

// CreateWallet provisions a zero-balance wallet for the account.
func (s *Store) CreateWallet(_ context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &models.Wallet{ID: uuid.New(), AccountID: accountID, CreatedAt: time.Now().UTC()}
	s.wallets[w.ID] = w
	cp := *w
	return &cp, nil
}

// ListTransactions mirrors the repository's newest-first paged read.
func (s *Store) ListTransactions(_ context.Context, walletID uuid.UUID, kind string, limit int) ([]*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*models.Transaction
	for i := len(s.rows) - 1; i >= 0 && len(out) < limit; i-- {
		t := s.rows[i]
		if t.WalletID != walletID || (kind != "" && t.Kind != kind) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) SetAutoWithdrawPrefs(_ context.Context, walletID uuid.UUID, enabled bool, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet %s not found", walletID)
	}
	w.AutoWithdrawEnabled = enabled
	w.PreferredPaymentMethod = method
	return nil
}

// SetAutoWithdraw flags the wallet for the auto-withdraw sweep.
func (s *Store) SetAutoWithdraw(walletID uuid.UUID, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[walletID].AutoWithdrawEnabled = enabled
}

// AutoWithdrawCandidates mirrors the repository query the sweep drives.
func (s *Store) AutoWithdrawCandidates(_ context.Context, minCentavos int64, limit int) ([]*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Wallet
	for _, w := range s.wallets {
		if !w.AutoWithdrawEnabled || w.BalanceCentavos < minCentavos {
			continue
		}
		cp := *w
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) TouchAutoWithdraw(_ context.Context, _ pgx.Tx, walletID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.wallets[walletID].LastAutoWithdrawAt = &now
	return nil
}

// --- assertion helpers ---

// Wallet returns a copy of the stored wallet.
func (s *Store) Wallet(id uuid.UUID) models.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.wallets[id]
}

// Rows returns a copy of every ledger row in insertion order.
func (s *Store) Rows() []*models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Transaction, len(s.rows))
	for i, t := range s.rows {
		cp := *t
		out[i] = &cp
	}
	return out
}

// RowsByKind filters the ledger by transaction kind.
func (s *Store) RowsByKind(kind string) []*models.Transaction {
	var out []*models.Transaction
	for _, t := range s.Rows() {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// TotalFunds sums every compartment of every wallet (conservation checks).
func (s *Store) TotalFunds() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, w := range s.wallets {
		sum += w.BalanceCentavos + w.ReservedCentavos + w.PendingCentavos
	}
	return sum
}

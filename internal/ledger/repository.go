package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hanapbuhay/backend/internal/models"
)

const walletColumns = `id, account_id, balance_centavos, reserved_centavos, pending_centavos,
	auto_withdraw_enabled, preferred_payment_method, last_auto_withdraw_at, created_at, updated_at`

const txColumns = `id, wallet_id, kind, amount_centavos, balance_after_centavos, status,
	reference_number, related_job_id, release_date, completed_at, created_at`

// Repository is the pgx-backed ledger store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// WalletForUpdate locks the wallet row for the remainder of the transaction.
func (r *Repository) WalletForUpdate(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*models.Wallet, error) {
	row := tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
	return scanWallet(row)
}

func (r *Repository) SaveBalances(ctx context.Context, tx pgx.Tx, w *models.Wallet) error {
	_, err := tx.Exec(ctx, `
		UPDATE wallets
		SET balance_centavos = $2, reserved_centavos = $3, pending_centavos = $4, updated_at = now()
		WHERE id = $1
	`, w.ID, w.BalanceCentavos, w.ReservedCentavos, w.PendingCentavos)
	return err
}

func (r *Repository) InsertTransaction(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, wallet_id, kind, amount_centavos, balance_after_centavos, status,
			reference_number, related_job_id, release_date, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, t.ID, t.WalletID, t.Kind, t.AmountCentavos, t.BalanceAfterCentavos, t.Status,
		t.ReferenceNumber, t.RelatedJobID, t.ReleaseDate, t.CompletedAt).Scan(&t.CreatedAt)
}

// TransactionByReference returns the row for a reference number, or nil when
// the reference has not been posted.
func (r *Repository) TransactionByReference(ctx context.Context, tx pgx.Tx, ref string) (*models.Transaction, error) {
	row := tx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE reference_number = $1`, ref)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// EscrowPaymentRow returns the wallet's escrow payment row for a job
// (the PAYMENT written by Reserve), or nil if none exists.
func (r *Repository) EscrowPaymentRow(ctx context.Context, tx pgx.Tx, walletID, jobID uuid.UUID) (*models.Transaction, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE wallet_id = $1 AND related_job_id = $2 AND kind = 'PAYMENT'
		ORDER BY created_at DESC LIMIT 1
	`, walletID, jobID)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *Repository) PendingEarningRows(ctx context.Context, tx pgx.Tx, walletID, jobID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE wallet_id = $1 AND related_job_id = $2 AND kind = 'PENDING_EARNING'
		ORDER BY created_at ASC
	`, walletID, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *Repository) SetTransactionStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, completedAt *time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE transactions SET status = $2, completed_at = COALESCE($3, completed_at) WHERE id = $1
	`, id, status, completedAt)
	return err
}

// --- pool-scoped reads used outside wallet transactions ---

func (r *Repository) WalletByAccount(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE account_id = $1`, accountID)
	return scanWallet(row)
}

func (r *Repository) WalletByID(ctx context.Context, walletID uuid.UUID) (*models.Wallet, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// CreateWallet provisions the account's wallet; one per account.
func (r *Repository) CreateWallet(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO wallets (id, account_id)
		VALUES ($1, $2)
		RETURNING `+walletColumns, uuid.New(), accountID)
	return scanWallet(row)
}

// ListTransactions pages the wallet's ledger, newest first. kind narrows the
// listing when non-empty.
func (r *Repository) ListTransactions(ctx context.Context, walletID uuid.UUID, kind string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+txColumns+` FROM transactions
		WHERE wallet_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC LIMIT $3
	`, walletID, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// AutoWithdrawCandidates returns wallets with auto-withdraw enabled and a
// balance at or above the platform minimum.
func (r *Repository) AutoWithdrawCandidates(ctx context.Context, minCentavos int64, limit int) ([]*models.Wallet, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+walletColumns+` FROM wallets
		WHERE auto_withdraw_enabled AND balance_centavos >= $1
		ORDER BY COALESCE(last_auto_withdraw_at, 'epoch'::timestamptz) ASC
		LIMIT $2
	`, minCentavos, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

func (r *Repository) TouchAutoWithdraw(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) error {
	_, err := tx.Exec(ctx, `UPDATE wallets SET last_auto_withdraw_at = now(), updated_at = now() WHERE id = $1`, walletID)
	return err
}

func (r *Repository) SetAutoWithdrawPrefs(ctx context.Context, walletID uuid.UUID, enabled bool, method string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE wallets SET auto_withdraw_enabled = $2, preferred_payment_method = $3, updated_at = now()
		WHERE id = $1
	`, walletID, enabled, method)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.AccountID, &w.BalanceCentavos, &w.ReservedCentavos, &w.PendingCentavos,
		&w.AutoWithdrawEnabled, &w.PreferredPaymentMethod, &w.LastAutoWithdrawAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.WalletID, &t.Kind, &t.AmountCentavos, &t.BalanceAfterCentavos, &t.Status,
		&t.ReferenceNumber, &t.RelatedJobID, &t.ReleaseDate, &t.CompletedAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	var list []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

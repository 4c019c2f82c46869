package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds.
const (
	TxKindDeposit                = "DEPOSIT"
	TxKindWithdrawal             = "WITHDRAWAL"
	TxKindPayment                = "PAYMENT"
	TxKindRefund                 = "REFUND"
	TxKindEarning                = "EARNING"
	TxKindPendingEarning         = "PENDING_EARNING"
	TxKindFee                    = "FEE"
	TxKindMaterialsReimbursement = "MATERIALS_REIMBURSEMENT"
)

// Transaction statuses.
const (
	TxStatusPending   = "PENDING"
	TxStatusCompleted = "COMPLETED"
	TxStatusFailed    = "FAILED"
	TxStatusCancelled = "CANCELLED"
)

// Wallet holds one account's funds split into three compartments:
// balance (spendable/withdrawable), reserved (committed to active escrows),
// and pending (earned, still inside the payment buffer). All three are
// non-negative at all times.
type Wallet struct {
	ID                     uuid.UUID  `json:"id"`
	AccountID              uuid.UUID  `json:"account_id"`
	BalanceCentavos        int64      `json:"balance_centavos"`
	ReservedCentavos       int64      `json:"reserved_centavos"`
	PendingCentavos        int64      `json:"pending_centavos"`
	AutoWithdrawEnabled    bool       `json:"auto_withdraw_enabled"`
	PreferredPaymentMethod string     `json:"preferred_payment_method"`
	LastAutoWithdrawAt     *time.Time `json:"last_auto_withdraw_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Transaction is an immutable, append-only ledger row. Every wallet mutation
// writes exactly one row; BalanceAfterCentavos snapshots wallet.balance as of
// the commit that wrote the row.
type Transaction struct {
	ID                   uuid.UUID  `json:"id"`
	WalletID             uuid.UUID  `json:"wallet_id"`
	Kind                 string     `json:"kind"`
	AmountCentavos       int64      `json:"amount_centavos"`
	BalanceAfterCentavos int64      `json:"balance_after_centavos"`
	Status               string     `json:"status"`
	ReferenceNumber      string     `json:"reference_number"`
	RelatedJobID         *uuid.UUID `json:"related_job_id,omitempty"`
	ReleaseDate          *time.Time `json:"release_date,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

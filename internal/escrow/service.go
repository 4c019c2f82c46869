package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hanapbuhay/backend/internal/config"
	"github.com/hanapbuhay/backend/internal/ledger"
	"github.com/hanapbuhay/backend/internal/models"
)

// Service segregates client funds per job until a release or refund event.
// All methods run inside the caller's transaction; the caller owns the job
// row lock and the commit.
type Service struct {
	ledger           *ledger.Service
	platformWalletID uuid.UUID
	cfg              config.Platform
}

func NewService(l *ledger.Service, platformWalletID uuid.UUID, cfg config.Platform) *Service {
	return &Service{ledger: l, platformWalletID: platformWalletID, cfg: cfg}
}

// ProjectCost returns (escrow, commission) for a PROJECT job.
func (s *Service) ProjectCost(budgetCentavos int64) (int64, int64) {
	commission := s.cfg.CommissionFor(budgetCentavos)
	return budgetCentavos + commission, commission
}

// DailyCost returns (escrow, commission) for a DAILY job over its duration.
func (s *Service) DailyCost(dailyRateCentavos int64, workerCount, days int) (int64, int64) {
	gross := dailyRateCentavos * int64(workerCount) * int64(days)
	commission := s.cfg.CommissionFor(gross)
	return gross + commission, commission
}

// Charge reserves the escrow amount on the client wallet. Idempotent per ref.
func (s *Service) Charge(ctx context.Context, tx pgx.Tx, jobID, clientWalletID uuid.UUID, amount int64, ref string) error {
	if _, err := s.ledger.Reserve(ctx, tx, clientWalletID, amount, jobID, ref); err != nil {
		return fmt.Errorf("escrow charge: %w", err)
	}
	return nil
}

// RefundFull returns the whole escrow to the client (cancellation before any
// release). The escrow payment row is cancelled.
func (s *Service) RefundFull(ctx context.Context, tx pgx.Tx, jobID, clientWalletID uuid.UUID, amount int64) error {
	if _, err := s.ledger.ReleaseReserved(ctx, tx, clientWalletID, amount, jobID, RefundRef(jobID), true); err != nil {
		return fmt.Errorf("escrow refund: %w", err)
	}
	return nil
}

// RefundPartial returns part of the escrow to the client (approved backjob).
// The payment row stays open; remaining reserved funds belong to the job.
func (s *Service) RefundPartial(ctx context.Context, tx pgx.Tx, jobID, clientWalletID uuid.UUID, amount int64, ref string) error {
	if _, err := s.ledger.ReleaseReserved(ctx, tx, clientWalletID, amount, jobID, ref, false); err != nil {
		return fmt.Errorf("escrow partial refund: %w", err)
	}
	return nil
}

// RefundMinusCommission returns the escrow to the client minus the platform
// commission, which the platform keeps (cancellation after assignment but
// before work started). The escrow payment row is cancelled.
func (s *Service) RefundMinusCommission(ctx context.Context, tx pgx.Tx, jobID, clientWalletID uuid.UUID, escrowCentavos, commissionCentavos int64) error {
	if err := s.ledger.LockWallets(ctx, tx, clientWalletID, s.platformWalletID); err != nil {
		return fmt.Errorf("escrow cancel lock: %w", err)
	}
	if _, err := s.ledger.ReleaseReserved(ctx, tx, clientWalletID, escrowCentavos-commissionCentavos, jobID, RefundRef(jobID), true); err != nil {
		return fmt.Errorf("escrow cancel refund: %w", err)
	}
	if commissionCentavos <= 0 {
		return nil
	}
	if err := s.ledger.ConsumeReserved(ctx, tx, clientWalletID, commissionCentavos, jobID); err != nil {
		return fmt.Errorf("escrow cancel consume: %w", err)
	}
	if _, err := s.ledger.CollectFee(ctx, tx, s.platformWalletID, commissionCentavos, FeeRef(jobID), &jobID); err != nil {
		return fmt.Errorf("escrow cancel fee: %w", err)
	}
	return nil
}

// RefundReleased claws back funds that already flowed out of escrow (approved
// backjob after client sign-off). The given pending earnings are cancelled up
// to netCentavos, the commission on that portion comes back off the platform
// wallet, and the client is credited net plus commission. A pending row larger
// than the remainder is cancelled and re-added for the surviving amount.
// Returns the total credited to the client.
func (s *Service) RefundReleased(ctx context.Context, tx pgx.Tx, jobID, disputeID, clientWalletID uuid.UUID, netCentavos int64, pendings []*models.Transaction) (int64, error) {
	ids := []uuid.UUID{clientWalletID, s.platformWalletID}
	for _, p := range pendings {
		ids = append(ids, p.WalletID)
	}
	if err := s.ledger.LockWallets(ctx, tx, ids...); err != nil {
		return 0, fmt.Errorf("dispute refund lock: %w", err)
	}
	remaining := netCentavos
	for _, p := range pendings {
		if remaining <= 0 {
			break
		}
		if err := s.ledger.CancelPending(ctx, tx, p); err != nil {
			return 0, fmt.Errorf("dispute refund cancel pending: %w", err)
		}
		if p.AmountCentavos > remaining {
			keep := p.AmountCentavos - remaining
			date := time.Now()
			if p.ReleaseDate != nil {
				date = *p.ReleaseDate
			}
			if _, err := s.ledger.AddPending(ctx, tx, p.WalletID, keep, jobID, date, p.ReferenceNumber+"-ADJ"); err != nil {
				return 0, fmt.Errorf("dispute refund re-add pending: %w", err)
			}
			remaining = 0
		} else {
			remaining -= p.AmountCentavos
		}
	}
	if remaining > 0 {
		return 0, fmt.Errorf("dispute refund: pending earnings short by %d", remaining)
	}
	feeBack := s.cfg.CommissionFor(netCentavos)
	if feeBack > 0 {
		if _, err := s.ledger.Debit(ctx, tx, s.platformWalletID, feeBack, models.TxKindFee, DisputeFeeRef(jobID, disputeID), &jobID); err != nil {
			return 0, fmt.Errorf("dispute refund fee: %w", err)
		}
	}
	total := netCentavos + feeBack
	if _, err := s.ledger.Credit(ctx, tx, clientWalletID, total, models.TxKindRefund, PartialRefundRef(jobID, disputeID), &jobID); err != nil {
		return 0, fmt.Errorf("dispute refund credit: %w", err)
	}
	return total, nil
}

// Release moves one payout out of the client's reservation: the commission
// lands on the platform wallet as a FEE, the remainder becomes the worker's
// pending earning with the given release date. gross = net + commission; the
// sum is conserved. Both wallets plus the platform wallet are locked in id
// order before any mutation.
type Release struct {
	JobID          uuid.UUID
	ClientWalletID uuid.UUID
	WorkerWalletID uuid.UUID
	GrossCentavos  int64
	FeeCentavos    int64
	ReleaseDate    time.Time
	PendingRef     string
	FeeRef         string
}

func (s *Service) Release(ctx context.Context, tx pgx.Tx, rel Release) (*models.Transaction, error) {
	if rel.FeeCentavos > rel.GrossCentavos {
		return nil, fmt.Errorf("escrow release: fee %d exceeds gross %d", rel.FeeCentavos, rel.GrossCentavos)
	}
	if err := s.ledger.LockWallets(ctx, tx, rel.ClientWalletID, rel.WorkerWalletID, s.platformWalletID); err != nil {
		return nil, fmt.Errorf("escrow release lock: %w", err)
	}
	if err := s.ledger.ConsumeReserved(ctx, tx, rel.ClientWalletID, rel.GrossCentavos, rel.JobID); err != nil {
		return nil, fmt.Errorf("escrow release consume: %w", err)
	}
	if rel.FeeCentavos > 0 {
		if _, err := s.ledger.CollectFee(ctx, tx, s.platformWalletID, rel.FeeCentavos, rel.FeeRef, &rel.JobID); err != nil {
			return nil, fmt.Errorf("escrow release fee: %w", err)
		}
	}
	net := rel.GrossCentavos - rel.FeeCentavos
	pending, err := s.ledger.AddPending(ctx, tx, rel.WorkerWalletID, net, rel.JobID, rel.ReleaseDate, rel.PendingRef)
	if err != nil {
		return nil, fmt.Errorf("escrow release pending: %w", err)
	}
	return pending, nil
}

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/hanapbuhay/backend/internal/attendance"
)

// PaymentSweepArgs triggers one payment buffer sweep pass.
type PaymentSweepArgs struct{}

func (PaymentSweepArgs) Kind() string { return "payment_buffer_sweep" }

type PaymentSweepWorker struct {
	river.WorkerDefaults[PaymentSweepArgs]
	Sweeper *Sweeper
	Log     *slog.Logger
}

func (w *PaymentSweepWorker) Work(ctx context.Context, _ *river.Job[PaymentSweepArgs]) error {
	released, err := w.Sweeper.Sweep(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if released > 0 && w.Log != nil {
		w.Log.Info("payment sweep complete", "released", released)
	}
	return nil
}

// AttendancePromotionArgs triggers the nightly daily-earning promotion.
type AttendancePromotionArgs struct{}

func (AttendancePromotionArgs) Kind() string { return "attendance_promotion" }

type AttendancePromotionWorker struct {
	river.WorkerDefaults[AttendancePromotionArgs]
	Attendance *attendance.Service
	BatchSize  int
	Log        *slog.Logger
}

func (w *AttendancePromotionWorker) Work(ctx context.Context, _ *river.Job[AttendancePromotionArgs]) error {
	promoted, err := w.Attendance.PromoteDue(ctx, time.Now().UTC(), w.BatchSize)
	if err != nil {
		return err
	}
	if promoted > 0 && w.Log != nil {
		w.Log.Info("attendance promotion complete", "days", promoted)
	}
	return nil
}

// AutoWithdrawArgs triggers one auto-withdraw pass.
type AutoWithdrawArgs struct{}

func (AutoWithdrawArgs) Kind() string { return "auto_withdraw" }

type AutoWithdrawWorker struct {
	river.WorkerDefaults[AutoWithdrawArgs]
	Withdrawer *AutoWithdrawer
	Log        *slog.Logger
}

func (w *AutoWithdrawWorker) Work(ctx context.Context, _ *river.Job[AutoWithdrawArgs]) error {
	drained, err := w.Withdrawer.Run(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	if drained > 0 && w.Log != nil {
		w.Log.Info("auto-withdraw complete", "wallets", drained)
	}
	return nil
}

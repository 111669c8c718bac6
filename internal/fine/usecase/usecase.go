package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campushub/library-circulation-service/internal/fine"
	"github.com/campushub/library-circulation-service/internal/fine/dto"
	"github.com/campushub/library-circulation-service/internal/model"
	"github.com/campushub/library-circulation-service/pkg/cache"
	"github.com/campushub/library-circulation-service/pkg/logger"
)

type fineUseCase struct {
	repo   fine.Repository
	cache  cache.Locker
	policy model.Policy
	logger logger.Logger
	now    func() time.Time
}

type Option func(*fineUseCase)

// WithClock overrides the time source. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(uc *fineUseCase) {
		uc.now = now
	}
}

func NewFineUseCase(repo fine.Repository, cacheClient cache.Locker, policy model.Policy, log logger.Logger, opts ...Option) fine.UseCase {
	uc := &fineUseCase{
		repo:   repo,
		cache:  cacheClient,
		policy: policy,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *fineUseCase) OpenOrUpdateOverdueFine(ctx context.Context, input *dto.OverdueFineInput) (*model.LibraryFine, error) {
	if input.DaysOverdue <= 0 {
		return nil, nil
	}
	amount := uc.policy.DailyFineRate.Mul(decimal.NewFromInt(int64(input.DaysOverdue)))

	existing, err := uc.repo.GetOverdueByCirculation(ctx, input.CirculationID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	if existing == nil {
		f := &model.LibraryFine{
			ID:             uuid.New().String(),
			CirculationID:  &input.CirculationID,
			StudentID:      input.StudentID,
			BookID:         input.BookID,
			FineAmount:     amount,
			PaidAmount:     decimal.Zero,
			WaivedAmount:   decimal.Zero,
			Balance:        amount,
			FineReason:     model.FineReasonOverdue,
			Status:         model.FineStatusPending,
			LastReducingOp: model.ReducingOpNone,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := uc.repo.Create(ctx, f); err != nil {
			return nil, err
		}
		uc.logger.Info("overdue fine opened",
			zap.String("fine_id", f.ID),
			zap.String("circulation_id", input.CirculationID),
			zap.String("amount", amount.String()),
		)
		return f, nil
	}

	// Serialize against concurrent payments; the recompute reads the paid
	// and waived amounts it writes the balance from.
	lockValue, err := uc.lockFine(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, fineLockKey(existing.ID), lockValue)

	current, err := uc.repo.GetByID(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	current.FineAmount = amount
	current.Recalculate()
	current.UpdatedAt = now
	if err := uc.repo.Update(ctx, current); err != nil {
		return nil, err
	}
	return current, nil
}

func (uc *fineUseCase) CreateLostFine(ctx context.Context, input *dto.LostFineInput) (*model.LibraryFine, error) {
	amount := input.BookPrice.Mul(decimal.NewFromInt(int64(uc.policy.LostFeeMultiplier)))
	return uc.createOneShot(ctx, model.FineReasonLost, amount, input.CirculationID, input.StudentID, input.BookID)
}

func (uc *fineUseCase) CreateDamagedFine(ctx context.Context, input *dto.DamagedFineInput) (*model.LibraryFine, error) {
	return uc.createOneShot(ctx, model.FineReasonDamaged, uc.policy.DamagedFee, input.CirculationID, input.StudentID, input.BookID)
}

func (uc *fineUseCase) createOneShot(ctx context.Context, reason model.FineReason, amount decimal.Decimal, circulationID *string, studentID, bookID string) (*model.LibraryFine, error) {
	if !amount.IsPositive() {
		return nil, fine.ErrInvalidAmount
	}
	now := uc.now()
	f := &model.LibraryFine{
		ID:             uuid.New().String(),
		CirculationID:  circulationID,
		StudentID:      studentID,
		BookID:         bookID,
		FineAmount:     amount,
		PaidAmount:     decimal.Zero,
		WaivedAmount:   decimal.Zero,
		Balance:        amount,
		FineReason:     reason,
		Status:         model.FineStatusPending,
		LastReducingOp: model.ReducingOpNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.repo.Create(ctx, f); err != nil {
		return nil, err
	}
	uc.logger.Info("fine created",
		zap.String("fine_id", f.ID),
		zap.String("reason", string(reason)),
		zap.String("amount", amount.String()),
	)
	return f, nil
}

func (uc *fineUseCase) RecordPayment(ctx context.Context, input *dto.PaymentInput) (*model.LibraryFine, error) {
	if !input.Amount.IsPositive() {
		return nil, fine.ErrInvalidAmount
	}

	lockValue, err := uc.lockFine(ctx, input.FineID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, fineLockKey(input.FineID), lockValue)

	method := input.Method
	payment := &model.FinePayment{
		ID:            uuid.New().String(),
		FineID:        input.FineID,
		Type:          model.PaymentTypePayment,
		Amount:        input.Amount,
		Method:        &method,
		TransactionID: input.TransactionID,
		RecordedBy:    input.RecordedBy,
		CreatedAt:     uc.now(),
	}
	f, err := uc.repo.ApplyReductionTx(ctx, payment)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("fine payment recorded",
		zap.String("fine_id", f.ID),
		zap.String("amount", input.Amount.String()),
		zap.String("balance", f.Balance.String()),
		zap.String("status", string(f.Status)),
	)
	return f, nil
}

func (uc *fineUseCase) Waive(ctx context.Context, input *dto.WaiverInput) (*model.LibraryFine, error) {
	if !input.Amount.IsPositive() {
		return nil, fine.ErrInvalidAmount
	}
	if input.Reason == "" {
		return nil, fine.ErrReasonRequired
	}

	lockValue, err := uc.lockFine(ctx, input.FineID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, fineLockKey(input.FineID), lockValue)

	reason := input.Reason
	payment := &model.FinePayment{
		ID:         uuid.New().String(),
		FineID:     input.FineID,
		Type:       model.PaymentTypeWaiver,
		Amount:     input.Amount,
		RecordedBy: input.WaivedBy,
		Reason:     &reason,
		CreatedAt:  uc.now(),
	}
	f, err := uc.repo.ApplyReductionTx(ctx, payment)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("fine waived",
		zap.String("fine_id", f.ID),
		zap.String("amount", input.Amount.String()),
		zap.String("balance", f.Balance.String()),
		zap.String("status", string(f.Status)),
	)
	return f, nil
}

func (uc *fineUseCase) GetFine(ctx context.Context, id string) (*model.LibraryFine, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *fineUseCase) ListFines(ctx context.Context, filters *dto.FineFilters) ([]model.LibraryFine, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *fineUseCase) ListPayments(ctx context.Context, fineID string) ([]model.FinePayment, error) {
	return uc.repo.ListPayments(ctx, fineID)
}

func (uc *fineUseCase) OutstandingBalance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	return uc.repo.OutstandingByStudent(ctx, studentID)
}

func fineLockKey(fineID string) string {
	return "lock:fine:" + fineID
}

func (uc *fineUseCase) lockFine(ctx context.Context, fineID string) (string, error) {
	lockKey := fineLockKey(fineID)
	lockValue := uuid.New().String()

	acquired := false
	for i := 0; i < 3; i++ {
		ok, err := uc.cache.AcquireLock(ctx, lockKey, lockValue, 5*time.Second)
		if err != nil {
			uc.logger.Error("failed to acquire lock redis error", zap.Error(err))
		}
		if ok {
			acquired = true
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !acquired {
		return "", errors.New("system busy, please try again later (lock)")
	}
	return lockValue, nil
}

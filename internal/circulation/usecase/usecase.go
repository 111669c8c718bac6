package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campushub/library-circulation-service/internal/circulation"
	"github.com/campushub/library-circulation-service/internal/circulation/dto"
	"github.com/campushub/library-circulation-service/internal/fine"
	finedto "github.com/campushub/library-circulation-service/internal/fine/dto"
	"github.com/campushub/library-circulation-service/internal/model"
	"github.com/campushub/library-circulation-service/internal/notifier"
	"github.com/campushub/library-circulation-service/pkg/cache"
	"github.com/campushub/library-circulation-service/pkg/logger"
)

type circulationUseCase struct {
	repo      circulation.Repository
	fines     fine.UseCase
	cache     cache.Locker
	sink      notifier.Sink
	directory notifier.Directory
	policy    model.Policy
	logger    logger.Logger
	now       func() time.Time
}

type Option func(*circulationUseCase)

// WithClock overrides the time source. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(uc *circulationUseCase) {
		uc.now = now
	}
}

func NewCirculationUseCase(
	repo circulation.Repository,
	fines fine.UseCase,
	cacheClient cache.Locker,
	sink notifier.Sink,
	directory notifier.Directory,
	policy model.Policy,
	log logger.Logger,
	opts ...Option,
) circulation.UseCase {
	uc := &circulationUseCase{
		repo:      repo,
		fines:     fines,
		cache:     cacheClient,
		sink:      sink,
		directory: directory,
		policy:    policy,
		logger:    log,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *circulationUseCase) Issue(ctx context.Context, input *dto.IssueBookInput) (*model.Circulation, error) {
	condition := input.ConditionOnIssue
	if condition == "" {
		condition = model.ConditionGood
	}
	if !model.ValidBookCondition(condition) {
		return nil, circulation.ErrInvalidCondition
	}

	lockValue, err := uc.lockBook(ctx, input.BookID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, bookLockKey(input.BookID), lockValue)

	active, err := uc.repo.CountActiveByStudent(ctx, input.StudentID)
	if err != nil {
		return nil, err
	}
	if active >= uc.policy.BorrowingLimit {
		return nil, circulation.ErrBorrowingLimitExceeded
	}

	duplicate, err := uc.repo.HasActiveForBook(ctx, input.StudentID, input.BookID)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, circulation.ErrDuplicateIssue
	}

	now := uc.now()
	dueDate := now.Add(uc.policy.BorrowingPeriod())
	if input.DueDate != nil {
		dueDate = *input.DueDate
	}
	if !dueDate.After(now) {
		return nil, circulation.ErrInvalidDueDate
	}

	circ := &model.Circulation{
		ID:               uuid.New().String(),
		BookID:           input.BookID,
		StudentID:        input.StudentID,
		IssueDate:        now,
		DueDate:          dueDate,
		Status:           model.CirculationStatusBorrowed,
		RenewalCount:     0,
		MaxRenewals:      uc.policy.MaxRenewals,
		ConditionOnIssue: condition,
		Fine:             decimal.Zero,
		IssuedBy:         input.IssuedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := uc.repo.IssueTx(ctx, circ); err != nil {
		return nil, err
	}

	uc.logger.Info("book issued",
		zap.String("circulation_id", circ.ID),
		zap.String("book_id", circ.BookID),
		zap.String("student_id", circ.StudentID),
		zap.Time("due_date", circ.DueDate),
	)
	return circ, nil
}

func (uc *circulationUseCase) Renew(ctx context.Context, circulationID string) (*model.Circulation, error) {
	circ, err := uc.repo.GetByID(ctx, circulationID)
	if err != nil {
		return nil, err
	}

	switch circ.Status {
	case model.CirculationStatusBorrowed, model.CirculationStatusRenewed:
	default:
		return nil, circulation.ErrNotBorrowed
	}
	if circ.RenewalCount >= circ.MaxRenewals {
		return nil, circulation.ErrRenewalLimitExceeded
	}

	now := uc.now()
	circ.RenewalCount++
	circ.DueDate = now.Add(uc.policy.BorrowingPeriod())
	circ.Status = model.CirculationStatusRenewed
	circ.UpdatedAt = now

	if err := uc.repo.Renew(ctx, circ); err != nil {
		return nil, err
	}

	uc.logger.Info("circulation renewed",
		zap.String("circulation_id", circ.ID),
		zap.Int("renewal_count", circ.RenewalCount),
		zap.Time("due_date", circ.DueDate),
	)
	return circ, nil
}

func (uc *circulationUseCase) Return(ctx context.Context, input *dto.ReturnBookInput) (*dto.ReturnOutcome, error) {
	if input.Condition != nil && !model.ValidBookCondition(*input.Condition) {
		return nil, circulation.ErrInvalidCondition
	}

	circ, err := uc.repo.GetByID(ctx, input.CirculationID)
	if err != nil {
		return nil, err
	}
	if !circ.Active() {
		return nil, circulation.ErrAlreadyReturned
	}

	lockValue, err := uc.lockBook(ctx, circ.BookID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, bookLockKey(circ.BookID), lockValue)

	outcome, err := uc.repo.ReturnTx(ctx, &dto.CloseParams{
		CirculationID:    input.CirculationID,
		ReturnedBy:       input.ReturnedBy,
		Condition:        input.Condition,
		Now:              uc.now(),
		DailyRate:        uc.policy.DailyFineRate,
		CollectionWindow: uc.policy.CollectionWindow(),
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("book returned",
		zap.String("circulation_id", outcome.Circulation.ID),
		zap.String("book_id", outcome.Circulation.BookID),
		zap.String("fine", outcome.Circulation.Fine.String()),
	)

	// Damage found at the desk opens a one-shot administrative fine. The
	// return has committed; a failure here only loses the fine, not the copy.
	if input.Condition != nil && *input.Condition == model.ConditionDamaged {
		_, err := uc.fines.CreateDamagedFine(ctx, &finedto.DamagedFineInput{
			CirculationID: &outcome.Circulation.ID,
			StudentID:     outcome.Circulation.StudentID,
			BookID:        outcome.Circulation.BookID,
		})
		if err != nil {
			uc.logger.Error("failed to open damaged-book fine",
				zap.String("circulation_id", outcome.Circulation.ID), zap.Error(err))
		}
	}

	if outcome.Promoted != nil {
		uc.notifyPromoted(ctx, outcome.Promoted)
	}
	return outcome, nil
}

func (uc *circulationUseCase) DaysOverdue(ctx context.Context, circulationID string) (int, error) {
	circ, err := uc.repo.GetByID(ctx, circulationID)
	if err != nil {
		return 0, err
	}
	if !circ.Active() {
		return 0, nil
	}
	return model.DaysOverdue(circ.DueDate, uc.now()), nil
}

func (uc *circulationUseCase) MarkLost(ctx context.Context, circulationID string) (*model.LibraryFine, error) {
	circ, err := uc.repo.GetByID(ctx, circulationID)
	if err != nil {
		return nil, err
	}
	if !circ.Active() {
		return nil, circulation.ErrAlreadyReturned
	}

	lockValue, err := uc.lockBook(ctx, circ.BookID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, bookLockKey(circ.BookID), lockValue)

	f, err := uc.repo.MarkLostTx(ctx, circulationID, uc.policy.LostFeeMultiplier, uc.now())
	if err != nil {
		return nil, err
	}

	uc.logger.Info("circulation marked lost",
		zap.String("circulation_id", circulationID),
		zap.String("replacement_fee", f.FineAmount.String()),
	)
	return f, nil
}

func (uc *circulationUseCase) GetCirculation(ctx context.Context, id string) (*model.Circulation, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *circulationUseCase) ListCirculations(ctx context.Context, filters *dto.CirculationFilters) ([]model.Circulation, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *circulationUseCase) OverdueSweep(ctx context.Context) (int, error) {
	now := uc.now()
	overdue, err := uc.repo.ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, circ := range overdue {
		transitioned, err := uc.repo.MarkOverdue(ctx, circ.ID, now)
		if err != nil {
			uc.logger.Error("failed to mark circulation overdue",
				zap.String("circulation_id", circ.ID), zap.Error(err))
			continue
		}

		days := model.DaysOverdue(circ.DueDate, now)
		_, err = uc.fines.OpenOrUpdateOverdueFine(ctx, &finedto.OverdueFineInput{
			CirculationID: circ.ID,
			StudentID:     circ.StudentID,
			BookID:        circ.BookID,
			DaysOverdue:   days,
		})
		if err != nil {
			uc.logger.Error("failed to refresh overdue fine",
				zap.String("circulation_id", circ.ID), zap.Error(err))
			continue
		}

		if transitioned {
			uc.notifyOverdue(ctx, &circ, days)
		}
		swept++
	}
	return swept, nil
}

// notifyPromoted tells the next student in line a copy is waiting. Delivery
// failure is logged and suppressed; the return has already committed.
func (uc *circulationUseCase) notifyPromoted(ctx context.Context, res *model.Reservation) {
	userID, err := uc.directory.NotificationTarget(ctx, res.StudentID)
	if err != nil {
		uc.logger.Warn("failed to resolve notification target",
			zap.String("student_id", res.StudentID), zap.Error(err))
		return
	}

	n := &notifier.Notification{
		UserID:   userID,
		Category: notifier.CategoryLibrary,
		Title:    "Reserved book available",
		Message:  fmt.Sprintf("Your reserved book is ready for pickup until %s.", res.ExpiryDate.Format("Jan 2, 2006")),
		Data: map[string]string{
			"reservation_id": res.ID,
			"book_id":        res.BookID,
		},
	}
	if err := uc.sink.Notify(ctx, n); err != nil {
		uc.logger.Warn("failed to send reservation notification",
			zap.String("reservation_id", res.ID), zap.Error(err))
	}
}

func (uc *circulationUseCase) notifyOverdue(ctx context.Context, circ *model.Circulation, days int) {
	userID, err := uc.directory.NotificationTarget(ctx, circ.StudentID)
	if err != nil {
		uc.logger.Warn("failed to resolve notification target",
			zap.String("student_id", circ.StudentID), zap.Error(err))
		return
	}

	n := &notifier.Notification{
		UserID:   userID,
		Category: notifier.CategoryLibrary,
		Title:    "Book overdue",
		Message:  fmt.Sprintf("Your borrowed book is %d day(s) overdue. Please return it to stop the fine from growing.", days),
		Data: map[string]string{
			"circulation_id": circ.ID,
			"book_id":        circ.BookID,
		},
	}
	if err := uc.sink.Notify(ctx, n); err != nil {
		uc.logger.Warn("failed to send overdue notification",
			zap.String("circulation_id", circ.ID), zap.Error(err))
	}
}

func bookLockKey(bookID string) string {
	return "lock:book:" + bookID
}

func (uc *circulationUseCase) lockBook(ctx context.Context, bookID string) (string, error) {
	lockKey := bookLockKey(bookID)
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

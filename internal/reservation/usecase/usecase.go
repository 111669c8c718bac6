package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/library-circulation-service/internal/model"
	"github.com/campushub/library-circulation-service/internal/notifier"
	"github.com/campushub/library-circulation-service/internal/reservation"
	"github.com/campushub/library-circulation-service/internal/reservation/dto"
	"github.com/campushub/library-circulation-service/pkg/cache"
	"github.com/campushub/library-circulation-service/pkg/logger"
)

type reservationUseCase struct {
	repo      reservation.Repository
	cache     cache.Locker
	sink      notifier.Sink
	directory notifier.Directory
	policy    model.Policy
	logger    logger.Logger
	now       func() time.Time
}

type Option func(*reservationUseCase)

// WithClock overrides the time source. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(uc *reservationUseCase) {
		uc.now = now
	}
}

func NewReservationUseCase(
	repo reservation.Repository,
	cacheClient cache.Locker,
	sink notifier.Sink,
	directory notifier.Directory,
	policy model.Policy,
	log logger.Logger,
	opts ...Option,
) reservation.UseCase {
	uc := &reservationUseCase{
		repo:      repo,
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

func (uc *reservationUseCase) Reserve(ctx context.Context, input *dto.ReserveInput) (*model.Reservation, error) {
	lockValue, err := uc.lockBook(ctx, input.BookID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, bookLockKey(input.BookID), lockValue)

	now := uc.now()
	res := &model.Reservation{
		ID:              uuid.New().String(),
		BookID:          input.BookID,
		StudentID:       input.StudentID,
		ReservationDate: now,
		ExpiryDate:      now.Add(uc.policy.PendingWindow()),
		Status:          model.ReservationStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.repo.ReserveTx(ctx, res); err != nil {
		return nil, err
	}

	uc.logger.Info("reservation placed",
		zap.String("reservation_id", res.ID),
		zap.String("book_id", res.BookID),
		zap.String("student_id", res.StudentID),
		zap.Int("queue_position", res.QueuePosition),
	)
	return res, nil
}

func (uc *reservationUseCase) Advance(ctx context.Context, bookID string) (*model.Reservation, error) {
	lockValue, err := uc.lockBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, bookLockKey(bookID), lockValue)

	promoted, err := uc.repo.AdvanceTx(ctx, bookID, uc.now(), uc.policy.CollectionWindow())
	if err != nil {
		return nil, err
	}
	if promoted == nil {
		return nil, nil
	}

	uc.logger.Info("reservation promoted",
		zap.String("reservation_id", promoted.ID),
		zap.String("book_id", promoted.BookID),
		zap.String("student_id", promoted.StudentID),
	)
	uc.notifyPromoted(ctx, promoted)
	return promoted, nil
}

func (uc *reservationUseCase) Fulfill(ctx context.Context, reservationID string) (*model.Reservation, error) {
	res, err := uc.repo.FulfillTx(ctx, reservationID, uc.now())
	if err != nil {
		return nil, err
	}
	uc.logger.Info("reservation fulfilled",
		zap.String("reservation_id", res.ID),
		zap.String("book_id", res.BookID),
	)
	return res, nil
}

func (uc *reservationUseCase) Cancel(ctx context.Context, input *dto.CancelInput) (*model.Reservation, error) {
	existing, err := uc.repo.GetByID(ctx, input.ReservationID)
	if err != nil {
		return nil, err
	}

	var reason *string
	if input.Reason != "" {
		reason = &input.Reason
	}

	cancelled, err := uc.cancelLocked(ctx, existing.BookID, input.ReservationID, reason)
	if err != nil {
		return nil, err
	}

	// A cancelled pickup gives its turn to the next in line.
	if cancelled.AvailableDate != nil {
		if _, err := uc.Advance(ctx, cancelled.BookID); err != nil {
			uc.logger.Warn("failed to advance queue after cancel",
				zap.String("book_id", cancelled.BookID), zap.Error(err))
		}
	}
	return cancelled, nil
}

func (uc *reservationUseCase) cancelLocked(ctx context.Context, bookID, reservationID string, reason *string) (*model.Reservation, error) {
	lockValue, err := uc.lockBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, bookLockKey(bookID), lockValue)

	cancelled, err := uc.repo.CancelTx(ctx, reservationID, reason, uc.now())
	if err != nil {
		return nil, err
	}

	uc.logger.Info("reservation cancelled",
		zap.String("reservation_id", cancelled.ID),
		zap.String("book_id", cancelled.BookID),
	)
	return cancelled, nil
}

func (uc *reservationUseCase) ExpireSweep(ctx context.Context) (int, error) {
	now := uc.now()
	stale, err := uc.repo.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, res := range stale {
		out, err := uc.expireOne(ctx, res.ID, res.BookID)
		if err != nil {
			uc.logger.Error("failed to expire reservation",
				zap.String("reservation_id", res.ID), zap.Error(err))
			continue
		}
		if out == nil {
			continue
		}
		expired++

		// An expired pickup gives its turn to the next in line.
		if out.AvailableDate != nil {
			if _, err := uc.Advance(ctx, out.BookID); err != nil {
				uc.logger.Warn("failed to advance queue after expiry",
					zap.String("book_id", out.BookID), zap.Error(err))
			}
		}
	}
	return expired, nil
}

func (uc *reservationUseCase) expireOne(ctx context.Context, reservationID, bookID string) (*model.Reservation, error) {
	lockValue, err := uc.lockBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer uc.cache.ReleaseLock(ctx, bookLockKey(bookID), lockValue)

	return uc.repo.ExpireTx(ctx, reservationID, uc.now())
}

func (uc *reservationUseCase) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *reservationUseCase) ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

// notifyPromoted tells the student a copy is waiting. Delivery failure is
// logged and suppressed; the promotion has already committed.
func (uc *reservationUseCase) notifyPromoted(ctx context.Context, res *model.Reservation) {
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

func bookLockKey(bookID string) string {
	return "lock:book:" + bookID
}

func (uc *reservationUseCase) lockBook(ctx context.Context, bookID string) (string, error) {
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

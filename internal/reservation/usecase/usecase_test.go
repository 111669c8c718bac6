package usecase_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushub/library-circulation-service/internal/model"
	"github.com/campushub/library-circulation-service/internal/notifier"
	"github.com/campushub/library-circulation-service/internal/reservation"
	"github.com/campushub/library-circulation-service/internal/reservation/dto"
	"github.com/campushub/library-circulation-service/internal/reservation/usecase"
	"github.com/campushub/library-circulation-service/pkg/logger"
)

// --- Mock Repository ---

// mockResRepo mirrors the queue semantics of the SQL repository in memory:
// dense 1-based pending positions per book, renumbered on removal.
type mockResRepo struct {
	reservations map[string]*model.Reservation
	freeCopies   map[string]int // bookID -> available copies
	bookStatus   map[string]model.BookStatus
}

func newMockResRepo() *mockResRepo {
	return &mockResRepo{
		reservations: make(map[string]*model.Reservation),
		freeCopies:   make(map[string]int),
		bookStatus:   make(map[string]model.BookStatus),
	}
}

func (m *mockResRepo) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockResRepo) FindAll(_ context.Context, _ *dto.ReservationFilters) ([]model.Reservation, int, error) {
	var items []model.Reservation
	for _, r := range m.reservations {
		items = append(items, *r)
	}
	return items, len(items), nil
}

func (m *mockResRepo) pending(bookID string) []*model.Reservation {
	var out []*model.Reservation
	for _, r := range m.reservations {
		if r.BookID == bookID && r.Status == model.ReservationStatusPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueuePosition < out[j].QueuePosition })
	return out
}

func (m *mockResRepo) renumber(bookID string) {
	for i, r := range m.pending(bookID) {
		r.QueuePosition = i + 1
	}
}

func (m *mockResRepo) ReserveTx(_ context.Context, res *model.Reservation) error {
	switch m.bookStatus[res.BookID] {
	case model.BookStatusWithdrawn, model.BookStatusLost:
		return reservation.ErrBookNotReservable
	}
	if m.freeCopies[res.BookID] > 0 {
		return reservation.ErrBookCurrentlyAvailable
	}
	for _, r := range m.reservations {
		if r.BookID == res.BookID && r.StudentID == res.StudentID && r.ActiveReservation() {
			return reservation.ErrDuplicateReservation
		}
	}
	res.QueuePosition = len(m.pending(res.BookID)) + 1
	cp := *res
	m.reservations[res.ID] = &cp
	return nil
}

func (m *mockResRepo) CancelTx(_ context.Context, id string, reason *string, now time.Time) (*model.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	if !r.ActiveReservation() {
		return nil, reservation.ErrReservationNotActive
	}
	r.Status = model.ReservationStatusCancelled
	r.CancelledDate = &now
	r.CancelReason = reason
	r.QueuePosition = 0
	m.renumber(r.BookID)
	cp := *r
	return &cp, nil
}

func (m *mockResRepo) AdvanceTx(_ context.Context, bookID string, now time.Time, collectionWindow time.Duration) (*model.Reservation, error) {
	if m.freeCopies[bookID] == 0 {
		return nil, nil
	}
	queue := m.pending(bookID)
	if len(queue) == 0 {
		return nil, nil
	}
	head := queue[0]
	head.Status = model.ReservationStatusAvailable
	head.AvailableDate = &now
	head.ExpiryDate = now.Add(collectionWindow)
	head.QueuePosition = 0
	m.renumber(bookID)
	cp := *head
	return &cp, nil
}

func (m *mockResRepo) FulfillTx(_ context.Context, id string, now time.Time) (*model.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	if r.Status != model.ReservationStatusAvailable {
		return nil, reservation.ErrNotAwaitingPickup
	}
	if now.After(r.ExpiryDate) {
		return nil, reservation.ErrReservationExpired
	}
	r.Status = model.ReservationStatusFulfilled
	r.FulfilledDate = &now
	cp := *r
	return &cp, nil
}

func (m *mockResRepo) ListExpired(_ context.Context, asOf time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	for _, r := range m.reservations {
		if r.ActiveReservation() && asOf.After(r.ExpiryDate) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockResRepo) ExpireTx(_ context.Context, id string, now time.Time) (*model.Reservation, error) {
	r, ok := m.reservations[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	if !r.ActiveReservation() || !now.After(r.ExpiryDate) {
		return nil, nil
	}
	r.Status = model.ReservationStatusExpired
	r.QueuePosition = 0
	m.renumber(r.BookID)
	cp := *r
	return &cp, nil
}

// --- Fakes ---

type mockLocker struct{}

func (mockLocker) AcquireLock(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	return true, nil
}
func (mockLocker) ReleaseLock(_ context.Context, _, _ string) error { return nil }

type captureSink struct {
	sent []*notifier.Notification
}

func (s *captureSink) Notify(_ context.Context, n *notifier.Notification) error {
	s.sent = append(s.sent, n)
	return nil
}

var baseTime = time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC)

func newResUC(repo *mockResRepo, sink *captureSink, now *time.Time) reservation.UseCase {
	return usecase.NewReservationUseCase(repo, mockLocker{}, sink, notifier.PassthroughDirectory{},
		model.DefaultPolicy(), logger.NewNop(),
		usecase.WithClock(func() time.Time { return *now }))
}

func TestReserveQueuesInOrder(t *testing.T) {
	repo := newMockResRepo()
	now := baseTime
	uc := newResUC(repo, &captureSink{}, &now)
	ctx := context.Background()

	for i, student := range []string{"stu-1", "stu-2", "stu-3"} {
		res, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: student})
		require.NoError(t, err)
		assert.Equal(t, i+1, res.QueuePosition)
		assert.Equal(t, model.ReservationStatusPending, res.Status)
	}
}

func TestReserveRejectsAvailableBook(t *testing.T) {
	repo := newMockResRepo()
	repo.freeCopies["book-1"] = 2
	now := baseTime
	uc := newResUC(repo, &captureSink{}, &now)

	_, err := uc.Reserve(context.Background(), &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	assert.ErrorIs(t, err, reservation.ErrBookCurrentlyAvailable)
}

func TestReserveRejectsWithdrawnTitle(t *testing.T) {
	repo := newMockResRepo()
	repo.bookStatus["book-1"] = model.BookStatusWithdrawn
	now := baseTime
	uc := newResUC(repo, &captureSink{}, &now)

	// No copies free, but queueing is pointless: the title will never
	// produce one.
	_, err := uc.Reserve(context.Background(), &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	assert.ErrorIs(t, err, reservation.ErrBookNotReservable)
}

func TestReserveRejectsDuplicate(t *testing.T) {
	repo := newMockResRepo()
	now := baseTime
	uc := newResUC(repo, &captureSink{}, &now)
	ctx := context.Background()

	_, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	require.NoError(t, err)
	_, err = uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	assert.ErrorIs(t, err, reservation.ErrDuplicateReservation)
}

func TestCancelRenumbersQueue(t *testing.T) {
	repo := newMockResRepo()
	now := baseTime
	uc := newResUC(repo, &captureSink{}, &now)
	ctx := context.Background()

	var ids []string
	for _, student := range []string{"stu-1", "stu-2", "stu-3"} {
		res, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: student})
		require.NoError(t, err)
		ids = append(ids, res.ID)
	}

	// Cancel the middle of 1,2,3: the remaining queue closes up to 1,2.
	cancelled, err := uc.Cancel(ctx, &dto.CancelInput{ReservationID: ids[1], Reason: "changed mind"})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusCancelled, cancelled.Status)
	assert.Equal(t, 0, cancelled.QueuePosition)

	first, _ := uc.GetReservation(ctx, ids[0])
	third, _ := uc.GetReservation(ctx, ids[2])
	assert.Equal(t, 1, first.QueuePosition)
	assert.Equal(t, 2, third.QueuePosition)
}

func TestCancelInactiveFails(t *testing.T) {
	repo := newMockResRepo()
	now := baseTime
	uc := newResUC(repo, &captureSink{}, &now)
	ctx := context.Background()

	res, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	require.NoError(t, err)
	_, err = uc.Cancel(ctx, &dto.CancelInput{ReservationID: res.ID})
	require.NoError(t, err)

	_, err = uc.Cancel(ctx, &dto.CancelInput{ReservationID: res.ID})
	assert.ErrorIs(t, err, reservation.ErrReservationNotActive)
}

func TestAdvancePromotesHeadAndNotifies(t *testing.T) {
	repo := newMockResRepo()
	sink := &captureSink{}
	now := baseTime
	uc := newResUC(repo, sink, &now)
	ctx := context.Background()

	head, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	require.NoError(t, err)
	_, err = uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-2"})
	require.NoError(t, err)

	// No free copy yet: advancing is a no-op.
	promoted, err := uc.Advance(ctx, "book-1")
	require.NoError(t, err)
	assert.Nil(t, promoted)
	assert.Empty(t, sink.sent)

	// A copy comes back.
	repo.freeCopies["book-1"] = 1
	promoted, err = uc.Advance(ctx, "book-1")
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, head.ID, promoted.ID)
	assert.Equal(t, model.ReservationStatusAvailable, promoted.Status)
	// Pickup window is the collection window, not the pending window.
	assert.Equal(t, now.Add(3*24*time.Hour), promoted.ExpiryDate)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, "stu-1", sink.sent[0].UserID)
	assert.Equal(t, notifier.CategoryLibrary, sink.sent[0].Category)

	// The second reservation moved up to the head.
	second := repo.pending("book-1")
	require.Len(t, second, 1)
	assert.Equal(t, "stu-2", second[0].StudentID)
	assert.Equal(t, 1, second[0].QueuePosition)
}

func TestFulfillWithinWindow(t *testing.T) {
	repo := newMockResRepo()
	now := baseTime
	uc := newResUC(repo, &captureSink{}, &now)
	ctx := context.Background()

	res, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	require.NoError(t, err)
	repo.freeCopies["book-1"] = 1
	_, err = uc.Advance(ctx, "book-1")
	require.NoError(t, err)

	now = baseTime.Add(24 * time.Hour)
	fulfilled, err := uc.Fulfill(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationStatusFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.FulfilledDate)
}

func TestFulfillAfterWindowFails(t *testing.T) {
	repo := newMockResRepo()
	now := baseTime
	uc := newResUC(repo, &captureSink{}, &now)
	ctx := context.Background()

	res, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	require.NoError(t, err)
	repo.freeCopies["book-1"] = 1
	_, err = uc.Advance(ctx, "book-1")
	require.NoError(t, err)

	now = baseTime.Add(4 * 24 * time.Hour)
	_, err = uc.Fulfill(ctx, res.ID)
	assert.ErrorIs(t, err, reservation.ErrReservationExpired)
}

func TestExpireSweepPromotesNextInLine(t *testing.T) {
	repo := newMockResRepo()
	sink := &captureSink{}
	now := baseTime
	uc := newResUC(repo, sink, &now)
	ctx := context.Background()

	first, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	require.NoError(t, err)
	second, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-2"})
	require.NoError(t, err)

	repo.freeCopies["book-1"] = 1
	_, err = uc.Advance(ctx, "book-1")
	require.NoError(t, err)

	// The first student never collects; past the window the sweep expires the
	// pickup and promotes the second.
	now = baseTime.Add(4 * 24 * time.Hour)
	n, err := uc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := uc.GetReservation(ctx, first.ID)
	assert.Equal(t, model.ReservationStatusExpired, got.Status)

	got, _ = uc.GetReservation(ctx, second.ID)
	assert.Equal(t, model.ReservationStatusAvailable, got.Status)

	// Both promotions notified.
	assert.Len(t, sink.sent, 2)
}

func TestCancelPromotedPassesTurnToNextInLine(t *testing.T) {
	repo := newMockResRepo()
	sink := &captureSink{}
	now := baseTime
	uc := newResUC(repo, sink, &now)
	ctx := context.Background()

	first, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	require.NoError(t, err)
	second, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-2"})
	require.NoError(t, err)

	repo.freeCopies["book-1"] = 1
	_, err = uc.Advance(ctx, "book-1")
	require.NoError(t, err)

	// The promoted student cancels; the next in line is promoted.
	_, err = uc.Cancel(ctx, &dto.CancelInput{ReservationID: first.ID, Reason: "no longer needed"})
	require.NoError(t, err)

	got, _ := uc.GetReservation(ctx, second.ID)
	assert.Equal(t, model.ReservationStatusAvailable, got.Status)
	assert.Len(t, sink.sent, 2)
}

func TestExpireSweepDropsStalePending(t *testing.T) {
	repo := newMockResRepo()
	now := baseTime
	uc := newResUC(repo, &captureSink{}, &now)
	ctx := context.Background()

	res, err := uc.Reserve(ctx, &dto.ReserveInput{BookID: "book-1", StudentID: "stu-1"})
	require.NoError(t, err)

	// Past the 30-day pending window the request lapses.
	now = baseTime.Add(31 * 24 * time.Hour)
	n, err := uc.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := uc.GetReservation(ctx, res.ID)
	assert.Equal(t, model.ReservationStatusExpired, got.Status)
}

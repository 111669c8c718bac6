package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campushub/library-circulation-service/internal/inventory"
	"github.com/campushub/library-circulation-service/internal/inventory/dto"
	"github.com/campushub/library-circulation-service/internal/model"
	"github.com/campushub/library-circulation-service/pkg/logger"
)

type inventoryUseCase struct {
	repo   inventory.Repository
	logger logger.Logger
	now    func() time.Time
}

type Option func(*inventoryUseCase)

// WithClock overrides the time source. Tests use it to pin "now".
func WithClock(now func() time.Time) Option {
	return func(uc *inventoryUseCase) {
		uc.now = now
	}
}

func NewInventoryUseCase(repo inventory.Repository, log logger.Logger, opts ...Option) inventory.UseCase {
	uc := &inventoryUseCase{
		repo:   repo,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *inventoryUseCase) AddBook(ctx context.Context, input *dto.AddBookInput) (*model.Book, error) {
	if input.Copies <= 0 {
		return nil, errors.New("copies must be positive")
	}

	existing, err := uc.repo.GetByAccessionNumber(ctx, input.AccessionNumber)
	if err != nil && !errors.Is(err, inventory.ErrBookNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, inventory.ErrDuplicateAccession
	}

	now := uc.now()
	book := &model.Book{
		ID:              uuid.New().String(),
		AccessionNumber: input.AccessionNumber,
		Title:           input.Title,
		Author:          input.Author,
		ISBN:            input.ISBN,
		Publisher:       input.Publisher,
		Category:        input.Category,
		Price:           input.Price,
		Copies:          input.Copies,
		AvailableCopies: input.Copies,
		Status:          model.BookStatusAvailable,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.repo.Create(ctx, book); err != nil {
		return nil, err
	}

	uc.logger.Info("book added",
		zap.String("book_id", book.ID),
		zap.String("accession_number", book.AccessionNumber),
		zap.Int("copies", book.Copies),
	)
	return book, nil
}

func (uc *inventoryUseCase) GetBook(ctx context.Context, id string) (*model.Book, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *inventoryUseCase) ListBooks(ctx context.Context, filters *dto.BookFilters) ([]model.Book, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *inventoryUseCase) DecrementAvailable(ctx context.Context, bookID string) error {
	return uc.repo.DecrementAvailable(ctx, bookID, uc.now())
}

func (uc *inventoryUseCase) IncrementAvailable(ctx context.Context, bookID string) error {
	return uc.repo.IncrementAvailable(ctx, bookID, uc.now())
}

func (uc *inventoryUseCase) IsAvailable(ctx context.Context, bookID string) (bool, error) {
	book, err := uc.repo.GetByID(ctx, bookID)
	if err != nil {
		return false, err
	}
	return book.AvailableCopies > 0 && book.Status == model.BookStatusAvailable, nil
}

func (uc *inventoryUseCase) MarkLost(ctx context.Context, bookID string) error {
	return uc.repo.UpdateStatus(ctx, bookID, model.BookStatusLost, uc.now())
}

func (uc *inventoryUseCase) MarkDamaged(ctx context.Context, bookID string) error {
	return uc.repo.UpdateStatus(ctx, bookID, model.BookStatusDamaged, uc.now())
}

func (uc *inventoryUseCase) Withdraw(ctx context.Context, bookID string) error {
	return uc.repo.UpdateStatus(ctx, bookID, model.BookStatusWithdrawn, uc.now())
}

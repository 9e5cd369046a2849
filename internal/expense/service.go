package expense

import (
	"context"
	"log/slog"
	"time"

	"github.com/frahmantamala/kakeibo/internal"
	expenseDatamodel "github.com/frahmantamala/kakeibo/internal/core/datamodel/expense"
)

// RepositoryAPI is the durable store behind the service. Update and Delete
// return internal.ErrExpenseNotFound when no row matched the id.
type RepositoryAPI interface {
	List(ctx context.Context, filter *MonthFilter) ([]*expenseDatamodel.Expense, error)
	GetByID(ctx context.Context, id int64) (*expenseDatamodel.Expense, error)
	Create(ctx context.Context, expense *expenseDatamodel.Expense) error
	Update(ctx context.Context, expense *expenseDatamodel.Expense) error
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) ListExpenses(ctx context.Context, filter *MonthFilter) ([]*Expense, error) {
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list expenses", "error", err, "filter", filter)
		return nil, internal.NewStoreError("Failed to fetch expenses", err)
	}
	return FromDataModelSlice(rows), nil
}

func (s *Service) CreateExpense(ctx context.Context, input ExpenseInput) (*Expense, error) {
	if err := input.Validate(); err != nil {
		s.logger.Warn("expense validation failed", "error", err)
		return nil, err
	}

	exp := NewExpense(input, s.now())
	model := ToDataModel(exp)
	if err := s.repo.Create(ctx, model); err != nil {
		s.logger.Error("failed to create expense", "error", err)
		return nil, internal.NewStoreError("Failed to create expense", err)
	}

	s.logger.Info("expense created",
		"expense_id", model.ID,
		"date", model.Date,
		"category", model.Category,
		"amount", model.Amount)

	return FromDataModel(model), nil
}

// UpdateExpense overwrites every mutable field of an existing expense and
// returns the stored result.
func (s *Service) UpdateExpense(ctx context.Context, id int64, input ExpenseInput) (*Expense, error) {
	if err := input.Validate(); err != nil {
		s.logger.Warn("expense validation failed", "error", err, "expense_id", id)
		return nil, err
	}

	model := &expenseDatamodel.Expense{
		ID:        id,
		Date:      input.Date,
		Category:  input.Category,
		ItemName:  input.ItemName,
		Store:     input.Store,
		Amount:    int64(input.Amount),
		UpdatedAt: s.now(),
	}
	if err := s.repo.Update(ctx, model); err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		s.logger.Error("failed to update expense", "error", err, "expense_id", id)
		return nil, internal.NewStoreError("Failed to update expense", err)
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		s.logger.Error("failed to reload expense", "error", err, "expense_id", id)
		return nil, internal.NewStoreError("Failed to update expense", err)
	}

	s.logger.Info("expense updated", "expense_id", id)
	return FromDataModel(updated), nil
}

func (s *Service) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return err
		}
		s.logger.Error("failed to delete expense", "error", err, "expense_id", id)
		return internal.NewStoreError("Failed to delete expense", err)
	}

	s.logger.Info("expense deleted", "expense_id", id)
	return nil
}

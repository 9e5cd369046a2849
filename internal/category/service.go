package category

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/kakeibo/internal"
	categoryDatamodel "github.com/frahmantamala/kakeibo/internal/core/datamodel/category"
	"github.com/frahmantamala/kakeibo/internal/expense"
)

type RepositoryAPI interface {
	// Summaries aggregates expenses by category, largest total first.
	Summaries(ctx context.Context, filter *expense.MonthFilter) ([]*categoryDatamodel.Summary, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetSummary(ctx context.Context, filter *expense.MonthFilter) (*SummaryResponse, error) {
	rows, err := s.repo.Summaries(ctx, filter)
	if err != nil {
		return nil, internal.NewStoreError("Failed to summarize categories", err)
	}

	resp := NewSummaryResponse(rows)
	s.logger.Debug("summarized categories", "count", len(resp.Categories))
	return &resp, nil
}

package gormstore

import (
	"context"

	"github.com/frahmantamala/kakeibo/internal/category"
	categoryDatamodel "github.com/frahmantamala/kakeibo/internal/core/datamodel/category"
	expenseDatamodel "github.com/frahmantamala/kakeibo/internal/core/datamodel/expense"
	"github.com/frahmantamala/kakeibo/internal/expense"
	"gorm.io/gorm"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) category.RepositoryAPI {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Summaries(ctx context.Context, filter *expense.MonthFilter) ([]*categoryDatamodel.Summary, error) {
	rows := make([]*categoryDatamodel.Summary, 0)

	query := r.db.WithContext(ctx).
		Model(&expenseDatamodel.Expense{}).
		Select("category AS name, COUNT(*) AS expense_count, CAST(SUM(amount) AS BIGINT) AS total_amount")
	if filter != nil {
		query = query.Where("date LIKE ?", filter.DatePrefix()+"%")
	}

	err := query.Group("category").
		Order("total_amount DESC").
		Order("name ASC").
		Scan(&rows).Error
	return rows, err
}

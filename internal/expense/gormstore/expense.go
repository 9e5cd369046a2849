// Package gormstore persists expenses through gorm. It runs unchanged on
// the SQLite and Postgres dialectors.
package gormstore

import (
	"context"
	"errors"

	"github.com/frahmantamala/kakeibo/internal"
	expenseDatamodel "github.com/frahmantamala/kakeibo/internal/core/datamodel/expense"
	"github.com/frahmantamala/kakeibo/internal/expense"
	"gorm.io/gorm"
)

type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) expense.RepositoryAPI {
	return &ExpenseRepository{db: db}
}

// List returns expenses newest first. id breaks ties between rows created
// in the same instant so the order is stable.
func (r *ExpenseRepository) List(ctx context.Context, filter *expense.MonthFilter) ([]*expenseDatamodel.Expense, error) {
	expenses := make([]*expenseDatamodel.Expense, 0)

	query := r.db.WithContext(ctx).Model(&expenseDatamodel.Expense{})
	if filter != nil {
		query = query.Where("date LIKE ?", filter.DatePrefix()+"%")
	}

	err := query.Order("date DESC").
		Order("created_at DESC").
		Order("id DESC").
		Find(&expenses).Error
	return expenses, err
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*expenseDatamodel.Expense, error) {
	var exp expenseDatamodel.Expense
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return &exp, nil
}

func (r *ExpenseRepository) Create(ctx context.Context, exp *expenseDatamodel.Expense) error {
	return r.db.WithContext(ctx).Create(exp).Error
}

// Update overwrites the mutable columns in one statement. created_at is
// never touched.
func (r *ExpenseRepository) Update(ctx context.Context, exp *expenseDatamodel.Expense) error {
	result := r.db.WithContext(ctx).
		Model(&expenseDatamodel.Expense{}).
		Where("id = ?", exp.ID).
		Updates(map[string]interface{}{
			"date":       exp.Date,
			"category":   exp.Category,
			"item_name":  exp.ItemName,
			"store":      exp.Store,
			"amount":     exp.Amount,
			"updated_at": exp.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrExpenseNotFound
	}
	return nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&expenseDatamodel.Expense{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return internal.ErrExpenseNotFound
	}
	return nil
}

package expense

import (
	"fmt"
	"time"

	expenseDatamodel "github.com/frahmantamala/kakeibo/internal/core/datamodel/expense"
)

// Expense is a single household spending record as returned to clients.
type Expense struct {
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Category  string    `json:"category"`
	ItemName  string    `json:"item_name"`
	Store     string    `json:"store"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MonthFilter restricts a listing to one calendar month.
type MonthFilter struct {
	Year  int
	Month int
}

// DatePrefix is the YYYY-MM prefix every matching date starts with.
func (f MonthFilter) DatePrefix() string {
	return fmt.Sprintf("%04d-%02d", f.Year, f.Month)
}

func NewExpense(input ExpenseInput, now time.Time) *Expense {
	return &Expense{
		Date:      input.Date,
		Category:  input.Category,
		ItemName:  input.ItemName,
		Store:     input.Store,
		Amount:    int64(input.Amount),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func ToDataModel(e *Expense) *expenseDatamodel.Expense {
	return &expenseDatamodel.Expense{
		ID:        e.ID,
		Date:      e.Date,
		Category:  e.Category,
		ItemName:  e.ItemName,
		Store:     e.Store,
		Amount:    e.Amount,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func FromDataModel(e *expenseDatamodel.Expense) *Expense {
	return &Expense{
		ID:        e.ID,
		Date:      e.Date,
		Category:  e.Category,
		ItemName:  e.ItemName,
		Store:     e.Store,
		Amount:    e.Amount,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func FromDataModelSlice(expenses []*expenseDatamodel.Expense) []*Expense {
	result := make([]*Expense, len(expenses))
	for i, e := range expenses {
		result[i] = FromDataModel(e)
	}
	return result
}

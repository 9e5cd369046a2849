package category

// Summary is one row of the per-category aggregate over the expenses table.
type Summary struct {
	Name         string `gorm:"column:name"`
	ExpenseCount int64  `gorm:"column:expense_count"`
	TotalAmount  int64  `gorm:"column:total_amount"`
}

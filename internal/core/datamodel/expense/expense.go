package expense

import "time"

type Expense struct {
	ID        int64     `gorm:"primaryKey"`
	Date      string    `gorm:"column:date;not null"`
	Category  string    `gorm:"column:category;not null"`
	ItemName  string    `gorm:"column:item_name;not null;default:''"`
	Store     string    `gorm:"column:store;not null;default:''"`
	Amount    int64     `gorm:"column:amount;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (Expense) TableName() string {
	return "expenses"
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a single spending record — either reported directly by the user
// or reported by the foreman as settlement for cash handed to him earlier.
// Only the amount is ever mutated after creation.
type Expense struct {
	ID               uint            `gorm:"primaryKey"`
	UserID           uint            `gorm:"index"`
	CategoryID       uint            `gorm:"index"`
	Amount           decimal.Decimal `gorm:"type:DECIMAL(20,2)"`
	Description      string
	IsForemanExpense bool `gorm:"default:false"`
	CreatedAt        time.Time
	Category         Category `gorm:"foreignKey:CategoryID"`
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ForemanTransaction records cash handed to the foreman. These rows are
// immutable: there is no edit or delete for them, only settlement expenses
// that reduce the outstanding balance.
type ForemanTransaction struct {
	ID          uint            `gorm:"primaryKey"`
	UserID      uint            `gorm:"index"`
	Amount      decimal.Decimal `gorm:"type:DECIMAL(20,2)"`
	Description string
	CreatedAt   time.Time
}

// ForemanBalance is the outstanding-cash picture for one user.
// TotalSpent sums all of the user's expenses: every rouble flows through the
// foreman, so direct expenses count against the advance too.
type ForemanBalance struct {
	TotalGiven  decimal.Decimal
	TotalSpent  decimal.Decimal
	Outstanding decimal.Decimal
}

// CategoryTotal is one row of the per-category spending summary.
type CategoryTotal struct {
	Name  string
	Total decimal.Decimal
}

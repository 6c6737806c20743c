package model

import "time"

// Category is the shared dictionary of material / work labels (кирпич, цемент, сантехника …).
// Names are stored trimmed and lower-cased, so the unique index doubles as a
// case-insensitive uniqueness guarantee. Categories are never deleted.
type Category struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	CreatedAt time.Time
	Expenses  []Expense `gorm:"foreignKey:CategoryID"`
}

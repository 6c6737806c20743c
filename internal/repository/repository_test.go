package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"house-expenses/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, telegramID int64) *model.User {
	t.Helper()
	user, err := NewUserRepository(db).UpsertFromTelegram(context.Background(), telegramID, "Иван", "", "ivan")
	require.NoError(t, err)
	return user
}

func mustCategory(t *testing.T, db *gorm.DB, name string) *model.Category {
	t.Helper()
	category, err := NewCategoryRepository(db).GetOrCreate(context.Background(), name)
	require.NoError(t, err)
	return category
}

func mustExpense(t *testing.T, db *gorm.DB, userID, categoryID uint, amount string) *model.Expense {
	t.Helper()
	expense := &model.Expense{
		UserID:     userID,
		CategoryID: categoryID,
		Amount:     decimal.RequireFromString(amount),
	}
	require.NoError(t, NewLedgerRepository(db).CreateExpense(context.Background(), expense))
	return expense
}

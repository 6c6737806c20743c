package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"house-expenses/internal/model"
	"house-expenses/internal/repository"
)

type fixture struct {
	db         *gorm.DB
	categories *repository.CategoryRepository
	ledgerRepo *repository.LedgerRepository
	ledger     *LedgerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	categories := repository.NewCategoryRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	return &fixture{
		db:         db,
		categories: categories,
		ledgerRepo: ledgerRepo,
		ledger:     NewLedgerService(db, ledgerRepo, categories),
	}
}

func (f *fixture) user(t *testing.T, telegramID int64) *model.User {
	t.Helper()
	user, err := repository.NewUserRepository(f.db).UpsertFromTelegram(context.Background(), telegramID, "Иван", "", "ivan")
	require.NoError(t, err)
	return user
}

func (f *fixture) category(t *testing.T, name string) *model.Category {
	t.Helper()
	category, err := f.categories.GetOrCreate(context.Background(), name)
	require.NoError(t, err)
	return category
}

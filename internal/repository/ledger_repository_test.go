package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-expenses/internal/model"
)

func TestTotalExpensesZeroOnEmptyLedger(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, 1)

	total, err := NewLedgerRepository(db).TotalExpenses(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero(), "got %s", total)
}

func TestTotalExpensesSumsAllAmounts(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, 1)
	category := mustCategory(t, db, "кирпич")

	mustExpense(t, db, user.ID, category.ID, "100.10")
	mustExpense(t, db, user.ID, category.ID, "200.20")
	mustExpense(t, db, user.ID, category.ID, "0.01")

	total, err := NewLedgerRepository(db).TotalExpenses(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.31", total.StringFixed(2))
}

func TestSummaryByCategoryIsolatedPerUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	alice := newTestUser(t, db, 1)
	bob := newTestUser(t, db, 2)

	cement := mustCategory(t, db, "цемент")
	brick := mustCategory(t, db, "кирпич")

	mustExpense(t, db, alice.ID, cement.ID, "500")
	mustExpense(t, db, alice.ID, cement.ID, "250")
	mustExpense(t, db, bob.ID, brick.ID, "900")

	summary, err := repo.SummaryByCategory(ctx, alice.ID)
	require.NoError(t, err)
	// Brick has no expenses for alice and must not appear, even zero-filled.
	require.Len(t, summary, 1)
	assert.Equal(t, "цемент", summary[0].Name)
	assert.Equal(t, "750.00", summary[0].Total.StringFixed(2))
}

func TestSummaryByCategoryOrderedByName(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, 1)

	for _, name := range []string{"штукатурка", "арматура", "песок"} {
		category := mustCategory(t, db, name)
		mustExpense(t, db, user.ID, category.ID, "10")
	}

	summary, err := NewLedgerRepository(db).SummaryByCategory(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "арматура", summary[0].Name)
	assert.Equal(t, "песок", summary[1].Name)
	assert.Equal(t, "штукатурка", summary[2].Name)
}

func TestDeleteExpenseReportsWhetherRowExisted(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	user := newTestUser(t, db, 1)
	category := mustCategory(t, db, "кирпич")
	expense := mustExpense(t, db, user.ID, category.ID, "100")

	deleted, err := repo.DeleteExpense(ctx, user.ID, expense.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteExpense(ctx, user.ID, expense.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeleteExpenseScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	alice := newTestUser(t, db, 1)
	bob := newTestUser(t, db, 2)
	category := mustCategory(t, db, "кирпич")
	expense := mustExpense(t, db, alice.ID, category.ID, "100")

	deleted, err := repo.DeleteExpense(ctx, bob.ID, expense.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "bob must not delete alice's expense")

	total, err := repo.TotalExpenses(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", total.StringFixed(2))
}

func TestListRecentNewestFirstWithCategory(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	user := newTestUser(t, db, 1)
	category := mustCategory(t, db, "кирпич")

	mustExpense(t, db, user.ID, category.ID, "1")
	second := mustExpense(t, db, user.ID, category.ID, "2")
	third := mustExpense(t, db, user.ID, category.ID, "3")

	recent, err := repo.ListRecent(ctx, user.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, third.ID, recent[0].ID)
	assert.Equal(t, second.ID, recent[1].ID)
	assert.Equal(t, "кирпич", recent[0].Category.Name, "category must be resolved, not a bare id")
}

func TestForemanBalanceCountsAllExpenses(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	user := newTestUser(t, db, 1)
	category := mustCategory(t, db, "песок")

	require.NoError(t, repo.CreateForemanTransaction(ctx, &model.ForemanTransaction{
		UserID: user.ID,
		Amount: decimal.RequireFromString("5000"),
	}))

	// One foreman-flagged and one direct expense: both count against the
	// advance.
	require.NoError(t, repo.CreateExpense(ctx, &model.Expense{
		UserID:           user.ID,
		CategoryID:       category.ID,
		Amount:           decimal.RequireFromString("2000"),
		IsForemanExpense: true,
	}))
	mustExpense(t, db, user.ID, category.ID, "500")

	balance, err := repo.ForemanBalance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "5000.00", balance.TotalGiven.StringFixed(2))
	assert.Equal(t, "2500.00", balance.TotalSpent.StringFixed(2))
	assert.Equal(t, "2500.00", balance.Outstanding.StringFixed(2))
	assert.True(t, balance.Outstanding.Equal(balance.TotalGiven.Sub(balance.TotalSpent)))
}

func TestForemanBalanceScopedToUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	alice := newTestUser(t, db, 1)
	bob := newTestUser(t, db, 2)

	require.NoError(t, repo.CreateForemanTransaction(ctx, &model.ForemanTransaction{
		UserID: alice.ID,
		Amount: decimal.RequireFromString("3000"),
	}))

	balance, err := repo.ForemanBalance(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, balance.TotalGiven.IsZero())
	assert.True(t, balance.Outstanding.IsZero())
}

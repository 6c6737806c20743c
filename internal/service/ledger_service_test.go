package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddExpenseRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1)
	category := f.category(t, "кирпич")
	ctx := context.Background()

	for _, amount := range []string{"0", "-1", "-0.01"} {
		_, err := f.ledger.AddExpense(ctx, user, category.ID, decimal.RequireFromString(amount), "", false)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %s", amount)
	}

	total, err := f.ledgerRepo.TotalExpenses(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestAddExpenseUnknownCategory(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1)

	_, err := f.ledger.AddExpense(context.Background(), user, 4242, decimal.RequireFromString("100"), "", false)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestAddForemanTransactionRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1)

	_, err := f.ledger.AddForemanTransaction(context.Background(), user, decimal.Zero, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestUpdateExpenseAmountOverwritesInPlace(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1)
	category := f.category(t, "кирпич")
	ctx := context.Background()

	expense, err := f.ledger.AddExpense(ctx, user, category.ID, decimal.RequireFromString("100"), "десять штук", false)
	require.NoError(t, err)

	updated, err := f.ledger.UpdateExpenseAmount(ctx, user, expense.ID, decimal.RequireFromString("150.50"))
	require.NoError(t, err)
	assert.Equal(t, expense.ID, updated.ID)
	assert.Equal(t, "150.50", updated.Amount.StringFixed(2))
	assert.Equal(t, "десять штук", updated.Description, "only the amount is mutable")

	total, err := f.ledgerRepo.TotalExpenses(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "150.50", total.StringFixed(2))
}

func TestUpdateExpenseAmountNotFoundAndForeignAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, 1)
	bob := f.user(t, 2)
	category := f.category(t, "кирпич")
	ctx := context.Background()

	expense, err := f.ledger.AddExpense(ctx, alice, category.ID, decimal.RequireFromString("100"), "", false)
	require.NoError(t, err)

	_, missingErr := f.ledger.UpdateExpenseAmount(ctx, alice, 9999, decimal.RequireFromString("1"))
	_, foreignErr := f.ledger.UpdateExpenseAmount(ctx, bob, expense.ID, decimal.RequireFromString("1"))

	assert.ErrorIs(t, missingErr, ErrRecordNotFound)
	assert.ErrorIs(t, foreignErr, ErrRecordNotFound)
	assert.Equal(t, missingErr, foreignErr, "the two outcomes must not be distinguishable")
}

func TestUpdateExpenseAmountRejectsNonPositive(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1)
	category := f.category(t, "кирпич")
	ctx := context.Background()

	expense, err := f.ledger.AddExpense(ctx, user, category.ID, decimal.RequireFromString("100"), "", false)
	require.NoError(t, err)

	_, err = f.ledger.UpdateExpenseAmount(ctx, user, expense.ID, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDeleteExpenseThenGetAndBalance(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1)
	category := f.category(t, "кирпич")
	ctx := context.Background()

	_, err := f.ledger.AddForemanTransaction(ctx, user, decimal.RequireFromString("1000"), "")
	require.NoError(t, err)
	expense, err := f.ledger.AddExpense(ctx, user, category.ID, decimal.RequireFromString("400"), "", false)
	require.NoError(t, err)

	deleted, err := f.ledger.DeleteExpense(ctx, user, expense.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = f.ledger.GetExpense(ctx, user, expense.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	balance, err := f.ledger.ForemanBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", balance.Outstanding.StringFixed(2), "deleted amount must not count as spent")
}

func TestForemanBalanceIdentityAfterEveryMutation(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1)
	category := f.category(t, "песок")
	ctx := context.Background()

	check := func() {
		balance, err := f.ledger.ForemanBalance(ctx, user)
		require.NoError(t, err)
		assert.True(t, balance.Outstanding.Equal(balance.TotalGiven.Sub(balance.TotalSpent)),
			"outstanding %s != given %s - spent %s", balance.Outstanding, balance.TotalGiven, balance.TotalSpent)
	}

	check()
	_, err := f.ledger.AddForemanTransaction(ctx, user, decimal.RequireFromString("3000"), "")
	require.NoError(t, err)
	check()
	expense, err := f.ledger.AddExpense(ctx, user, category.ID, decimal.RequireFromString("500"), "", true)
	require.NoError(t, err)
	check()
	_, err = f.ledger.UpdateExpenseAmount(ctx, user, expense.ID, decimal.RequireFromString("700"))
	require.NoError(t, err)
	check()
	_, err = f.ledger.DeleteExpense(ctx, user, expense.ID)
	require.NoError(t, err)
	check()
}

func TestConcurrentAddExpenseNoLostUpdates(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1)
	category := f.category(t, "кирпич")
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.AddExpense(ctx, user, category.ID, decimal.RequireFromString(fmt.Sprintf("%d", 100+i)), "", false)
		}(i)
	}
	wg.Wait()

	expected := decimal.Zero
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		expected = expected.Add(decimal.NewFromInt(int64(100 + i)))
	}

	total, err := f.ledgerRepo.TotalExpenses(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, total.Equal(expected), "total %s, expected %s", total, expected)
}

func TestReportUsesOneSnapshot(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 1)
	category := f.category(t, "кирпич")
	ctx := context.Background()

	_, err := f.ledger.AddForemanTransaction(ctx, user, decimal.RequireFromString("2000"), "")
	require.NoError(t, err)
	_, err = f.ledger.AddExpense(ctx, user, category.ID, decimal.RequireFromString("800"), "", false)
	require.NoError(t, err)

	report, err := f.ledger.Report(ctx, user)
	require.NoError(t, err)
	require.Len(t, report.ByCategory, 1)
	assert.Equal(t, "кирпич", report.ByCategory[0].Name)
	assert.Equal(t, "800.00", report.Total.StringFixed(2))
	assert.True(t, report.Total.Equal(report.Balance.TotalSpent), "report total and balance must agree")
	assert.Equal(t, "1200.00", report.Balance.Outstanding.StringFixed(2))
}

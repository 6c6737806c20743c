package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"house-expenses/internal/model"
)

// LedgerRepository persists expenses and foreman transactions and computes
// the aggregates over them. Every query is scoped to one owning user.
//
// Sums are folded in Go over decimal amounts rather than pushed down as SQL
// SUM: SQLite would coerce the DECIMAL column to float on the way.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *LedgerRepository) WithTx(tx *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

func (r *LedgerRepository) CreateExpense(ctx context.Context, expense *model.Expense) error {
	if err := r.db.WithContext(ctx).Create(expense).Error; err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (r *LedgerRepository) CreateForemanTransaction(ctx context.Context, tx *model.ForemanTransaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("create foreman transaction: %w", err)
	}
	return nil
}

// FindExpense looks an expense up scoped to its owner. A wrong id and a
// wrong owner both come back as gorm.ErrRecordNotFound.
func (r *LedgerRepository) FindExpense(ctx context.Context, userID, expenseID uint) (*model.Expense, error) {
	var expense model.Expense
	if err := r.db.WithContext(ctx).Preload("Category").
		Where("user_id = ? AND id = ?", userID, expenseID).
		First(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *LedgerRepository) SaveExpense(ctx context.Context, expense *model.Expense) error {
	if err := r.db.WithContext(ctx).Save(expense).Error; err != nil {
		return fmt.Errorf("save expense: %w", err)
	}
	return nil
}

// DeleteExpense removes the user's expense and reports whether a row went away.
func (r *LedgerRepository) DeleteExpense(ctx context.Context, userID, expenseID uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, expenseID).
		Delete(&model.Expense{})
	if result.Error != nil {
		return false, fmt.Errorf("delete expense: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListRecent returns the user's newest expenses with categories resolved.
func (r *LedgerRepository) ListRecent(ctx context.Context, userID uint, limit int) ([]model.Expense, error) {
	var expenses []model.Expense
	if err := r.db.WithContext(ctx).Preload("Category").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// SummaryByCategory sums the user's expenses per category, name ascending.
// Categories without a matching expense are not zero-filled.
func (r *LedgerRepository) SummaryByCategory(ctx context.Context, userID uint) ([]model.CategoryTotal, error) {
	var expenses []model.Expense
	if err := r.db.WithContext(ctx).Preload("Category").
		Where("user_id = ?", userID).
		Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	for _, expense := range expenses {
		totals[expense.Category.Name] = totals[expense.Category.Name].Add(expense.Amount)
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	summary := make([]model.CategoryTotal, 0, len(names))
	for _, name := range names {
		summary = append(summary, model.CategoryTotal{Name: name, Total: totals[name]})
	}
	return summary, nil
}

// TotalExpenses is decimal zero for a user with no expenses.
func (r *LedgerRepository) TotalExpenses(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var expenses []model.Expense
	if err := r.db.WithContext(ctx).Select("amount").
		Where("user_id = ?", userID).
		Find(&expenses).Error; err != nil {
		return decimal.Zero, fmt.Errorf("load expense amounts: %w", err)
	}

	total := decimal.Zero
	for _, expense := range expenses {
		total = total.Add(expense.Amount)
	}
	return total, nil
}

// ForemanBalance computes the outstanding balance from a single snapshot:
// both sums run inside one transaction, so concurrent writers cannot make
// given and spent reflect different points in time.
func (r *LedgerRepository) ForemanBalance(ctx context.Context, userID uint) (model.ForemanBalance, error) {
	var balance model.ForemanBalance
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var given []model.ForemanTransaction
		if err := tx.Select("amount").Where("user_id = ?", userID).Find(&given).Error; err != nil {
			return fmt.Errorf("load foreman transactions: %w", err)
		}

		totalGiven := decimal.Zero
		for _, t := range given {
			totalGiven = totalGiven.Add(t.Amount)
		}

		totalSpent, err := r.WithTx(tx).TotalExpenses(ctx, userID)
		if err != nil {
			return err
		}

		balance = model.ForemanBalance{
			TotalGiven:  totalGiven,
			TotalSpent:  totalSpent,
			Outstanding: totalGiven.Sub(totalSpent),
		}
		return nil
	})
	if err != nil {
		return model.ForemanBalance{}, err
	}
	return balance, nil
}

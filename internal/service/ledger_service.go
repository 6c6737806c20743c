package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"house-expenses/internal/model"
	"house-expenses/internal/repository"
)

// LedgerService validates and applies ledger mutations. Every mutating
// operation runs inside its own transaction; aggregate reads come from a
// single consistent snapshot.
type LedgerService struct {
	db         *gorm.DB
	ledger     *repository.LedgerRepository
	categories *repository.CategoryRepository
}

func NewLedgerService(db *gorm.DB, ledger *repository.LedgerRepository, categories *repository.CategoryRepository) *LedgerService {
	return &LedgerService{db: db, ledger: ledger, categories: categories}
}

// AddExpense persists one expense after validating the amount and the
// category reference.
func (s *LedgerService) AddExpense(ctx context.Context, user *model.User, categoryID uint, amount decimal.Decimal, description string, isForeman bool) (*model.Expense, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	expense := model.Expense{
		UserID:           user.ID,
		CategoryID:       categoryID,
		Amount:           amount,
		Description:      description,
		IsForemanExpense: isForeman,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.categories.WithTx(tx).GetByID(ctx, categoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownCategory
			}
			return err
		}
		return s.ledger.WithTx(tx).CreateExpense(ctx, &expense)
	})
	if err != nil {
		if errors.Is(err, ErrUnknownCategory) {
			return nil, ErrUnknownCategory
		}
		return nil, wrapStorage("add expense", err)
	}
	return &expense, nil
}

func (s *LedgerService) AddForemanTransaction(ctx context.Context, user *model.User, amount decimal.Decimal, description string) (*model.ForemanTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tx := model.ForemanTransaction{
		UserID:      user.ID,
		Amount:      amount,
		Description: description,
	}
	if err := s.ledger.CreateForemanTransaction(ctx, &tx); err != nil {
		return nil, wrapStorage("add foreman transaction", err)
	}
	return &tx, nil
}

// UpdateExpenseAmount overwrites the amount of the user's expense in place.
// A missing id and someone else's id both come back as ErrRecordNotFound.
func (s *LedgerService) UpdateExpenseAmount(ctx context.Context, user *model.User, expenseID uint, newAmount decimal.Decimal) (*model.Expense, error) {
	if !newAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var updated *model.Expense
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		expense, err := ledger.FindExpense(ctx, user.ID, expenseID)
		if err != nil {
			return err
		}
		expense.Amount = newAmount
		if err := ledger.SaveExpense(ctx, expense); err != nil {
			return err
		}
		updated = expense
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, wrapStorage("update expense", err)
	}
	return updated, nil
}

// DeleteExpense removes the user's expense unconditionally; confirmation is
// the presentation layer's business.
func (s *LedgerService) DeleteExpense(ctx context.Context, user *model.User, expenseID uint) (bool, error) {
	deleted, err := s.ledger.DeleteExpense(ctx, user.ID, expenseID)
	if err != nil {
		return false, wrapStorage("delete expense", err)
	}
	return deleted, nil
}

func (s *LedgerService) GetExpense(ctx context.Context, user *model.User, expenseID uint) (*model.Expense, error) {
	expense, err := s.ledger.FindExpense(ctx, user.ID, expenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, wrapStorage("get expense", err)
	}
	return expense, nil
}

func (s *LedgerService) ListRecent(ctx context.Context, user *model.User, limit int) ([]model.Expense, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.ledger.ListRecent(ctx, user.ID, limit)
}

func (s *LedgerService) ListCategories(ctx context.Context, user *model.User) ([]model.Category, error) {
	return s.categories.ListUsedBy(ctx, user.ID)
}

func (s *LedgerService) ForemanBalance(ctx context.Context, user *model.User) (model.ForemanBalance, error) {
	return s.ledger.ForemanBalance(ctx, user.ID)
}

// Report is the full spending picture: per-category totals, the grand
// total and the foreman balance, all read from one transaction snapshot.
type Report struct {
	ByCategory []model.CategoryTotal
	Total      decimal.Decimal
	Balance    model.ForemanBalance
}

func (s *LedgerService) Report(ctx context.Context, user *model.User) (Report, error) {
	var report Report
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)

		summary, err := ledger.SummaryByCategory(ctx, user.ID)
		if err != nil {
			return err
		}

		total, err := ledger.TotalExpenses(ctx, user.ID)
		if err != nil {
			return err
		}

		balance, err := ledger.ForemanBalance(ctx, user.ID)
		if err != nil {
			return err
		}

		report = Report{ByCategory: summary, Total: total, Balance: balance}
		return nil
	})
	if err != nil {
		return Report{}, wrapStorage("build report", err)
	}
	return report, nil
}

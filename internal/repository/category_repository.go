package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"house-expenses/internal/model"
)

// CategoryRepository manages the global dictionary of spending categories.
// The dictionary is shared across users; per-user visibility is handled by
// ListUsedBy.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// WithTx returns a copy bound to the given transaction handle, so category
// creation commits or rolls back together with the expense it backs.
func (r *CategoryRepository) WithTx(tx *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

// NormalizeName is the canonical form categories are stored and compared in.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FindByName does a case-insensitive exact match after trimming.
// Returns nil without error when the category does not exist.
func (r *CategoryRepository) FindByName(ctx context.Context, name string) (*model.Category, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, nil
	}

	var category model.Category
	err := r.db.WithContext(ctx).Where("name = ?", normalized).First(&category).Error
	switch {
	case err == nil:
		return &category, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find category: %w", err)
	}
}

// GetOrCreate looks the category up by normalized name and inserts it when
// absent. Two creators racing on the same name are resolved by the unique
// index: the loser retries as a lookup instead of surfacing a conflict.
func (r *CategoryRepository) GetOrCreate(ctx context.Context, name string) (*model.Category, error) {
	category, err := r.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if category != nil {
		return category, nil
	}

	created := model.Category{Name: NormalizeName(name)}
	if err := r.db.WithContext(ctx).Create(&created).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return r.FindByName(ctx, name)
		}
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &created, nil
}

// GetByID returns gorm.ErrRecordNotFound for an unknown id.
func (r *CategoryRepository) GetByID(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// ListUsedBy returns the categories for which the user has at least one
// expense, ordered by name. Another user's spending never leaks in here.
func (r *CategoryRepository) ListUsedBy(ctx context.Context, userID uint) ([]model.Category, error) {
	var categories []model.Category
	err := r.db.WithContext(ctx).
		Distinct("categories.*").
		Joins("JOIN expenses ON expenses.category_id = categories.id").
		Where("expenses.user_id = ?", userID).
		Order("categories.name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

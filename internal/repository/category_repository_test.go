package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-expenses/internal/model"
)

func TestGetOrCreateNormalizesName(t *testing.T) {
	db := newTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	category, err := repo.GetOrCreate(ctx, "  Цемент ")
	require.NoError(t, err)
	assert.Equal(t, "цемент", category.Name)
}

func TestGetOrCreateIdempotentAcrossCaseAndWhitespace(t *testing.T) {
	db := newTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "Кирпич")
	require.NoError(t, err)

	for _, name := range []string{"кирпич", " КИРПИЧ ", "Кирпич"} {
		again, err := repo.GetOrCreate(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID, "name %q must resolve to the same category", name)
	}

	var count int64
	require.NoError(t, db.Model(&model.Category{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreateConcurrentCreatorsProduceOneRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	const workers = 8
	ids := make([]uint, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			category, err := repo.GetOrCreate(ctx, "песок")
			if assert.NoError(t, err) {
				ids[i] = category.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	var count int64
	require.NoError(t, db.Model(&model.Category{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestFindByNameMissReturnsNil(t *testing.T) {
	db := newTestDB(t)
	repo := NewCategoryRepository(db)

	category, err := repo.FindByName(context.Background(), "плитка")
	require.NoError(t, err)
	assert.Nil(t, category)
}

func TestListUsedByShowsOnlyOwnCategories(t *testing.T) {
	db := newTestDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	alice := newTestUser(t, db, 100)
	bob := newTestUser(t, db, 200)

	brick := mustCategory(t, db, "кирпич")
	sand := mustCategory(t, db, "песок")
	cement := mustCategory(t, db, "цемент")

	mustExpense(t, db, alice.ID, cement.ID, "500")
	mustExpense(t, db, alice.ID, brick.ID, "1000")
	mustExpense(t, db, bob.ID, sand.ID, "200")

	used, err := repo.ListUsedBy(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, used, 2)
	// Ordered by name; bob's sand is invisible.
	assert.Equal(t, "кирпич", used[0].Name)
	assert.Equal(t, "цемент", used[1].Name)

	none, err := repo.ListUsedBy(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

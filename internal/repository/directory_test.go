package repository

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nammakumta/directory/internal/domain"
)

// Runs against a disposable database named by KUMTA_TEST_DATABASE_DSN.
func testRepository(t *testing.T) DirectoryRepository {
	t.Helper()

	dsn := os.Getenv("KUMTA_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("KUMTA_TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, EnsureSchema(ctx, db))
	_, err = db.Exec(ctx, `TRUNCATE categories, subcategories, shops, advertisements`)
	require.NoError(t, err)

	return NewDirectoryRepository(db)
}

func TestShopsKeepBackendOrder(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	page2 := []*domain.Shop{
		{ID: "s3", Name: "Bhatkal Bakery", SubcategoryID: domain.NewRef("sc1")},
	}
	page1 := []*domain.Shop{
		{ID: "s1", Name: "Kamat Stores", SubcategoryID: domain.NewRef("sc1"), CategoryID: domain.NewRef("c1")},
		{ID: "s2", Name: "Udupi Hotel", SubcategoryID: domain.NewRef("sc2"), CategoryID: domain.NewRef("c1")},
	}
	require.NoError(t, repo.SaveShops(ctx, 2, page2))
	require.NoError(t, repo.SaveShops(ctx, 0, page1))

	shops, err := repo.ListShops(ctx)
	require.NoError(t, err)
	require.Len(t, shops, 3)
	assert.Equal(t, "s1", shops[0].ID)
	assert.Equal(t, "s2", shops[1].ID)
	assert.Equal(t, "s3", shops[2].ID)

	bySub, err := repo.ListShopsBySubcategory(ctx, "sc1")
	require.NoError(t, err)
	require.Len(t, bySub, 2)

	byCat, err := repo.ListShopsByCategory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, byCat, 2)

	shop, err := repo.GetShop(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, "sc2", shop.SubcategoryID.Key())

	_, err = repo.GetShop(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReferenceCollectionsAreReplaced(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCategories(ctx, []*domain.Category{{ID: "c1", Name: "Old"}}))
	require.NoError(t, repo.SaveCategories(ctx, []*domain.Category{{ID: "c2", Name: "Grocery"}, {ID: "c3", Name: "Tailors"}}))

	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Grocery", cats[0].Name)

	require.NoError(t, repo.SaveSubcategories(ctx, []*domain.Subcategory{
		{ID: "sc1", Name: "Bakeries", CategoryID: domain.NewRef("c2")},
		{ID: "sc2", Name: "Menswear", CategoryID: domain.NewRef("c3")},
	}))
	subs, err := repo.ListSubcategories(ctx, "c3")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "Menswear", subs[0].Name)

	require.NoError(t, repo.SaveAdvertisements(ctx, []*domain.Advertisement{{ID: "ad1", Title: "Diwali sale"}}))
	ad, err := repo.GetAdvertisement(ctx, "ad1")
	require.NoError(t, err)
	assert.Equal(t, "Diwali sale", ad.Title)
}

func TestSaveSkipsEntriesWithoutID(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCategories(ctx, []*domain.Category{nil, {Name: "No id"}, {ID: "c1", Name: "Grocery"}}))
	cats, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "c1", cats[0].ID)

	require.NoError(t, repo.SaveSubcategories(ctx, []*domain.Subcategory{nil, {ID: "sc1", CategoryID: domain.NewRef("c1")}}))
	subs, err := repo.ListSubcategories(ctx, "")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.NoError(t, repo.SaveAdvertisements(ctx, []*domain.Advertisement{{Title: "No id"}, nil}))
	ads, err := repo.ListAdvertisements(ctx)
	require.NoError(t, err)
	assert.Empty(t, ads)

	require.NoError(t, repo.SaveShops(ctx, 0, []*domain.Shop{nil, {ID: "s1"}}))
	shops, err := repo.ListShops(ctx)
	require.NoError(t, err)
	assert.Len(t, shops, 1)
}

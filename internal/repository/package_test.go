package repository

import (
	"context"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/testutil"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var monthItem = model.CatalogItem{ProductID: "com.calling_10_minutes_con", Cost: "¥1,200", Minute: 300, Name: "300分"}

func TestFindActiveByTypeIgnoresInactive(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPackageRepository(db)
	ctx := context.Background()

	testutil.CreatePackage(t, db, model.PackageMonth, model.PackageStatusInactive, monthItem)

	_, err := repo.FindActiveByType(ctx, model.PackageMonth)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	testutil.CreatePackage(t, db, model.PackageMinute, model.PackageStatusActive, monthItem)

	pkg, err := repo.FindActiveByType(ctx, model.PackageMinute)
	require.NoError(t, err)

	catalog, err := pkg.Catalog()
	require.NoError(t, err)
	assert.Equal(t, []model.CatalogItem{monthItem}, catalog.Items)
}

func TestPackageUpsertReplacesDescription(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPackageRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &model.Package{
		Package:     model.PackageMonth,
		Status:      model.PackageStatusActive,
		Description: datatypes.JSON(`[]`),
	}))
	require.NoError(t, repo.Upsert(ctx, &model.Package{
		Package:     model.PackageMonth,
		Status:      model.PackageStatusActive,
		Description: datatypes.JSON(`[{"id":"x","cost":"¥100","minute":10,"name":"n"}]`),
	}))

	var count int64
	require.NoError(t, db.Model(&model.Package{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	pkg, err := repo.FindActiveByType(ctx, model.PackageMonth)
	require.NoError(t, err)
	catalog, err := pkg.Catalog()
	require.NoError(t, err)
	require.Len(t, catalog.Items, 1)
	assert.Equal(t, "x", catalog.Items[0].ProductID)
}

func TestCachedPackageRepository(t *testing.T) {
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewCachedPackageRepository(NewPackageRepository(db), rdb, time.Minute, nil)
	ctx := context.Background()

	testutil.CreatePackage(t, db, model.PackageMonth, model.PackageStatusActive, monthItem)

	first, err := repo.FindActiveByType(ctx, model.PackageMonth)
	require.NoError(t, err)
	assert.True(t, mr.Exists(packageCacheKey(model.PackageMonth)))

	// served from cache even after the row is gone
	require.NoError(t, db.Where("1 = 1").Delete(&model.Package{}).Error)
	cached, err := repo.FindActiveByType(ctx, model.PackageMonth)
	require.NoError(t, err)
	assert.Equal(t, first.ID, cached.ID)

	mr.FastForward(2 * time.Minute)
	_, err = repo.FindActiveByType(ctx, model.PackageMonth)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCachedPackageRepositoryInvalidatesOnUpsert(t *testing.T) {
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewCachedPackageRepository(NewPackageRepository(db), rdb, time.Minute, nil)
	ctx := context.Background()

	testutil.CreatePackage(t, db, model.PackageMonth, model.PackageStatusActive, monthItem)
	_, err := repo.FindActiveByType(ctx, model.PackageMonth)
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, &model.Package{
		Package:     model.PackageMonth,
		Status:      model.PackageStatusActive,
		Description: datatypes.JSON(`[]`),
	}))
	assert.False(t, mr.Exists(packageCacheKey(model.PackageMonth)))
}

func TestCachedPackageRepositoryDisabledWithoutRedis(t *testing.T) {
	inner := NewPackageRepository(testutil.NewDB(t))
	assert.Same(t, inner, NewCachedPackageRepository(inner, nil, time.Minute, nil))
}

func TestPackageUpsertKeepsInactiveStatus(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPackageRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &model.Package{
		Package:     model.PackageMinute,
		Status:      model.PackageStatusInactive,
		Description: datatypes.JSON(`[]`),
	}))

	_, err := repo.FindActiveByType(ctx, model.PackageMinute)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

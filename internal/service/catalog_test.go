package service

import (
	"context"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/repository"
	"iap-entitlement-service/internal/testutil"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"¥1,200", "1200"},
		{"1200", "1200"},
		{"¥980", "980"},
		{"$12.99", "12.99"},
		{" ¥ 12,000 ", "12000"},
	}
	for _, tt := range tests {
		got, err := ParseCost(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "%s parsed as %s", tt.in, got)
	}

	for _, bad := range []string{"free", "¥-100", "-0.01"} {
		_, err := ParseCost(bad)
		assert.Error(t, err, bad)
	}

	zero, err := ParseCost("¥0")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestCatalogResolver(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreatePackage(t, db, model.PackageMonth, model.PackageStatusActive,
		model.CatalogItem{ProductID: "com.calling_10_minutes_con", Cost: "¥1,200", Minute: 300, Name: "月額プラン"},
		model.CatalogItem{ProductID: "com.calling_30_minutes", Cost: "¥2,400", Minute: 900, Name: "月額プラン大"},
	)
	testutil.CreatePackage(t, db, model.PackageMinute, model.PackageStatusInactive,
		model.CatalogItem{ProductID: "com.points_100", Cost: "¥120", Minute: 100, Name: "100pt"},
	)
	resolver := NewCatalogResolver(repository.NewPackageRepository(db))
	ctx := context.Background()

	pkg, err := resolver.Resolve(ctx, model.PackageMonth)
	require.NoError(t, err)
	require.Len(t, pkg.Items, 2)

	item, err := resolver.MatchItem(pkg, "com.calling_30_minutes")
	require.NoError(t, err)
	assert.Equal(t, 900, item.Minute)

	_, err = resolver.MatchItem(pkg, "com.unknown")
	assert.ErrorIs(t, err, ErrProductMismatch)

	_, err = resolver.Resolve(ctx, model.PackageMinute)
	assert.ErrorIs(t, err, ErrPackageNotFound)

	_, err = resolver.Resolve(ctx, model.PackageAutoPayment)
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestCatalogListItemsBuildsPlanLabel(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreatePackage(t, db, model.PackageMonth, model.PackageStatusActive,
		model.CatalogItem{ProductID: "com.calling_10_minutes_con", Cost: "¥1,200", Minute: 300, Name: "月額プラン"},
	)
	resolver := NewCatalogResolver(repository.NewPackageRepository(db))

	items, err := resolver.ListItems(context.Background(), model.PackageMonth)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "com.calling_10_minutes_con", items[0].ID)
	assert.Equal(t, "1,200円で月額プラン", items[0].Plan)
}

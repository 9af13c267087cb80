package repository

import (
	"context"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserIncrements(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, &model.User{Name: "u", TotalCall: 10, Point: 5})

	require.NoError(t, repo.AddCallMinutes(ctx, db, u.ID, 300))
	require.NoError(t, repo.AddPoints(ctx, db, u.ID, 20))

	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 310, got.TotalCall)
	assert.Equal(t, 25, got.Point)
}

func TestUserIncrementUnknownUser(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)

	err := repo.AddPoints(context.Background(), db, 404, 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.FindByID(context.Background(), 404)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserIncrementRollsBackWithTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, &model.User{Name: "u"})

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.AddCallMinutes(ctx, tx, u.ID, 300); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	assert.Zero(t, testutil.ReloadUser(t, db, u.ID).TotalCall)
}

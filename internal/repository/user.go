package repository

import (
	"context"
	"iap-entitlement-service/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository interface {
	FindByID(ctx context.Context, userID uint) (*model.User, error)
	AddCallMinutes(ctx context.Context, tx *gorm.DB, userID uint, minutes int) error
	AddPoints(ctx context.Context, tx *gorm.DB, userID uint, points int) error
}

type userRepoImpl struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepoImpl{
		db: db,
	}
}

func (r *userRepoImpl) FindByID(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userRepoImpl) AddCallMinutes(ctx context.Context, tx *gorm.DB, userID uint, minutes int) error {
	return r.increment(ctx, tx, userID, "total_call", minutes)
}

func (r *userRepoImpl) AddPoints(ctx context.Context, tx *gorm.DB, userID uint, points int) error {
	return r.increment(ctx, tx, userID, "point", points)
}

func (r *userRepoImpl) increment(ctx context.Context, tx *gorm.DB, userID uint, column string, n int) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			column:       gorm.Expr(column+" + ?", n),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"iap-entitlement-service/internal/model"
	"time"

	"gorm.io/gorm"
)

var ErrDuplicatePayment = errors.New("payment already recorded for this transaction")

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	// FindActiveByDetail returns nil when the user has no active payment
	// for the transaction.
	FindActiveByDetail(ctx context.Context, tx *gorm.DB, userID uint, detail string) (*model.Payment, error)
	// CountTrials counts trial payments of a package family, voided ones included.
	CountTrials(ctx context.Context, tx *gorm.DB, userID uint, packageType model.PackageType) (int64, error)
	Void(ctx context.Context, tx *gorm.DB, paymentID uint) error
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func IdempotencyKey(userID uint, detail string) string {
	return fmt.Sprintf("%d:%s", userID, detail)
}

func (r *paymentRepoImpl) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	key := IdempotencyKey(payment.UserID, payment.Detail)
	payment.IdempotencyKey = &key
	payment.Status = model.PaymentStatusActive

	err := r.conn(tx).WithContext(ctx).Create(payment).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicatePayment
	}
	return err
}

func (r *paymentRepoImpl) FindActiveByDetail(ctx context.Context, tx *gorm.DB, userID uint, detail string) (*model.Payment, error) {
	var payment model.Payment
	err := r.conn(tx).WithContext(ctx).
		Where("user_id = ? AND detail = ? AND status = ?", userID, detail, model.PaymentStatusActive).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) CountTrials(ctx context.Context, tx *gorm.DB, userID uint, packageType model.PackageType) (int64, error) {
	var count int64
	err := r.conn(tx).WithContext(ctx).
		Unscoped().
		Model(&model.Payment{}).
		Where("user_id = ? AND package = ? AND is_package_trial = ?", userID, packageType, true).
		Count(&count).Error

	return count, err
}

func (r *paymentRepoImpl) Void(ctx context.Context, tx *gorm.DB, paymentID uint) error {
	now := time.Now()
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND status = ?", paymentID, model.PaymentStatusActive).
		Updates(map[string]interface{}{
			"status":          model.PaymentStatusVoided,
			"idempotency_key": nil,
			"deleted_at":      now,
			"updated_at":      now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

package service

import (
	"context"
	"fmt"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/repository"

	"gorm.io/gorm"
)

type TrialEligibilityEvaluator interface {
	IsEligible(ctx context.Context, tx *gorm.DB, userID uint, packageType model.PackageType, requestType model.RequestType) (bool, error)
}

type trialEvaluatorImpl struct {
	paymentRepo repository.PaymentRepository
}

func NewTrialEligibilityEvaluator(paymentRepo repository.PaymentRepository) TrialEligibilityEvaluator {
	return &trialEvaluatorImpl{
		paymentRepo: paymentRepo,
	}
}

// IsEligible grants the auto-payment trial once per user. Voided payments
// still count so cancelling and buying again does not earn a second trial.
func (e *trialEvaluatorImpl) IsEligible(ctx context.Context, tx *gorm.DB, userID uint, packageType model.PackageType, requestType model.RequestType) (bool, error) {
	if packageType != model.PackageAutoPayment {
		return false, nil
	}
	if requestType == model.RequestRestore || requestType == model.RequestRenew {
		return false, nil
	}

	trials, err := e.paymentRepo.CountTrials(ctx, tx, userID, packageType)
	if err != nil {
		return false, fmt.Errorf("count trial payments: %w", err)
	}

	return trials == 0, nil
}

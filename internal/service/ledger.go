package service

import (
	"context"
	"errors"
	"fmt"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/repository"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EntitlementTarget int

const (
	TargetNone EntitlementTarget = iota
	TargetCallMinutes
	TargetPoints
)

type EntitlementChange struct {
	Target EntitlementTarget
	Amount int
}

// EntitlementFor returns the balance change a purchase earns. Restores are
// recorded but never grant again what the original purchase granted.
func EntitlementFor(packageType model.PackageType, requestType model.RequestType, allowance int) EntitlementChange {
	if requestType == model.RequestRestore {
		return EntitlementChange{Target: TargetNone}
	}

	switch packageType {
	case model.PackageMonth, model.PackageAutoRenewal,
		model.PackageMonthRenew, model.PackageAutoPayment:
		return EntitlementChange{Target: TargetCallMinutes, Amount: allowance}
	case model.PackageMinute:
		return EntitlementChange{Target: TargetPoints, Amount: allowance}
	}
	return EntitlementChange{Target: TargetNone}
}

type PaymentDraft struct {
	UserID              uint
	Plan                string
	Total               decimal.Decimal
	Package             model.PackageType
	Detail              string
	ReceiptData         []byte
	PurchaseDate        time.Time
	PurchaseExpiredDate *time.Time
	IsTrial             bool
}

type EntitlementLedger interface {
	// RecordAndApply inserts the payment and applies delta inside tx. The
	// caller owns tx, so a failure here rolls back everything the caller did
	// in the same transaction.
	RecordAndApply(ctx context.Context, tx *gorm.DB, draft PaymentDraft, delta EntitlementChange) (*model.Payment, error)
}

var errNoTransaction = errors.New("ledger called without a transaction")

type ledgerImpl struct {
	paymentRepo repository.PaymentRepository
	userRepo    repository.UserRepository
}

func NewEntitlementLedger(paymentRepo repository.PaymentRepository, userRepo repository.UserRepository) EntitlementLedger {
	return &ledgerImpl{
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
	}
}

func (l *ledgerImpl) RecordAndApply(ctx context.Context, tx *gorm.DB, draft PaymentDraft, delta EntitlementChange) (*model.Payment, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, errNoTransaction)
	}

	payment := &model.Payment{
		UserID:              draft.UserID,
		Plan:                draft.Plan,
		Total:               draft.Total,
		Package:             draft.Package,
		Detail:              draft.Detail,
		ReceiptData:         draft.ReceiptData,
		PurchaseDate:        draft.PurchaseDate,
		PurchaseExpiredDate: draft.PurchaseExpiredDate,
		IsPackageTrial:      draft.IsTrial,
	}

	err := l.paymentRepo.Create(ctx, tx, payment)
	if errors.Is(err, repository.ErrDuplicatePayment) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateOrExpired, RejectDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: insert payment: %v", ErrPersistence, err)
	}

	switch delta.Target {
	case TargetCallMinutes:
		err = l.userRepo.AddCallMinutes(ctx, tx, draft.UserID, delta.Amount)
	case TargetPoints:
		err = l.userRepo.AddPoints(ctx, tx, draft.UserID, delta.Amount)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: apply entitlement: %v", ErrPersistence, err)
	}

	return payment, nil
}

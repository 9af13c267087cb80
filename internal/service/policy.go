package service

import (
	"iap-entitlement-service/internal/model"
	"time"
)

const (
	RejectDuplicate = "duplicate"
	RejectExpired   = "expired"
)

type Decision struct {
	Accepted bool
	Reason   string // set when rejected
}

type PurchaseAcceptancePolicy interface {
	Decide(existing *model.Payment, packageType model.PackageType, expiresDate *time.Time, now time.Time) Decision
}

type acceptancePolicyImpl struct{}

func NewPurchaseAcceptancePolicy() PurchaseAcceptancePolicy {
	return acceptancePolicyImpl{}
}

// Decide accepts every consumable purchase. Any other package is refused
// when the transaction is already on the ledger or its expiry has passed.
// A purchase without an expiry date is not treated as expired.
func (acceptancePolicyImpl) Decide(existing *model.Payment, packageType model.PackageType, expiresDate *time.Time, now time.Time) Decision {
	if packageType.IsConsumable() {
		return Decision{Accepted: true}
	}

	if existing != nil && existing.Status == model.PaymentStatusActive {
		return Decision{Reason: RejectDuplicate}
	}
	if expiresDate != nil && expiresDate.Before(now) {
		return Decision{Reason: RejectExpired}
	}

	return Decision{Accepted: true}
}

package service

import (
	"errors"
	"fmt"
	"iap-entitlement-service/internal/client"
	"iap-entitlement-service/internal/lock"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountNotEligible = errors.New("account is not eligible for this purchase")
	ErrPackageNotFound    = errors.New("package not found")
	ErrProductMismatch    = errors.New("product id does not exist in package")
	ErrDuplicateOrExpired = errors.New("payment is not accepted")
	ErrAuthorityInvalid   = errors.New("app store rejected the receipt")
	ErrPersistence        = errors.New("persistence failure")
)

// AuthorityRejection is returned when the App Store answered but did not
// accept the receipt. ResultCode is the App Store status.
type AuthorityRejection struct {
	ResultCode int
	Reason     string
}

func (e *AuthorityRejection) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: status %d", ErrAuthorityInvalid, e.ResultCode)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrAuthorityInvalid, e.ResultCode, e.Reason)
}

func (e *AuthorityRejection) Is(target error) bool {
	return target == ErrAuthorityInvalid
}

// ErrorCode maps a reconciliation error to the machine readable code shared
// by the HTTP error envelope and the outcome metric. nil maps to "committed".
func ErrorCode(err error) string {
	var vErr *client.ValidationError
	switch {
	case err == nil:
		return "committed"
	case errors.As(err, &vErr):
		if vErr.Retryable() {
			return "authority_unavailable"
		}
		return "authority_invalid_receipt"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrAccountNotEligible):
		return "account_not_eligible"
	case errors.Is(err, ErrPackageNotFound):
		return "package_not_found"
	case errors.Is(err, ErrProductMismatch):
		return "product_mismatch"
	case errors.Is(err, ErrDuplicateOrExpired):
		return "duplicate_or_expired"
	case errors.Is(err, ErrAuthorityInvalid):
		return "authority_invalid_receipt"
	case errors.Is(err, lock.ErrLockBusy):
		return "request_in_progress"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	}
	return "internal_error"
}

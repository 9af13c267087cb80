package service

import (
	"context"
	"errors"
	"fmt"
	"iap-entitlement-service/internal/client"
	"iap-entitlement-service/internal/dto"
	"iap-entitlement-service/internal/lock"
	"iap-entitlement-service/internal/metrics"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/repository"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	FlowSubscription = "subscription"
	FlowPointTopUp   = "point_top_up"
)

type VerifyPurchaseInput struct {
	Receipt     string
	PackageType model.PackageType
	RequestType model.RequestType
}

type AddPointsInput struct {
	Receipt string
}

// ResolveRequestType folds the legacy is_restore flag into the request type.
func ResolveRequestType(requestType string, isRestore bool) model.RequestType {
	if isRestore {
		return model.RequestRestore
	}
	return model.RequestType(requestType)
}

type PurchaseService interface {
	// VerifyPurchase validates a receipt and records a purchase of any package
	// type. Minute packages credit points, the others credit call minutes.
	VerifyPurchase(ctx context.Context, userID uint, in VerifyPurchaseInput) (*dto.VerifyPurchaseResponse, error)
	// AddPoints is the point top-up flow reserved for the point buyer segment.
	AddPoints(ctx context.Context, userID uint, in AddPointsInput) (*model.Payment, error)
}

type purchaseServiceImpl struct {
	db              *gorm.DB
	appStoreClient  client.AppStoreClient
	sharedSecret    string
	pinnedProductID string
	userRepo        repository.UserRepository
	paymentRepo     repository.PaymentRepository
	catalog         CatalogResolver
	trial           TrialEligibilityEvaluator
	policy          PurchaseAcceptancePolicy
	ledger          EntitlementLedger
	locker          lock.UserLocker
	log             *zap.Logger
	now             func() time.Time
}

func NewPurchaseService(
	db *gorm.DB,
	appStoreClient client.AppStoreClient,
	sharedSecret string,
	pinnedProductID string,
	userRepo repository.UserRepository,
	paymentRepo repository.PaymentRepository,
	catalog CatalogResolver,
	trial TrialEligibilityEvaluator,
	policy PurchaseAcceptancePolicy,
	ledger EntitlementLedger,
	locker lock.UserLocker,
	log *zap.Logger,
) PurchaseService {
	return &purchaseServiceImpl{
		db:              db,
		appStoreClient:  appStoreClient,
		sharedSecret:    sharedSecret,
		pinnedProductID: pinnedProductID,
		userRepo:        userRepo,
		paymentRepo:     paymentRepo,
		catalog:         catalog,
		trial:           trial,
		policy:          policy,
		ledger:          ledger,
		locker:          locker,
		log:             log,
		now:             time.Now,
	}
}

func (s *purchaseServiceImpl) VerifyPurchase(ctx context.Context, userID uint, in VerifyPurchaseInput) (resp *dto.VerifyPurchaseResponse, err error) {
	log := s.log.With(
		zap.String("flow", FlowSubscription),
		zap.Uint("user_id", userID),
		zap.String("package_type", string(in.PackageType)),
		zap.String("request_type", string(in.RequestType)),
	)
	defer func() { s.report(log, FlowSubscription, err) }()

	if in.Receipt == "" || !in.PackageType.Valid() {
		return nil, ErrInvalidRequest
	}
	switch in.RequestType {
	case model.RequestNone, model.RequestRestore, model.RequestRenew:
	default:
		return nil, fmt.Errorf("%w: request type %q", ErrInvalidRequest, in.RequestType)
	}

	if _, err = s.findUser(ctx, userID); err != nil {
		return nil, err
	}

	// held across the App Store call so a client's retries do not all reach
	// Apple; REDIS_LOCK_TTL must outlast APPSTORE_TIMEOUT
	release, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	result, purchase, err := s.validate(ctx, in.Receipt, s.sharedSecret)
	if err != nil {
		return nil, err
	}

	draft, item, err := s.draft(ctx, userID, in.PackageType, result, purchase)
	if err != nil {
		return nil, err
	}
	draft.PurchaseExpiredDate = purchase.ExpiresDate

	payment, err := s.commit(ctx, draft, purchase.ExpiresDate, in.RequestType, EntitlementFor(in.PackageType, in.RequestType, item.Minute))
	if err != nil {
		return nil, err
	}

	log.Info("purchase recorded",
		zap.Uint("payment_id", payment.ID),
		zap.String("detail", payment.Detail),
		zap.Bool("is_trial", payment.IsPackageTrial),
	)

	return &dto.VerifyPurchaseResponse{
		ResultCode: result.ResultCode,
		Receipt:    result.RawData,
		PaymentID:  payment.ID,
		IsTrial:    payment.IsPackageTrial,
	}, nil
}

func (s *purchaseServiceImpl) AddPoints(ctx context.Context, userID uint, in AddPointsInput) (payment *model.Payment, err error) {
	log := s.log.With(
		zap.String("flow", FlowPointTopUp),
		zap.Uint("user_id", userID),
	)
	defer func() {
		// gorm has already rolled the transaction back when a panic gets here
		if r := recover(); r != nil {
			log.Error("point purchase panicked", zap.Any("panic", r), zap.Stack("stack"))
			payment = nil
			err = fmt.Errorf("point purchase aborted: %v", r)
		}
		s.report(log, FlowPointTopUp, err)
	}()

	if in.Receipt == "" {
		return nil, ErrInvalidRequest
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Sex != model.SegmentPointBuyer {
		return nil, ErrAccountNotEligible
	}

	release, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	// the top-up receipt is a consumable, no shared secret is sent
	result, purchase, err := s.validate(ctx, in.Receipt, "")
	if err != nil {
		return nil, err
	}

	draft, item, err := s.draft(ctx, userID, model.PackageMinute, result, purchase)
	if err != nil {
		return nil, err
	}
	purchaseDate := draft.PurchaseDate
	draft.PurchaseExpiredDate = &purchaseDate

	payment, err = s.commit(ctx, draft, purchase.ExpiresDate, model.RequestNone, EntitlementFor(model.PackageMinute, model.RequestNone, item.Minute))
	if err != nil {
		return nil, err
	}

	log.Info("points added",
		zap.Uint("payment_id", payment.ID),
		zap.Int("points", item.Minute),
	)
	return payment, nil
}

func (s *purchaseServiceImpl) findUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %v", ErrPersistence, err)
	}
	return user, nil
}

// validate asks the App Store about the receipt and returns the first purchase
// it lists.
func (s *purchaseServiceImpl) validate(ctx context.Context, receipt, sharedSecret string) (*client.ValidationResult, *client.Purchase, error) {
	started := time.Now()
	result, err := s.appStoreClient.Validate(ctx, receipt, sharedSecret)
	metrics.ObserveValidation(started)
	if err != nil {
		return nil, nil, err
	}

	if !result.IsValid {
		return nil, nil, &AuthorityRejection{ResultCode: result.ResultCode}
	}
	if len(result.Purchases) == 0 {
		return nil, nil, &AuthorityRejection{ResultCode: result.ResultCode, Reason: "receipt lists no purchases"}
	}

	purchase := result.Purchases[0]
	if purchase.TransactionID == "" && purchase.OriginalTransactionID == "" {
		return nil, nil, &AuthorityRejection{ResultCode: result.ResultCode, Reason: "purchase has no transaction id"}
	}
	return result, &purchase, nil
}

// draft resolves the catalog item the purchase refers to and prepares the
// payment row. The expiry is left to the caller.
func (s *purchaseServiceImpl) draft(ctx context.Context, userID uint, packageType model.PackageType, result *client.ValidationResult, purchase *client.Purchase) (PaymentDraft, *model.CatalogItem, error) {
	pkg, err := s.catalog.Resolve(ctx, packageType)
	if err != nil {
		return PaymentDraft{}, nil, err
	}

	productID := s.pinnedProductID
	if productID == "" {
		productID = purchase.ProductID
	}
	item, err := s.catalog.MatchItem(pkg, productID)
	if err != nil {
		return PaymentDraft{}, nil, err
	}

	total, err := ParseCost(item.Cost)
	if err != nil {
		return PaymentDraft{}, nil, fmt.Errorf("catalog item %s: %w", item.ProductID, err)
	}

	detail := purchase.TransactionID
	if detail == "" {
		detail = purchase.OriginalTransactionID
	}
	purchaseDate := purchase.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = purchase.OriginalPurchaseDate
	}

	return PaymentDraft{
		UserID:       userID,
		Plan:         string(packageType) + "-" + strconv.Itoa(item.Minute),
		Total:        total,
		Package:      packageType,
		Detail:       detail,
		ReceiptData:  result.RawData,
		PurchaseDate: purchaseDate,
	}, item, nil
}

// commit runs the acceptance check, the trial check and the ledger write in
// one transaction.
func (s *purchaseServiceImpl) commit(ctx context.Context, draft PaymentDraft, expiresDate *time.Time, requestType model.RequestType, delta EntitlementChange) (*model.Payment, error) {
	var payment *model.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.paymentRepo.FindActiveByDetail(ctx, tx, draft.UserID, draft.Detail)
		if err != nil {
			return fmt.Errorf("%w: find payment: %v", ErrPersistence, err)
		}

		decision := s.policy.Decide(existing, draft.Package, expiresDate, s.now())
		if !decision.Accepted {
			return fmt.Errorf("%w: %s", ErrDuplicateOrExpired, decision.Reason)
		}

		draft.IsTrial, err = s.trial.IsEligible(ctx, tx, draft.UserID, draft.Package, requestType)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}

		payment, err = s.ledger.RecordAndApply(ctx, tx, draft, delta)
		return err
	})
	if err != nil {
		if ErrorCode(err) == "internal_error" {
			// commit failures come back from gorm unwrapped
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return nil, err
	}
	return payment, nil
}

func (s *purchaseServiceImpl) report(log *zap.Logger, flow string, err error) {
	outcome := ErrorCode(err)
	metrics.ObserveReconciliation(flow, outcome)

	switch outcome {
	case "committed":
	case "duplicate_or_expired", "product_mismatch", "package_not_found",
		"account_not_eligible", "invalid_request", "user_not_found", "request_in_progress":
		log.Info("purchase rejected", zap.String("outcome", outcome), zap.Error(err))
	case "authority_invalid_receipt", "authority_unavailable":
		log.Warn("receipt validation failed", zap.String("outcome", outcome), zap.Error(err))
	default:
		log.Error("purchase failed", zap.String("outcome", outcome), zap.Error(err))
	}
}

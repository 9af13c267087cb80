package service

import (
	"context"
	"errors"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/repository"
	"iap-entitlement-service/internal/testutil"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type failingUserRepo struct {
	repository.UserRepository
	err error
}

func (r *failingUserRepo) AddCallMinutes(context.Context, *gorm.DB, uint, int) error { return r.err }
func (r *failingUserRepo) AddPoints(context.Context, *gorm.DB, uint, int) error      { return r.err }

func monthDraft(userID uint, detail string) PaymentDraft {
	return PaymentDraft{
		UserID:       userID,
		Plan:         "month-300",
		Total:        decimal.NewFromInt(1200),
		Package:      model.PackageMonth,
		Detail:       detail,
		ReceiptData:  []byte(`{"status":0}`),
		PurchaseDate: time.Now().UTC(),
	}
}

// recordInTx runs the ledger the way the purchase service does, inside a
// transaction that rolls back on error.
func recordInTx(db *gorm.DB, ledger EntitlementLedger, draft PaymentDraft, delta EntitlementChange) (*model.Payment, error) {
	var payment *model.Payment
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		payment, err = ledger.RecordAndApply(context.Background(), tx, draft, delta)
		return err
	})
	return payment, err
}

func TestEntitlementFor(t *testing.T) {
	tests := []struct {
		packageType model.PackageType
		requestType model.RequestType
		want        EntitlementChange
	}{
		{model.PackageMonth, model.RequestNone, EntitlementChange{TargetCallMinutes, 300}},
		{model.PackageAutoRenewal, model.RequestRenew, EntitlementChange{TargetCallMinutes, 300}},
		{model.PackageMonthRenew, model.RequestNone, EntitlementChange{TargetCallMinutes, 300}},
		{model.PackageAutoPayment, model.RequestRenew, EntitlementChange{TargetCallMinutes, 300}},
		{model.PackageMonth, model.RequestRestore, EntitlementChange{Target: TargetNone}},
		{model.PackageAutoPayment, model.RequestRestore, EntitlementChange{Target: TargetNone}},
		{model.PackageMinute, model.RequestNone, EntitlementChange{TargetPoints, 300}},
		{model.PackageMinute, model.RequestRestore, EntitlementChange{Target: TargetNone}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EntitlementFor(tt.packageType, tt.requestType, 300), "%s/%q", tt.packageType, tt.requestType)
	}
}

func TestLedgerRecordsAndApplies(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, &model.User{Name: "u", TotalCall: 10})
	ledger := NewEntitlementLedger(repository.NewPaymentRepository(db), repository.NewUserRepository(db))

	payment, err := recordInTx(db, ledger, monthDraft(user.ID, "tx-1"), EntitlementChange{TargetCallMinutes, 300})
	require.NoError(t, err)
	assert.NotZero(t, payment.ID)
	assert.Equal(t, model.PaymentStatusActive, payment.Status)
	assert.Equal(t, 310, testutil.ReloadUser(t, db, user.ID).TotalCall)
}

func TestLedgerDuplicateIsPolicyRejection(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, &model.User{Name: "u"})
	ledger := NewEntitlementLedger(repository.NewPaymentRepository(db), repository.NewUserRepository(db))

	_, err := recordInTx(db, ledger, monthDraft(user.ID, "tx-1"), EntitlementChange{TargetCallMinutes, 300})
	require.NoError(t, err)

	_, err = recordInTx(db, ledger, monthDraft(user.ID, "tx-1"), EntitlementChange{TargetCallMinutes, 300})
	assert.ErrorIs(t, err, ErrDuplicateOrExpired)
	assert.Equal(t, 300, testutil.ReloadUser(t, db, user.ID).TotalCall)
	assert.EqualValues(t, 1, testutil.CountPayments(t, db, user.ID))
}

func TestLedgerRollsBackWhenEntitlementFails(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, &model.User{Name: "u", Point: 5})
	userRepo := &failingUserRepo{UserRepository: repository.NewUserRepository(db), err: errors.New("disk full")}
	ledger := NewEntitlementLedger(repository.NewPaymentRepository(db), userRepo)

	_, err := recordInTx(db, ledger, monthDraft(user.ID, "tx-1"), EntitlementChange{TargetPoints, 100})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "persistence_error", ErrorCode(err))

	assert.EqualValues(t, 0, testutil.CountPayments(t, db, user.ID))
	assert.Equal(t, 5, testutil.ReloadUser(t, db, user.ID).Point)
}

func TestLedgerUnknownUserRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	ledger := NewEntitlementLedger(repository.NewPaymentRepository(db), repository.NewUserRepository(db))

	_, err := recordInTx(db, ledger, monthDraft(42, "tx-1"), EntitlementChange{TargetCallMinutes, 300})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.EqualValues(t, 0, testutil.CountPayments(t, db, 42))
}

func TestLedgerRequiresTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, &model.User{Name: "u"})
	ledger := NewEntitlementLedger(repository.NewPaymentRepository(db), repository.NewUserRepository(db))

	_, err := ledger.RecordAndApply(context.Background(), nil, monthDraft(user.ID, "tx-1"), EntitlementChange{TargetCallMinutes, 300})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.EqualValues(t, 0, testutil.CountPayments(t, db, user.ID))
	assert.Zero(t, testutil.ReloadUser(t, db, user.ID).TotalCall)
}

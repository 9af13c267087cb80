package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iap-entitlement-service/internal/config"
	"net/http"
	"strconv"
	"time"

	"github.com/awa/go-iap/appstore"
)

type AppStoreClient interface {
	// Validate verifies a base64 receipt against the configured App Store
	// environment. A non-nil result with IsValid false means the App Store
	// answered and refused the receipt.
	Validate(ctx context.Context, receipt, sharedSecret string) (*ValidationResult, error)
}

type ValidationErrorKind string

const (
	ValidationNetwork           ValidationErrorKind = "network"
	ValidationMalformedResponse ValidationErrorKind = "malformed_response"
)

type ValidationError struct {
	Kind       ValidationErrorKind
	ResultCode int
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("app store validation %s: %v", e.Kind, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Retryable is true when the App Store could not be reached, timed out or
// asked to try again, so nothing can be concluded about the receipt.
func (e *ValidationError) Retryable() bool {
	return e.Kind == ValidationNetwork
}

type ValidationResult struct {
	IsValid    bool
	ResultCode int
	Purchases  []Purchase
	RawData    json.RawMessage
}

type Purchase struct {
	TransactionID         string
	OriginalTransactionID string
	ProductID             string
	PurchaseDate          time.Time // zero when purchase_date_ms is absent
	OriginalPurchaseDate  time.Time
	ExpiresDate           *time.Time
}

type appStoreClientImpl struct {
	iap *appstore.Client
}

type verifyReceiptResponse struct {
	Status      int    `json:"status"`
	Environment string `json:"environment"`
	Receipt     struct {
		InApp []inAppPurchase `json:"in_app"`
	} `json:"receipt"`
}

type inAppPurchase struct {
	ProductID              string `json:"product_id"`
	TransactionID          string `json:"transaction_id"`
	OriginalTransactionID  string `json:"original_transaction_id"`
	PurchaseDateMS         string `json:"purchase_date_ms"`
	OriginalPurchaseDateMS string `json:"original_purchase_date_ms"`
	ExpiresDateMS          string `json:"expires_date_ms"`
}

func NewAppStoreClient(cfg *config.AppStore) AppStoreClient {
	endpoint := appstore.ProductionURL
	if cfg.Environment == "sandbox" {
		endpoint = appstore.SandboxURL
	}

	return NewAppStoreClientWithEndpoint(endpoint, &http.Client{
		Timeout: cfg.Timeout,
	})
}

// NewAppStoreClientWithEndpoint pins every request, including the library's
// 21007 sandbox retry, to one endpoint.
func NewAppStoreClientWithEndpoint(endpoint string, httpClient *http.Client) AppStoreClient {
	iap := appstore.NewWithClient(httpClient)
	iap.ProductionURL = endpoint
	iap.SandboxURL = endpoint

	return &appStoreClientImpl{
		iap: iap,
	}
}

func (c *appStoreClientImpl) Validate(ctx context.Context, receipt, sharedSecret string) (*ValidationResult, error) {
	var raw json.RawMessage
	err := c.iap.Verify(ctx, appstore.IAPRequest{
		ReceiptData: receipt,
		Password:    sharedSecret,
	}, &raw)
	if err != nil {
		return nil, classifyVerifyError(err)
	}

	var resp verifyReceiptResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ValidationError{Kind: ValidationMalformedResponse, Err: fmt.Errorf("decode verify receipt response: %w", err)}
	}

	result := &ValidationResult{
		ResultCode: resp.Status,
		RawData:    raw,
	}

	if transientStatus(resp.Status) {
		return nil, &ValidationError{
			Kind:       ValidationNetwork,
			ResultCode: resp.Status,
			Err:        appstore.HandleError(resp.Status),
		}
	}
	if resp.Status != 0 {
		return result, nil
	}

	if len(resp.Receipt.InApp) == 0 {
		return nil, &ValidationError{Kind: ValidationMalformedResponse, Err: errors.New("valid receipt without in_app purchases")}
	}

	purchases := make([]Purchase, 0, len(resp.Receipt.InApp))
	for _, item := range resp.Receipt.InApp {
		p, err := item.normalize()
		if err != nil {
			return nil, &ValidationError{Kind: ValidationMalformedResponse, Err: err}
		}
		purchases = append(purchases, p)
	}

	result.IsValid = true
	result.Purchases = purchases
	return result, nil
}

func (p inAppPurchase) normalize() (Purchase, error) {
	out := Purchase{
		TransactionID:         p.TransactionID,
		OriginalTransactionID: p.OriginalTransactionID,
		ProductID:             p.ProductID,
	}

	var err error
	if out.PurchaseDate, err = parseMillis(p.PurchaseDateMS); err != nil {
		return Purchase{}, fmt.Errorf("purchase_date_ms: %w", err)
	}
	if out.OriginalPurchaseDate, err = parseMillis(p.OriginalPurchaseDateMS); err != nil {
		return Purchase{}, fmt.Errorf("original_purchase_date_ms: %w", err)
	}

	expires, err := parseMillis(p.ExpiresDateMS)
	if err != nil {
		return Purchase{}, fmt.Errorf("expires_date_ms: %w", err)
	}
	if !expires.IsZero() {
		out.ExpiresDate = &expires
	}

	return out, nil
}

// transientStatus reports the statuses Apple returns when it could not look
// at the receipt: 21005 (server unavailable) and 21100-21199 (internal data
// access errors).
func transientStatus(status int) bool {
	return status == 21005 || (status >= 21100 && status <= 21199)
}

func parseMillis(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func classifyVerifyError(err error) *ValidationError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ValidationError{Kind: ValidationMalformedResponse, Err: err}
	}
	return &ValidationError{Kind: ValidationNetwork, Err: err}
}

package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexBool accepts true, "true", 1 and "1" from clients that send flags as
// strings.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*b = false
		return nil
	}
	return b.UnmarshalParam(s)
}

// UnmarshalParam lets echo bind the flag from form and query values.
func (b *FlexBool) UnmarshalParam(param string) error {
	if param == "" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(param)))
	if err != nil {
		return fmt.Errorf("invalid boolean %q", param)
	}
	*b = FlexBool(v)
	return nil
}

type VerifyPurchaseRequest struct {
	Receipt     string   `json:"receipt" form:"receipt" validate:"required"`
	PackageType string   `json:"package_type" form:"package_type" validate:"required,oneof=month minute month-renew auto-renewal auto-payment"`
	RequestType string   `json:"request_type" form:"request_type" validate:"omitempty,oneof=restore renew"`
	IsRestore   FlexBool `json:"is_restore" form:"is_restore"`
}

type AddPointsRequest struct {
	Receipt string `json:"receipt" form:"receipt" validate:"required"`
}

type ListPackagesRequest struct {
	PackageType string `query:"package_type" validate:"required,oneof=month minute month-renew auto-renewal auto-payment"`
}

// VerifyPurchaseResponse echoes the validated App Store response.
type VerifyPurchaseResponse struct {
	ResultCode int             `json:"result_code"`
	Receipt    json.RawMessage `json:"receipt"`
	PaymentID  uint            `json:"payment_id"`
	IsTrial    bool            `json:"is_trial"`
}

type PackageItem struct {
	ID     string `json:"id"`
	Cost   string `json:"cost"`
	Minute int    `json:"minute"`
	Name   string `json:"name"`
	Plan   string `json:"plan"`
}

type AccountResponse struct {
	ID        uint `json:"id"`
	TotalCall int  `json:"total_call"`
	Point     int  `json:"point"`
}

type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	ResultCode *int   `json:"result_code,omitempty"`
}

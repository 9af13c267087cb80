package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PackageType string

const (
	PackageMonth       PackageType = "month"
	PackageMinute      PackageType = "minute"
	PackageMonthRenew  PackageType = "month-renew"
	PackageAutoRenewal PackageType = "auto-renewal"
	PackageAutoPayment PackageType = "auto-payment"
)

// IsConsumable reports whether every purchase of the package is an
// independent top-up.
func (p PackageType) IsConsumable() bool {
	return p == PackageMinute
}

func (p PackageType) Valid() bool {
	switch p {
	case PackageMonth, PackageMinute, PackageMonthRenew, PackageAutoRenewal, PackageAutoPayment:
		return true
	}
	return false
}

type RequestType string

const (
	RequestNone    RequestType = ""
	RequestRestore RequestType = "restore"
	RequestRenew   RequestType = "renew"
)

const (
	PackageStatusInactive = 0
	PackageStatusActive   = 1
)

const (
	PaymentStatusVoided = 0
	PaymentStatusActive = 1
)

// SegmentPointBuyer is the users.sex value allowed to buy points.
const SegmentPointBuyer = 1

type User struct {
	ID        uint `gorm:"primaryKey"`
	Name      string
	TotalCall int `gorm:"not null;default:0"` // call minutes
	Point     int `gorm:"not null;default:0"`
	Sex       int `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Package is an administrator managed package family. Description holds the
// JSON encoded list of CatalogItem.
type Package struct {
	ID          uint           `gorm:"primaryKey"`
	Package     PackageType    `gorm:"size:32;uniqueIndex;not null"`
	Status      int            `gorm:"not null;default:1;index"`
	Description datatypes.JSON `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Payment struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	UserID uint            `gorm:"index;not null" json:"user_id"`
	Plan   string          `gorm:"size:64;not null" json:"plan"`
	Total  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	// package type
	Package PackageType `gorm:"size:32;index;not null" json:"package"`
	// store transaction id, falls back to the original transaction id
	Detail string `gorm:"size:100;index;not null" json:"detail"`
	// "<user_id>:<detail>" while active, NULL once voided. Unique so a
	// transaction can be credited once per user.
	IdempotencyKey      *string        `gorm:"size:191;uniqueIndex" json:"-"`
	ReceiptData         datatypes.JSON `json:"receipt_data"`
	PurchaseDate        time.Time      `json:"purchase_date"`
	PurchaseExpiredDate *time.Time     `json:"purchase_expired_date"`
	IsPackageTrial      bool           `gorm:"not null;default:false;index" json:"is_package_trial"`
	Status              int            `gorm:"not null;default:1" json:"status"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"iap-entitlement-service/internal/client"
	"iap-entitlement-service/internal/model"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory sqlite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := client.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

func CreateUser(t testing.TB, db *gorm.DB, user *model.User) *model.User {
	t.Helper()

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func CreatePackage(t testing.TB, db *gorm.DB, packageType model.PackageType, status int, items ...model.CatalogItem) *model.Package {
	t.Helper()

	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("encode items: %v", err)
	}

	pkg := &model.Package{
		Package:     packageType,
		Status:      status,
		Description: datatypes.JSON(raw),
	}
	if err := db.Create(pkg).Error; err != nil {
		t.Fatalf("create package: %v", err)
	}
	// gorm replaces a zero status with the column default on insert
	if status != model.PackageStatusActive {
		if err := db.Model(pkg).Update("status", status).Error; err != nil {
			t.Fatalf("set package status: %v", err)
		}
	}
	return pkg
}

func ReloadUser(t testing.TB, db *gorm.DB, userID uint) *model.User {
	t.Helper()

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		t.Fatalf("reload user %d: %v", userID, err)
	}
	return &user
}

// CountPayments counts non-voided payments of the user.
func CountPayments(t testing.TB, db *gorm.DB, userID uint) int64 {
	t.Helper()

	var n int64
	if err := db.Model(&model.Payment{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	return n
}

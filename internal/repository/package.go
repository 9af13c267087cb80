package repository

import (
	"context"
	"iap-entitlement-service/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PackageRepository interface {
	FindActiveByType(ctx context.Context, packageType model.PackageType) (*model.Package, error)
	Upsert(ctx context.Context, pkg *model.Package) error
}

type packageRepoImpl struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepoImpl{
		db: db,
	}
}

func (r *packageRepoImpl) FindActiveByType(ctx context.Context, packageType model.PackageType) (*model.Package, error) {
	var pkg model.Package
	err := r.db.WithContext(ctx).
		Where("package = ? AND status = ?", packageType, model.PackageStatusActive).
		First(&pkg).Error
	if err != nil {
		return nil, err
	}

	return &pkg, nil
}

func (r *packageRepoImpl) Upsert(ctx context.Context, pkg *model.Package) error {
	// keyed by package type only, so a caller's id never takes part
	row := &model.Package{
		Package:     pkg.Package,
		Status:      pkg.Status,
		Description: pkg.Description,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "package"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":      pkg.Status,
				"description": pkg.Description,
				"updated_at":  time.Now(),
			}),
		}).Create(row).Error
		if err != nil {
			return err
		}

		// a fresh insert falls back to the column default for a zero status
		return tx.Model(&model.Package{}).
			Where("package = ?", pkg.Package).
			Update("status", pkg.Status).Error
	})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"iap-entitlement-service/internal/dto"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/repository"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CatalogResolver interface {
	Resolve(ctx context.Context, packageType model.PackageType) (*model.CatalogPackage, error)
	MatchItem(pkg *model.CatalogPackage, productID string) (*model.CatalogItem, error)
	ListItems(ctx context.Context, packageType model.PackageType) ([]*dto.PackageItem, error)
}

type catalogResolverImpl struct {
	packageRepo repository.PackageRepository
}

func NewCatalogResolver(packageRepo repository.PackageRepository) CatalogResolver {
	return &catalogResolverImpl{
		packageRepo: packageRepo,
	}
}

func (s *catalogResolverImpl) Resolve(ctx context.Context, packageType model.PackageType) (*model.CatalogPackage, error) {
	pkg, err := s.packageRepo.FindActiveByType(ctx, packageType)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, packageType)
	}
	if err != nil {
		return nil, fmt.Errorf("find package %s: %w", packageType, err)
	}

	return pkg.Catalog()
}

func (s *catalogResolverImpl) MatchItem(pkg *model.CatalogPackage, productID string) (*model.CatalogItem, error) {
	for i := range pkg.Items {
		if pkg.Items[i].ProductID == productID {
			return &pkg.Items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q in %s", ErrProductMismatch, productID, pkg.Package)
}

func (s *catalogResolverImpl) ListItems(ctx context.Context, packageType model.PackageType) ([]*dto.PackageItem, error) {
	pkg, err := s.Resolve(ctx, packageType)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.PackageItem, 0, len(pkg.Items))
	for _, item := range pkg.Items {
		items = append(items, &dto.PackageItem{
			ID:     item.ProductID,
			Cost:   item.Cost,
			Minute: item.Minute,
			Name:   item.Name,
			Plan:   strings.ReplaceAll(item.Cost, "¥", "") + "円で" + item.Name,
		})
	}

	return items, nil
}

// ParseCost turns a display price such as "¥1,200" into an amount. Currency
// glyphs and thousands separators are dropped. Negative amounts are rejected.
func ParseCost(cost string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, cost)

	total, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse cost %q: %w", cost, err)
	}
	if total.IsNegative() {
		return decimal.Zero, fmt.Errorf("parse cost %q: negative amount", cost)
	}
	return total, nil
}

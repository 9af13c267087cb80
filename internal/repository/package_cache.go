package repository

import (
	"context"
	"encoding/json"
	"errors"
	"iap-entitlement-service/internal/model"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const packageCacheKeyPrefix = "iap:catalog:package:"

type cachedPackageRepo struct {
	inner PackageRepository
	rdb   *redis.Client
	ttl   time.Duration
	log   *zap.Logger
}

// NewCachedPackageRepository puts a read-through redis cache in front of
// inner. A nil client returns inner unchanged.
func NewCachedPackageRepository(inner PackageRepository, rdb *redis.Client, ttl time.Duration, log *zap.Logger) PackageRepository {
	if rdb == nil || ttl <= 0 {
		return inner
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &cachedPackageRepo{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log,
	}
}

func packageCacheKey(packageType model.PackageType) string {
	return packageCacheKeyPrefix + string(packageType)
}

func (r *cachedPackageRepo) FindActiveByType(ctx context.Context, packageType model.PackageType) (*model.Package, error) {
	key := packageCacheKey(packageType)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var pkg model.Package
		if jsonErr := json.Unmarshal(raw, &pkg); jsonErr == nil {
			return &pkg, nil
		}
		r.log.Warn("drop undecodable catalog cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		// cache outage must not block purchases
		r.log.Warn("read catalog cache", zap.String("key", key), zap.Error(err))
	}

	pkg, err := r.inner.FindActiveByType(ctx, packageType)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(pkg); err == nil {
		if err := r.rdb.Set(ctx, key, encoded, r.ttl).Err(); err != nil {
			r.log.Warn("write catalog cache", zap.String("key", key), zap.Error(err))
		}
	}

	return pkg, nil
}

func (r *cachedPackageRepo) Upsert(ctx context.Context, pkg *model.Package) error {
	if err := r.inner.Upsert(ctx, pkg); err != nil {
		return err
	}
	return r.rdb.Del(ctx, packageCacheKey(pkg.Package)).Err()
}

package config

import (
	"fmt"
	"time"
)

type Config struct {
	Environment    Environment
	Log            Log
	HTTP           HTTPServer
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"mysql"`
	DatabaseURL    string `env:"DATABASE_URL"`

	AppStore AppStore `envPrefix:"APPSTORE_"`
	Catalog  Catalog  `envPrefix:"CATALOG_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Auth     Auth     `envPrefix:"AUTH_"`
}

// Validate checks settings that only make sense together.
func (c *Config) Validate() error {
	if c.Redis.Addr != "" && c.Redis.LockTTL <= c.AppStore.Timeout {
		return fmt.Errorf("REDIS_LOCK_TTL (%s) must be greater than APPSTORE_TIMEOUT (%s)",
			c.Redis.LockTTL, c.AppStore.Timeout)
	}
	return nil
}

type AppStore struct {
	Environment  string        `env:"ENVIRONMENT" envDefault:"production"` // production | sandbox
	SharedSecret string        `env:"SHARED_SECRET"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type Catalog struct {
	// Product id every purchase is matched against unless
	// MatchPurchaseProduct is set.
	PinnedProductID      string        `env:"PINNED_PRODUCT_ID" envDefault:"com.calling_10_minutes_con"`
	MatchPurchaseProduct bool          `env:"MATCH_PURCHASE_PRODUCT" envDefault:"false"`
	CacheTTL             time.Duration `env:"CACHE_TTL" envDefault:"5m"`
}

// ProductID returns the product id purchases are matched against. Empty
// means the App Store reported one is used.
func (c Catalog) ProductID() string {
	if c.MatchPurchaseProduct {
		return ""
	}
	return c.PinnedProductID
}

type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	// The per-user lock is taken before the App Store call and held until
	// the payment commits, so REDIS_LOCK_TTL must stay above
	// APPSTORE_TIMEOUT. Otherwise the lock can expire mid-request and a
	// retried request runs the same reconciliation concurrently.
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	LockWait time.Duration `env:"LOCK_WAIT" envDefault:"5s"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

// Command seed loads the package catalog from a YAML file into the database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"iap-entitlement-service/internal/client"
	"iap-entitlement-service/internal/config"
	"iap-entitlement-service/internal/logger"
	"iap-entitlement-service/internal/model"
	"iap-entitlement-service/internal/repository"
	"iap-entitlement-service/internal/service"
	"io"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

type catalogFile struct {
	Packages []catalogEntry `yaml:"packages"`
}

type catalogEntry struct {
	Package model.PackageType   `yaml:"package"`
	Active  *bool               `yaml:"active"`
	Items   []model.CatalogItem `yaml:"items"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var filePath string
	var dryRun bool

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVarP(&filePath, "file", "f", "catalog.yaml", "catalog YAML file")
	flagSet.BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	_ = godotenv.Load()
	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	packages, err := loadCatalog(f)
	if err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	if dryRun {
		for _, pkg := range packages {
			log.Info("package ok", zap.String("package", string(pkg.Package)), zap.Int("status", pkg.Status))
		}
		return nil
	}

	ctx := context.Background()

	db, err := client.InitDBClient(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}

	// upserts go through the API's catalog cache so the cached entries are dropped
	rdb, err := client.InitRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	repo := repository.NewCachedPackageRepository(
		repository.NewPackageRepository(db), rdb, cfg.Catalog.CacheTTL, log,
	)

	return seed(ctx, repo, packages, log)
}

// loadCatalog decodes and checks a catalog file. Every item needs an id and a
// parsable cost.
func loadCatalog(r io.Reader) ([]*model.Package, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[model.PackageType]bool)
	packages := make([]*model.Package, 0, len(file.Packages))
	for _, entry := range file.Packages {
		if !entry.Package.Valid() {
			return nil, fmt.Errorf("unknown package type %q", entry.Package)
		}
		if seen[entry.Package] {
			return nil, fmt.Errorf("package %s listed twice", entry.Package)
		}
		seen[entry.Package] = true

		for _, item := range entry.Items {
			if item.ProductID == "" {
				return nil, fmt.Errorf("package %s: item without id", entry.Package)
			}
			if _, err := service.ParseCost(item.Cost); err != nil {
				return nil, fmt.Errorf("package %s: %w", entry.Package, err)
			}
		}

		items := entry.Items
		if items == nil {
			items = []model.CatalogItem{}
		}
		description, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}

		status := model.PackageStatusActive
		if entry.Active != nil && !*entry.Active {
			status = model.PackageStatusInactive
		}

		packages = append(packages, &model.Package{
			Package:     entry.Package,
			Status:      status,
			Description: datatypes.JSON(description),
		})
	}

	return packages, nil
}

func seed(ctx context.Context, repo repository.PackageRepository, packages []*model.Package, log *zap.Logger) error {
	for _, pkg := range packages {
		if err := repo.Upsert(ctx, pkg); err != nil {
			return fmt.Errorf("upsert package %s: %w", pkg.Package, err)
		}
		log.Info("package seeded", zap.String("package", string(pkg.Package)), zap.Int("status", pkg.Status))
	}
	return nil
}

package initializer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/ledger/infra"
	infra_repository "github.com/amirasaad/ledger/infra/repository"
	"github.com/amirasaad/ledger/pkg/app"
	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/interest"
	"github.com/amirasaad/ledger/pkg/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/repository"
	"golang.org/x/crypto/bcrypt"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// InitializeDependencies initializes all the application dependencies
func InitializeDependencies(cfg *config.App) (
	deps *app.Deps,
	err error,
) {
	deps = &app.Deps{}
	logger := SetupLogger(cfg.Log)
	deps.Logger = logger

	opts, err := LedgerOptions(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure ledger: %w", err)
	}
	deps.Ledger = ledger.New(opts...)

	deps.Store, err = NewStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize snapshot store", "driver", cfg.Store.Driver, "error", err)
		return nil, err
	}
	logger.Info("Snapshot store ready", "driver", cfg.Store.Driver)
	return deps, nil
}

// LedgerOptions translates the LEDGER_* and AUTH_* settings into ledger options.
func LedgerOptions(cfg *config.App, logger *slog.Logger) ([]ledger.Option, error) {
	opts := []ledger.Option{ledger.WithLogger(logger.With("component", "ledger"))}
	if cfg.Auth != nil && cfg.Auth.BcryptCost != 0 {
		if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]",
				cfg.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		opts = append(opts, ledger.WithHasher(ledger.BcryptHasher{Cost: cfg.Auth.BcryptCost}))
	}
	if cfg.Ledger == nil {
		return opts, nil
	}
	lc := cfg.Ledger

	accounts := ledger.DefaultAccountSettings()
	balance, err := money.Parse(lc.DefaultBalance)
	if err != nil {
		return nil, fmt.Errorf("default balance: %w", err)
	}
	if balance.IsNegative() {
		return nil, fmt.Errorf("default balance %s is negative", balance)
	}
	maxLoan, err := money.Parse(lc.MaxAutoLoan)
	if err != nil {
		return nil, fmt.Errorf("max auto loan: %w", err)
	}
	accountInterest, err := interest.ParseType(lc.InterestType)
	if err != nil {
		return nil, err
	}
	accounts.Balance = balance
	accounts.InterestRateBps = lc.InterestRateBps
	accounts.InterestType = accountInterest
	accounts.OverdraftEnabled = lc.OverdraftEnabled
	accounts.MaxAutoLoan = maxLoan

	loanInterest, err := interest.ParseType(lc.LoanInterestType)
	if err != nil {
		return nil, err
	}
	loans := ledger.LoanSettings{InterestRateBps: lc.LoanInterestRateBps, InterestType: loanInterest}

	return append(opts, ledger.WithAccountDefaults(accounts), ledger.WithLoanDefaults(loans)), nil
}

// NewStore opens the snapshot store selected by cfg.Store.Driver.
func NewStore(cfg *config.App, logger *slog.Logger) (repository.SnapshotStore, error) {
	driver := DriverFile
	if cfg.Store != nil && cfg.Store.Driver != "" {
		driver = cfg.Store.Driver
	}
	logger = logger.With("component", "store", "driver", driver)

	switch driver {
	case DriverFile:
		return infra_repository.NewFileSnapshotStore(cfg.Store.Path, logger), nil
	case DriverMemory:
		return infra_repository.NewMemorySnapshotStore(), nil
	case DriverPostgres:
		db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
		if err != nil {
			return nil, err
		}
		store := infra_repository.NewGormSnapshotStore(db, logger)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate snapshot table: %w", err)
		}
		return store, nil
	case DriverRedis:
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, fmt.Errorf("store driver %q requires REDIS_URL", driver)
		}
		return infra_repository.NewRedisSnapshotStoreFromURL(cfg.Redis.URL, cfg.Store.KeyPrefix, logger)
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}

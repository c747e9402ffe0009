package app

import (
	"log/slog"

	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/ledger"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/amirasaad/ledger/pkg/service/auth"
	"github.com/amirasaad/ledger/pkg/service/bank"
)

// Deps contains the infrastructure the services are built from.
type Deps struct {
	Ledger *ledger.Ledger
	Store  repository.SnapshotStore
	Logger *slog.Logger
}

type App struct {
	Deps        *Deps
	Config      *config.App
	BankService *bank.Service
	AuthService *auth.Service
}

func New(deps *Deps, cfg *config.App) *App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Deps:   deps,
		Config: cfg,
	}
	app.BankService = bank.New(deps.Ledger, deps.Store, logger.With("service", "bank"))
	app.AuthService = auth.New(app.BankService, cfg.Auth.Jwt, logger.With("service", "auth"))
	return app
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirasaad/ledger/infra/initializer"
	"github.com/amirasaad/ledger/pkg/app"
	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/scheduler"
	"github.com/amirasaad/ledger/webapi"
	log "github.com/charmbracelet/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	if c, ok := deps.Store.(io.Closer); ok {
		defer c.Close() //nolint: errcheck
	}
	logger := deps.Logger

	a := app.New(deps, cfg)
	if err := a.BankService.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore ledger: %w", err)
	}
	fiberApp := webapi.SetupApp(a)
	sched := scheduler.New(
		a.BankService,
		cfg.Scheduler.TickInterval,
		cfg.Scheduler.SaveInterval,
		logger.With("component", "scheduler"),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Starting server",
		"env", cfg.Env,
		"address", addr,
		"scheme", cfg.Server.Scheme,
		"store", cfg.Store.Driver,
	)

	schedCtx, stopScheduler := context.WithCancel(context.WithoutCancel(ctx))
	defer stopScheduler()
	schedDone := make(chan error, 1)
	go func() { schedDone <- sched.Run(schedCtx) }()

	listenErr := make(chan error, 1)
	go func() { listenErr <- fiberApp.Listen(addr) }()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server")
		serveErr = fiberApp.ShutdownWithTimeout(10 * time.Second)
	case serveErr = <-listenErr:
	}

	// The final save runs once no request can change the ledger.
	stopScheduler()
	return errors.Join(serveErr, <-schedDone)
}

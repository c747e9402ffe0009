// Package webapi is the server side of the RPC channel: token issuance on
// /auth and a single authenticated /rpc endpoint carrying {operation, payload}.
package webapi

import (
	"github.com/amirasaad/ledger/pkg/app"
	"github.com/amirasaad/ledger/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	bankSvc := a.BankService
	authSvc := a.AuthService

	fiberCfg := fiber.Config{
		AppName: "ledger",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return ProblemFromError(c, err)
		},
	}
	// Client addresses come from the proxy header only behind a trusted proxy.
	if srv := a.Config.Server; srv != nil && len(srv.TrustedProxies) > 0 {
		fiberCfg.EnableTrustedProxyCheck = true
		fiberCfg.TrustedProxies = srv.TrustedProxies
		fiberCfg.ProxyHeader = srv.ProxyHeader
		fiberCfg.EnableIPValidation = true
	}
	fiberApp := fiber.New(fiberCfg)

	fiberApp.Use(limiter.New(limiter.Config{
		Max:        a.Config.RateLimit.MaxRequests,
		Expiration: a.Config.RateLimit.Window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return ErrorResponseJSON(
				c,
				fiber.StatusTooManyRequests,
				"Too Many Requests",
				"rate limit exceeded",
			)
		},
	}))
	fiberApp.Use(recover.New())
	if a.Config.Env == "development" {
		fiberApp.Use(logger.New())
	}

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Ledger API is running! 🚀")
	})
	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return SuccessResponseJSON(c, fiber.StatusOK, "ok", bankSvc.Stats())
	})

	AuthRoutes(fiberApp, bankSvc, authSvc)

	rpc := fiberApp.Group("/rpc", middleware.Protected(a.Config.Auth.Jwt))
	rpc.Get("/operations", func(c *fiber.Ctx) error {
		return SuccessResponseJSON(c, fiber.StatusOK, "operations", bankSvc.Operations())
	})
	rpc.Post("/", RPC(bankSvc, authSvc))
	return fiberApp
}

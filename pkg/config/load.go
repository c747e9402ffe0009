package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads the first env file found for envFilePath (searching parent
// directories) and then processes the environment into App.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	logger.Info("Loading environment variables")

	// If no specific paths provided, try default .env
	if len(envFilePath) == 0 {
		logger.Debug("No environment file specified, trying default .env")
		if err := godotenv.Load(); err != nil {
			logger.Warn("No .env file found in current directory")
		}
		return loadFromEnv()
	}

	// Try each provided path until we find a valid one
	for _, path := range envFilePath {
		logger.Debug("Looking for environment file", "path", path)
		foundPath, err := FindEnv(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}

		logger.Info("Loading environment from file", "path", foundPath)
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}

		// Successfully loaded a file, proceed with config loading
		return loadFromEnv()
	}

	// No valid environment files found, try default .env as fallback
	logger.Info("No valid environment files found, using default .env")
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found in current directory")
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}

	logger := slog.Default()
	logger.Info("App config loaded",
		"env", cfg.Env,
		"server_port", cfg.Server.Port,
		"store_driver", cfg.Store.Driver,
		"store_path", cfg.Store.Path,
		"db", maskValue(cfg.DB.Url),
		"redis", maskValue(cfg.Redis.URL),
		"auth_jwt_secret", maskValue(cfg.Auth.Jwt.Secret),
		"auth_jwt_expiry", cfg.Auth.Jwt.Expiry,
		"scheduler_tick_interval", cfg.Scheduler.TickInterval,
		"scheduler_save_interval", cfg.Scheduler.SaveInterval,
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
	)
	return &cfg, nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}

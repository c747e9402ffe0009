// Package auth verifies credentials against the ledger and issues the JWTs
// that identify callers on the RPC channel.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/dto"
	"github.com/golang-jwt/jwt/v5"
)

// Authenticator checks a username and client-derived credential.
type Authenticator interface {
	Authenticate(ctx context.Context, username, credential string) (dto.UserRead, error)
}

type Service struct {
	users  Authenticator
	cfg    *config.Jwt
	now    func() time.Time
	logger *slog.Logger
}

func New(users Authenticator, cfg *config.Jwt, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, cfg: cfg, now: time.Now, logger: logger}
}

// Login authenticates the caller and returns a signed token for them.
func (s *Service) Login(ctx context.Context, username, credential string) (string, dto.UserRead, error) {
	log := s.logger.With("context", "Login", "username", username)
	log.Debug("Login called")
	u, err := s.users.Authenticate(ctx, username, credential)
	if err != nil {
		log.Info("Login failed", "error", err)
		return "", dto.UserRead{}, err
	}
	token, err := s.GenerateToken(u.Username)
	if err != nil {
		return "", dto.UserRead{}, err
	}
	log.Info("Login successful")
	return token, u, nil
}

// GenerateToken signs an HS256 token naming username.
func (s *Service) GenerateToken(username string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.Expiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		s.logger.Error("GenerateToken failed", "username", username, "error", err)
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// CurrentUser returns the username carried by a verified token.
func (s *Service) CurrentUser(token *jwt.Token) (string, error) {
	if token == nil {
		return "", domain.ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}
	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return "", fmt.Errorf("token without username: %w", domain.ErrUnauthorized)
	}
	return username, nil
}

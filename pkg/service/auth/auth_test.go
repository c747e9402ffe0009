package auth_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/amirasaad/ledger/internal/fixtures"
	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/dto"
	authsvc "github.com/amirasaad/ledger/pkg/service/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var jwtCfg = &config.Jwt{Secret: "test-secret", Expiry: time.Hour}

func parse(t *testing.T, token string) *jwt.Token {
	t.Helper()
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte(jwtCfg.Secret), nil })
	require.NoError(t, err)
	return parsed
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()
	users := fixtures.NewMockAuthenticator(t)
	users.On("Authenticate", mock.Anything, "alice", "cred").
		Return(dto.UserRead{Username: "alice"}, nil).Once()
	svc := authsvc.New(users, jwtCfg, slog.Default())

	token, u, err := svc.Login(context.Background(), "alice", "cred")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	username, err := svc.CurrentUser(parse(t, token))
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestLogin_Unauthorized(t *testing.T) {
	t.Parallel()
	users := fixtures.NewMockAuthenticator(t)
	users.On("Authenticate", mock.Anything, "alice", "wrong").
		Return(nil, domain.ErrUnauthorized).Once()
	svc := authsvc.New(users, jwtCfg, nil)

	token, _, err := svc.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, token)
}

func TestGenerateToken_Claims(t *testing.T) {
	t.Parallel()
	svc := authsvc.New(nil, jwtCfg, nil)
	token, err := svc.GenerateToken("bob")
	require.NoError(t, err)

	claims := parse(t, token).Claims.(jwt.MapClaims)
	assert.Equal(t, "bob", claims["username"])
	exp, err := claims.GetExpirationTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp.Time, 5*time.Second)
}

func TestCurrentUser_Rejects(t *testing.T) {
	t.Parallel()
	svc := authsvc.New(nil, jwtCfg, nil)

	_, err := svc.CurrentUser(nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.CurrentUser(&jwt.Token{Claims: jwt.MapClaims{"sub": "bob"}})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.CurrentUser(&jwt.Token{Claims: &jwt.RegisteredClaims{}})
	assert.Error(t, err)
}

package webapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	infra_repository "github.com/amirasaad/ledger/infra/repository"
	"github.com/amirasaad/ledger/pkg/app"
	"github.com/amirasaad/ledger/pkg/config"
	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/ledger"
	"github.com/amirasaad/ledger/pkg/service/bank"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

func testConfig(maxRequests int) *config.App {
	return &config.App{
		Env:       "test",
		Auth:      &config.Auth{Jwt: &config.Jwt{Secret: "webapi-secret", Expiry: time.Hour}},
		RateLimit: &config.RateLimit{MaxRequests: maxRequests, Window: time.Minute},
	}
}

func newTestApp(cfg *config.App) *fiber.App {
	l := ledger.New(ledger.WithHasher(ledger.BcryptHasher{Cost: bcrypt.MinCost}))
	a := app.New(&app.Deps{Ledger: l, Store: infra_repository.NewMemorySnapshotStore()}, cfg)
	return SetupApp(a)
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Title   string          `json:"title"`
	Detail  string          `json:"detail"`
}

type WebAPISuite struct {
	suite.Suite
	app *fiber.App
}

func (s *WebAPISuite) SetupTest() {
	s.app = newTestApp(testConfig(1000))
}

func (s *WebAPISuite) do(method, path, body, token string) (*http.Response, envelope) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close() //nolint: errcheck
	var env envelope
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 && raw[0] == '{' {
		s.Require().NoError(json.Unmarshal(raw, &env))
	}
	return resp, env
}

func credentialsBody(name string) string {
	return fmt.Sprintf(`{"username":%q,"credential":%q}`, name, strings.Repeat("ab", 32))
}

func (s *WebAPISuite) login(name string) string {
	resp, _ := s.do(http.MethodPost, "/auth/register", credentialsBody(name), "")
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode)
	resp, env := s.do(http.MethodPost, "/auth/login", credentialsBody(name), "")
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &out))
	s.Require().NotEmpty(out.Token)
	return out.Token
}

func (s *WebAPISuite) rpc(token, op, payload string) (*http.Response, envelope) {
	body := fmt.Sprintf(`{"operation":%q,"payload":%s}`, op, payload)
	return s.do(http.MethodPost, "/rpc", body, token)
}

func (s *WebAPISuite) TestHealth() {
	resp, env := s.do(http.MethodGet, "/health", "", "")
	s.Equal(fiber.StatusOK, resp.StatusCode)
	var stats bank.Stats
	s.Require().NoError(json.Unmarshal(env.Data, &stats))
	s.Zero(stats.Users)
}

func (s *WebAPISuite) TestRegister_Conflict() {
	s.login("alice")
	resp, env := s.do(http.MethodPost, "/auth/register", credentialsBody("alice"), "")
	s.Equal(fiber.StatusConflict, resp.StatusCode)
	s.Equal("application/problem+json", resp.Header.Get(fiber.HeaderContentType))
	s.Equal(fiber.StatusConflict, env.Status)
}

func (s *WebAPISuite) TestLogin_BadRequest() {
	resp, _ := s.do(http.MethodPost, "/auth/login", `{"username":123}`, "")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/auth/login", `{"username":"alice"}`, "")
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *WebAPISuite) TestLogin_Unauthorized() {
	resp, _ := s.do(http.MethodPost, "/auth/login", credentialsBody("nobody"), "")
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func (s *WebAPISuite) TestRPC_RequiresToken() {
	resp, _ := s.rpc("", bank.OpListAccounts, `{}`)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
	resp, _ = s.rpc("not.a.jwt", bank.OpListAccounts, `{}`)
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func (s *WebAPISuite) TestRPC_AccountFlow() {
	token := s.login("alice")

	resp, env := s.rpc(token, bank.OpCreateAccount, `{"name":"main"}`)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Detail)
	var account struct {
		ID      string `json:"id"`
		Balance string `json:"balance"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &account))
	s.Equal("1000.00", account.Balance)

	resp, _ = s.rpc(token, bank.OpWithdraw, fmt.Sprintf(`{"account":%q,"amount":"2500.00"}`, account.ID))
	s.Equal(fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, env = s.rpc(token, bank.OpFreezeAccount, fmt.Sprintf(`{"account":%q}`, account.ID))
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal(bank.OpFreezeAccount, env.Message)
	resp, _ = s.rpc(token, bank.OpWithdraw, fmt.Sprintf(`{"account":%q,"amount":"1"}`, account.ID))
	s.Equal(fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.rpc(token, bank.OpGet, `{"collection":"accounts","id":"missing"}`)
	s.Equal(fiber.StatusNotFound, resp.StatusCode)
	resp, _ = s.rpc(token, "mintMoney", `{}`)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *WebAPISuite) TestRPC_Forbidden() {
	alice := s.login("alice")
	bob := s.login("bobby")
	_, env := s.rpc(alice, bank.OpCreateAccount, `{"name":"main"}`)
	var account struct {
		ID string `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &account))

	resp, _ := s.rpc(bob, bank.OpGet, fmt.Sprintf(`{"collection":"accounts","id":%q}`, account.ID))
	s.Equal(fiber.StatusForbidden, resp.StatusCode)
}

func (s *WebAPISuite) TestOperations() {
	token := s.login("alice")
	resp, env := s.do(http.MethodGet, "/rpc/operations", "", token)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var ops []string
	s.Require().NoError(json.Unmarshal(env.Data, &ops))
	s.Contains(ops, bank.OpTransfer)
}

func TestWebAPISuite(t *testing.T) {
	suite.Run(t, new(WebAPISuite))
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(testConfig(2))
	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close() //nolint: errcheck
		want := fiber.StatusOK
		if i == 2 {
			want = fiber.StatusTooManyRequests
		}
		if resp.StatusCode != want {
			t.Errorf("request %d: expected %d, got %d", i+1, want, resp.StatusCode)
		}
	}
}

func TestRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	app := newTestApp(testConfig(2))
	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i+1))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close() //nolint: errcheck
		want := fiber.StatusOK
		if i == 2 {
			want = fiber.StatusTooManyRequests
		}
		if resp.StatusCode != want {
			t.Errorf("request %d: expected %d, got %d", i+1, want, resp.StatusCode)
		}
	}
}

func TestRateLimit_TrustedProxyHeader(t *testing.T) {
	cfg := testConfig(1)
	cfg.Server = &config.Server{TrustedProxies: []string{"0.0.0.0"}, ProxyHeader: fiber.HeaderXForwardedFor}
	app := newTestApp(cfg)
	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(fiber.HeaderXForwardedFor, forwarded)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close() //nolint: errcheck
		return resp.StatusCode
	}
	if got := send("203.0.113.1"); got != fiber.StatusOK {
		t.Errorf("first client: expected %d, got %d", fiber.StatusOK, got)
	}
	if got := send("203.0.113.2, 10.0.0.1"); got != fiber.StatusOK {
		t.Errorf("second client: expected %d, got %d", fiber.StatusOK, got)
	}
	if got := send("203.0.113.1"); got != fiber.StatusTooManyRequests {
		t.Errorf("first client again: expected %d, got %d", fiber.StatusTooManyRequests, got)
	}
}

func TestErrorToStatusCode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrValidation, fiber.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), fiber.StatusNotFound},
		{domain.ErrForbidden, fiber.StatusForbidden},
		{domain.ErrUnauthorized, fiber.StatusUnauthorized},
		{domain.ErrDuplicateUser, fiber.StatusConflict},
		{domain.ErrInvalidTransition, fiber.StatusConflict},
		{domain.ErrAccountFrozen, fiber.StatusUnprocessableEntity},
		{domain.ErrNotPubliclyTraded, fiber.StatusUnprocessableEntity},
		{fiber.ErrMethodNotAllowed, fiber.StatusMethodNotAllowed},
		{io.EOF, fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := ErrorToStatusCode(tt.err); got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

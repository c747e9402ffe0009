package ledger_test

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestMain runs before any tests and applies globally for all tests in the package.
func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	*ledger.Ledger
	clock *fakeClock
}

func newFixture(t *testing.T, opts ...ledger.Option) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	var seq atomic.Int64
	base := []ledger.Option{
		ledger.WithClock(clock.Now),
		ledger.WithHasher(ledger.BcryptHasher{Cost: bcrypt.MinCost}),
		ledger.WithIDGenerator(func() string { return fmt.Sprintf("id-%04d", seq.Add(1)) }),
	}
	return &fixture{Ledger: ledger.New(append(base, opts...)...), clock: clock}
}

func (f *fixture) user(t *testing.T, name string) *ledger.User {
	t.Helper()
	u, err := f.CreateUser(name, "credential-"+name)
	require.NoError(t, err)
	return u
}

func (f *fixture) account(t *testing.T, owner *ledger.User, opts ...ledger.AccountOption) *ledger.Account {
	t.Helper()
	a, err := f.CreateAccount(owner, "main", opts...)
	require.NoError(t, err)
	return a
}

func units(n int64) money.Amount { return money.FromUnits(n) }

func TestCreateUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u, err := f.CreateUser("alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.ID)
	require.NotNil(t, u.Credential)
	assert.NotEqual(t, "s3cret", u.Credential.Hash, "credentials are stored hashed")
	assert.Same(t, u.Credential, f.Credentials[u.Credential.ID])
	assert.Same(t, u, f.Users["alice"])
	assert.NotNil(t, u.Accounts)
	assert.Empty(t, u.Accounts)

	_, err = f.CreateUser("alice", "other")
	assert.ErrorIs(t, err, domain.ErrDuplicateUser)
	assert.Len(t, f.Credentials, 1)
}

func TestCreateUser_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tests := []struct {
		name     string
		username string
		cred     string
	}{
		{"short name", "al", "x"},
		{"spaces", "al ice", "x"},
		{"empty credential", "alice", ""},
	}
	for _, tt := range tests {
		_, err := f.CreateUser(tt.username, tt.cred)
		assert.ErrorIs(t, err, domain.ErrValidation, tt.name)
	}
	assert.Empty(t, f.Users)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.user(t, "alice")

	u, err := f.Authenticate("alice", "credential-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.ID)

	_, err = f.Authenticate("alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.Authenticate("nobody", "credential-alice")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLinkAccount_BothSides(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	a := f.account(t, alice)

	f.LinkAccount(bob, a)
	assert.True(t, bob.Owns(a))
	assert.Same(t, bob, a.Owners["bob"])
	assert.Len(t, a.Owners, 2)
}

func TestLookups_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.Account("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.User("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.Loan("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.Transaction("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.Share("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.Credential("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Package ledger holds the entity graph of a single-authority bank ledger:
// users, credentials, accounts, loans, transactions and shares.
//
// A Ledger is not safe for concurrent use. Callers serialize access so that
// one operation runs to completion before the next begins.
package ledger

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/interest"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/utils"
	"github.com/google/uuid"
)

// Top-level collection names.
const (
	CollUsers        = "users"
	CollCredentials  = "credentials"
	CollAccounts     = "accounts"
	CollLoans        = "loans"
	CollTransactions = "transactions"
	CollShares       = "shares"
)

// Clock returns the current time.
type Clock func() time.Time

// IDGenerator returns a new globally unique identifier.
type IDGenerator func() string

// Hasher produces and checks salted credential hashes.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

// BcryptHasher hashes credentials with bcrypt.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	return utils.HashPassword(secret, h.Cost)
}

func (h BcryptHasher) Compare(hash, secret string) bool {
	return utils.CheckPasswordHash(secret, hash)
}

// AccountSettings are the values a new account starts with.
type AccountSettings struct {
	Balance          money.Amount
	InterestEnabled  bool
	InterestRateBps  int64
	InterestType     interest.Type
	OverdraftEnabled bool
	MaxAutoLoan      money.Amount
	PubliclyTraded   bool
}

// DefaultAccountSettings returns balance 1000, compound interest at 1% per
// day, and overdraft enabled with a 1000 automatic loan ceiling.
func DefaultAccountSettings() AccountSettings {
	return AccountSettings{
		Balance:          money.FromUnits(1000),
		InterestEnabled:  true,
		InterestRateBps:  100,
		InterestType:     interest.Compound,
		OverdraftEnabled: true,
		MaxAutoLoan:      money.FromUnits(1000),
	}
}

// LoanSettings configure interest on new loans.
type LoanSettings struct {
	InterestRateBps int64
	InterestType    interest.Type
}

// DefaultLoanSettings returns compound interest at 1% per day.
func DefaultLoanSettings() LoanSettings {
	return LoanSettings{InterestRateBps: 100, InterestType: interest.Compound}
}

// Ledger owns every entity. The exported maps are the authoritative
// top-level collections keyed by ID; account-side slices and maps are
// indexes into them.
type Ledger struct {
	Users        map[string]*User
	Credentials  map[string]*Credential
	Accounts     map[string]*Account
	Loans        map[string]*Loan
	Transactions map[string]*Transaction
	Shares       map[string]*Share

	clock   Clock
	newID   IDGenerator
	hasher  Hasher
	logger  *slog.Logger
	account AccountSettings
	loan    LoanSettings

	dummyOnce sync.Once
	dummyHash string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithIDGenerator sets the identifier source.
func WithIDGenerator(g IDGenerator) Option {
	return func(l *Ledger) { l.newID = g }
}

// WithHasher sets the credential hasher.
func WithHasher(h Hasher) Option {
	return func(l *Ledger) { l.hasher = h }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithAccountDefaults sets the settings new accounts start from.
func WithAccountDefaults(s AccountSettings) Option {
	return func(l *Ledger) { l.account = s }
}

// WithLoanDefaults sets the settings new loans start from.
func WithLoanDefaults(s LoanSettings) Option {
	return func(l *Ledger) { l.loan = s }
}

// New returns an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		clock:   time.Now,
		newID:   uuid.NewString,
		hasher:  BcryptHasher{Cost: utils.DefaultBcryptCost},
		logger:  slog.Default(),
		account: DefaultAccountSettings(),
		loan:    DefaultLoanSettings(),
	}
	l.reset()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) reset() {
	l.Users = make(map[string]*User)
	l.Credentials = make(map[string]*Credential)
	l.Accounts = make(map[string]*Account)
	l.Loans = make(map[string]*Loan)
	l.Transactions = make(map[string]*Transaction)
	l.Shares = make(map[string]*Share)
}

// Now returns the ledger time in UTC without a monotonic reading.
func (l *Ledger) Now() time.Time {
	return l.clock().UTC().Round(0)
}

// AccountDefaults returns the settings new accounts start from.
func (l *Ledger) AccountDefaults() AccountSettings {
	return l.account
}

func lookup[T any](m map[string]*T, what, id string) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", what, id, domain.ErrNotFound)
	}
	return v, nil
}

// User returns the user registered under username.
func (l *Ledger) User(username string) (*User, error) {
	return lookup(l.Users, "user", username)
}

// Account returns the account with the given ID.
func (l *Ledger) Account(id string) (*Account, error) {
	return lookup(l.Accounts, "account", id)
}

// Loan returns the loan with the given ID.
func (l *Ledger) Loan(id string) (*Loan, error) {
	return lookup(l.Loans, "loan", id)
}

// Transaction returns the transaction with the given ID.
func (l *Ledger) Transaction(id string) (*Transaction, error) {
	return lookup(l.Transactions, "transaction", id)
}

// Share returns the share with the given ID.
func (l *Ledger) Share(id string) (*Share, error) {
	return lookup(l.Shares, "share", id)
}

// Credential returns the credential with the given ID.
func (l *Ledger) Credential(id string) (*Credential, error) {
	return lookup(l.Credentials, "credential", id)
}

func positive(amount money.Amount) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s: %w", amount, domain.ErrValidation)
	}
	return nil
}

package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/interest"
	"github.com/amirasaad/ledger/pkg/money"
)

// AccountState is the operational state of an account.
type AccountState string

const (
	AccountNormal AccountState = "normal"
	AccountFrozen AccountState = "frozen"
)

// Overdraft configures automatic loans that cover debits beyond the balance.
type Overdraft struct {
	Enabled     bool         `graph:"enabled"`
	MaxAutoLoan money.Amount `graph:"maxAutoLoan"`
}

// Account holds a balance owned by one or more users.
//
// Invariants:
//   - Balance is never negative; a shortfall is covered by an approved loan or refused.
//   - A frozen account refuses debits.
//   - Every share in Shares has Owner == this account.
type Account struct {
	ID             string            `graph:"id"`
	Name           string            `graph:"name"`
	Balance        money.Amount      `graph:"balance"`
	State          AccountState      `graph:"state"`
	PubliclyTraded bool              `graph:"publiclyTraded"`
	TotalShares    int64             `graph:"totalShares"`
	Interest       interest.Accrual  `graph:"interest"`
	Overdraft      Overdraft         `graph:"overdraft"`
	Owners         map[string]*User  `graph:"owners,ref=users"`
	Loans          []*Loan           `graph:"loans,ref=loans"`
	Transactions   []*Transaction    `graph:"transactions,ref=transactions"`
	Shares         map[string]*Share `graph:"shares,ref=shares"`
	CreatedAt      time.Time         `graph:"createdAt"`
	UpdatedAt      time.Time         `graph:"updatedAt"`
}

func (a *Account) NodeID() string   { return a.ID }
func (a *Account) NodeKind() string { return "account" }

// IsFrozen reports whether the account refuses debits.
func (a *Account) IsFrozen() bool { return a.State == AccountFrozen }

// AccountOption overrides a default account setting.
type AccountOption func(*AccountSettings)

// WithBalance sets the opening balance.
func WithBalance(b money.Amount) AccountOption {
	return func(s *AccountSettings) { s.Balance = b }
}

// WithInterest enables interest with the given rate and type.
func WithInterest(rateBps int64, typ interest.Type) AccountOption {
	return func(s *AccountSettings) {
		s.InterestEnabled = true
		s.InterestRateBps = rateBps
		s.InterestType = typ
	}
}

// WithoutInterest disables interest.
func WithoutInterest() AccountOption {
	return func(s *AccountSettings) { s.InterestEnabled = false }
}

// WithOverdraft configures automatic loans.
func WithOverdraft(enabled bool, maxAutoLoan money.Amount) AccountOption {
	return func(s *AccountSettings) {
		s.OverdraftEnabled = enabled
		s.MaxAutoLoan = maxAutoLoan
	}
}

// WithPubliclyTraded marks the account as able to issue shares.
func WithPubliclyTraded(traded bool) AccountOption {
	return func(s *AccountSettings) { s.PubliclyTraded = traded }
}

// CreateAccount opens an account owned by owner and registers it.
func (l *Ledger) CreateAccount(owner *User, name string, opts ...AccountOption) (*Account, error) {
	if owner == nil {
		return nil, fmt.Errorf("account needs an owner: %w", domain.ErrValidation)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("account needs a name: %w", domain.ErrValidation)
	}
	s := l.account
	for _, opt := range opts {
		opt(&s)
	}
	if s.Balance.IsNegative() || s.MaxAutoLoan.IsNegative() || s.InterestRateBps < 0 {
		return nil, fmt.Errorf("negative account setting: %w", domain.ErrValidation)
	}
	if s.InterestType == "" {
		s.InterestType = interest.Compound
	}

	now := l.Now()
	a := &Account{
		ID:             l.newID(),
		Name:           name,
		Balance:        s.Balance,
		State:          AccountNormal,
		PubliclyTraded: s.PubliclyTraded,
		Interest:       interest.Accrual{RateBps: s.InterestRateBps, Type: s.InterestType},
		Overdraft:      Overdraft{Enabled: s.OverdraftEnabled, MaxAutoLoan: s.MaxAutoLoan},
		Owners:         make(map[string]*User),
		Loans:          []*Loan{},
		Transactions:   []*Transaction{},
		Shares:         make(map[string]*Share),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if s.InterestEnabled {
		a.Interest.Enable(now)
	}
	l.Accounts[a.ID] = a
	l.LinkAccount(owner, a)
	l.logger.Info("Account created", "account_id", a.ID, "owner", owner.ID, "balance", a.Balance)
	return a, nil
}

// ApplyInterest accrues at most one period of interest on the account.
func (l *Ledger) ApplyInterest(a *Account) {
	now := l.Now()
	if bal, changed := a.Interest.Apply(a.Balance, now); changed {
		l.logger.Debug("Interest applied", "account_id", a.ID, "from", a.Balance, "to", bal)
		a.Balance = bal
		a.UpdatedAt = now
	}
}

// Balance returns the balance after accruing due interest.
func (l *Ledger) Balance(a *Account) money.Amount {
	l.ApplyInterest(a)
	return a.Balance
}

// OutstandingLoans sums the balances of the account's approved loans,
// saturating at the largest Amount.
func (l *Ledger) OutstandingLoans(a *Account) money.Amount {
	var total money.Amount
	for _, loan := range a.Loans {
		if loan.State != LoanApproved {
			continue
		}
		l.applyLoanInterest(loan)
		next, err := total.Add(loan.Balance)
		if err != nil {
			return money.FromMinor(math.MaxInt64)
		}
		total = next
	}
	return total
}

// Headroom is the unused part of the account's automatic loan ceiling.
func (l *Ledger) Headroom(a *Account) money.Amount {
	if !a.Overdraft.Enabled {
		return 0
	}
	h, err := a.Overdraft.MaxAutoLoan.Sub(l.OutstandingLoans(a))
	if err != nil || h.IsNegative() {
		return 0
	}
	return h
}

// Debit subtracts amount from the account. A shortfall within the headroom
// is covered by a new approved loan; otherwise nothing changes.
func (l *Ledger) Debit(a *Account, amount money.Amount) error {
	return l.debit(a, amount, true)
}

func (l *Ledger) debit(a *Account, amount money.Amount, allowOverdraft bool) error {
	if err := positive(amount); err != nil {
		return err
	}
	if a.IsFrozen() {
		return fmt.Errorf("debit %s: %w", a.ID, domain.ErrAccountFrozen)
	}
	l.ApplyInterest(a)

	if amount > a.Balance {
		// Balance is never negative here, so the shortfall fits.
		shortfall := amount - a.Balance
		if !allowOverdraft || shortfall > l.Headroom(a) {
			l.logger.Info("Debit refused",
				"account_id", a.ID, "amount", amount, "balance", a.Balance, "shortfall", shortfall)
			return fmt.Errorf("debit %s of %s: %w", a.ID, amount, domain.ErrInsufficientFundsAndOverdraftDenied)
		}
		loan, err := l.CreateLoan(a, shortfall)
		if err != nil {
			return err
		}
		if loan.State != LoanApproved {
			return fmt.Errorf("overdraft loan %s not approved: %w", loan.ID, domain.ErrInsufficientFundsAndOverdraftDenied)
		}
		l.logger.Info("Overdraft loan issued", "account_id", a.ID, "loan_id", loan.ID, "amount", shortfall)
	}
	a.Balance -= amount
	a.UpdatedAt = l.Now()
	return nil
}

// Credit adds amount to the account. Frozen accounts still accept credits
// so that refunds and reversals can land. A credit that would overflow the
// balance fails and leaves the account unchanged.
func (l *Ledger) Credit(a *Account, amount money.Amount) error {
	if err := positive(amount); err != nil {
		return err
	}
	l.ApplyInterest(a)
	next, err := a.Balance.Add(amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w: %w", a.ID, domain.ErrValidation, err)
	}
	a.Balance = next
	a.UpdatedAt = l.Now()
	return nil
}

// canCredit reports whether amount can be added to the balance without
// overflow.
func canCredit(a *Account, amount money.Amount) error {
	if _, err := a.Balance.Add(amount); err != nil {
		return fmt.Errorf("credit %s: %w: %w", a.ID, domain.ErrValidation, err)
	}
	return nil
}

// Freeze makes the account refuse debits.
func (l *Ledger) Freeze(a *Account) {
	a.State = AccountFrozen
	a.UpdatedAt = l.Now()
	l.logger.Info("Account frozen", "account_id", a.ID)
}

// Unfreeze returns the account to normal.
func (l *Ledger) Unfreeze(a *Account) {
	a.State = AccountNormal
	a.UpdatedAt = l.Now()
	l.logger.Info("Account unfrozen", "account_id", a.ID)
}

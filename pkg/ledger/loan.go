package ledger

import (
	"fmt"
	"time"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/interest"
	"github.com/amirasaad/ledger/pkg/money"
)

// LoanState is the lifecycle state of a loan.
type LoanState string

const (
	LoanPending  LoanState = "pending"
	LoanApproved LoanState = "approved"
	LoanPaid     LoanState = "paid"
)

// Loan is money lent to exactly one account.
//
// Once approved, Balance only decreases through payments; interest accrual
// is the one source of growth.
type Loan struct {
	ID             string           `graph:"id"`
	Account        *Account         `graph:"account,ref=accounts"`
	Balance        money.Amount     `graph:"balance"`
	InitialBalance money.Amount     `graph:"initialBalance"`
	Interest       interest.Accrual `graph:"interest"`
	State          LoanState        `graph:"state"`
	CreatedAt      time.Time        `graph:"createdAt"`
	UpdatedAt      time.Time        `graph:"updatedAt"`
}

func (l *Loan) NodeID() string   { return l.ID }
func (l *Loan) NodeKind() string { return "loan" }

// LoanOption overrides a default loan setting.
type LoanOption func(*LoanSettings)

// WithLoanInterest sets the interest applied once the loan is approved.
func WithLoanInterest(rateBps int64, typ interest.Type) LoanOption {
	return func(s *LoanSettings) {
		s.InterestRateBps = rateBps
		s.InterestType = typ
	}
}

// CreateLoan registers a loan of amount against a. It is approved at once,
// crediting a, when amount fits the account's headroom; otherwise it stays
// pending.
func (l *Ledger) CreateLoan(a *Account, amount money.Amount, opts ...LoanOption) (*Loan, error) {
	if err := positive(amount); err != nil {
		return nil, err
	}
	s := l.loan
	for _, opt := range opts {
		opt(&s)
	}
	if s.InterestType == "" {
		s.InterestType = interest.Compound
	}

	headroom := l.Headroom(a)
	if amount <= headroom {
		l.ApplyInterest(a)
		if err := canCredit(a, amount); err != nil {
			return nil, err
		}
	}
	now := l.Now()
	loan := &Loan{
		ID:             l.newID(),
		Account:        a,
		Balance:        amount,
		InitialBalance: amount,
		Interest:       interest.Accrual{RateBps: s.InterestRateBps, Type: s.InterestType},
		State:          LoanPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	l.Loans[loan.ID] = loan
	a.Loans = append(a.Loans, loan)

	if amount <= headroom {
		if err := l.ChangeLoanState(loan, LoanApproved); err != nil {
			return nil, err
		}
	}
	l.logger.Info("Loan created", "loan_id", loan.ID, "account_id", a.ID, "amount", amount, "state", loan.State)
	return loan, nil
}

// ChangeLoanState moves the loan to next. Approval enables interest and
// credits the account with the initial balance; payment disables interest.
// Any other change fails with ErrInvalidTransition.
func (l *Ledger) ChangeLoanState(loan *Loan, next LoanState) error {
	if loan.State == next {
		return nil
	}
	now := l.Now()
	switch {
	case loan.State == LoanPending && next == LoanApproved:
		if err := l.Credit(loan.Account, loan.InitialBalance); err != nil {
			return err
		}
		loan.Interest.Enable(now)
	case loan.State == LoanApproved && next == LoanPaid:
		loan.Interest.Disable()
	default:
		return fmt.Errorf("loan %s %s -> %s: %w", loan.ID, loan.State, next, domain.ErrInvalidTransition)
	}
	l.logger.Debug("Loan state changed", "loan_id", loan.ID, "from", loan.State, "to", next)
	loan.State = next
	loan.UpdatedAt = now
	return nil
}

func (l *Ledger) applyLoanInterest(loan *Loan) {
	if bal, changed := loan.Interest.Apply(loan.Balance, l.Now()); changed {
		loan.Balance = bal
		loan.UpdatedAt = l.Now()
	}
}

// PayLoan debits from by up to amount, never more than the outstanding
// balance, and returns what was paid. Payments never trigger overdraft
// loans. The loan is marked paid when its balance reaches zero.
func (l *Ledger) PayLoan(loan *Loan, from *Account, amount money.Amount) (money.Amount, error) {
	if err := positive(amount); err != nil {
		return 0, err
	}
	if loan.State != LoanApproved {
		return 0, fmt.Errorf("pay loan %s in state %s: %w", loan.ID, loan.State, domain.ErrInvalidTransition)
	}
	l.applyLoanInterest(loan)

	pay := money.Min(amount, loan.Balance)
	if err := l.debit(from, pay, false); err != nil {
		return 0, err
	}
	loan.Balance -= pay
	loan.UpdatedAt = l.Now()
	if loan.Balance.IsZero() {
		if err := l.ChangeLoanState(loan, LoanPaid); err != nil {
			return pay, err
		}
	}
	l.logger.Info("Loan payment", "loan_id", loan.ID, "account_id", from.ID, "paid", pay, "remaining", loan.Balance)
	return pay, nil
}

package dto

import (
	"time"

	"github.com/amirasaad/ledger/pkg/money"
)

// UserRead is the public view of a user. Credential hashes are never exposed.
type UserRead struct {
	Username  string    `json:"username"`
	Accounts  []string  `json:"accounts"`
	CreatedAt time.Time `json:"created_at"`
}

// InterestRead describes an interest accrual.
type InterestRead struct {
	Enabled     bool      `json:"enabled"`
	RateBps     int64     `json:"rate_bps"`
	Type        string    `json:"type"`
	LastApplied time.Time `json:"last_applied,omitempty"`
}

// AccountRead is the public view of an account.
type AccountRead struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Balance          money.Amount `json:"balance"`
	State            string       `json:"state"`
	PubliclyTraded   bool         `json:"publicly_traded"`
	TotalShares      int64        `json:"total_shares"`
	Interest         InterestRead `json:"interest"`
	OverdraftEnabled bool         `json:"overdraft_enabled"`
	MaxAutoLoan      money.Amount `json:"max_auto_loan"`
	Headroom         money.Amount `json:"headroom"`
	Owners           []string     `json:"owners"`
	Loans            []string     `json:"loans"`
	Transactions     []string     `json:"transactions"`
	Shares           []string     `json:"shares"`
	CreatedAt        time.Time    `json:"created_at"`
}

// LoanRead is the public view of a loan.
type LoanRead struct {
	ID             string       `json:"id"`
	Account        string       `json:"account"`
	Balance        money.Amount `json:"balance"`
	InitialBalance money.Amount `json:"initial_balance"`
	State          string       `json:"state"`
	Interest       InterestRead `json:"interest"`
	CreatedAt      time.Time    `json:"created_at"`
}

// StateChangeRead is one audit trail entry.
type StateChangeRead struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// TransactionRead is the public view of a transaction.
type TransactionRead struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	State     string            `json:"state"`
	Amount    money.Amount      `json:"amount"`
	Accounts  []string          `json:"accounts"`
	Share     string            `json:"share,omitempty"`
	Linked    string            `json:"linked,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	History   []StateChangeRead `json:"history"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ShareRead is the public view of a share.
type ShareRead struct {
	ID        string    `json:"id"`
	Issuer    string    `json:"issuer"`
	Owner     string    `json:"owner,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentRead reports a loan payment.
type PaymentRead struct {
	Paid money.Amount `json:"paid"`
	Loan LoanRead     `json:"loan"`
}

// ShareSaleRead reports a share sale and the payment it waits on.
type ShareSaleRead struct {
	Sale    TransactionRead `json:"sale"`
	Payment TransactionRead `json:"payment"`
}

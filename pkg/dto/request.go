package dto

import (
	"encoding/json"

	"github.com/amirasaad/ledger/pkg/money"
)

// Request is one decoded call delivered by the RPC channel.
type Request struct {
	Operation string          `json:"operation" validate:"required"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// GetRequest looks up one record of a top-level collection.
type GetRequest struct {
	Collection string `json:"collection" validate:"required,oneof=users accounts loans transactions shares"`
	ID         string `json:"id" validate:"required"`
}

// Credentials carry a username and the client-derived credential. The
// server never sees the plaintext password.
type Credentials struct {
	Username   string `json:"username" validate:"required,min=3,max=64"`
	Credential string `json:"credential" validate:"required,len=64,hexadecimal"`
}

// CreateAccountRequest opens an account owned by the caller. Unset options
// fall back to the configured defaults.
type CreateAccountRequest struct {
	Name             string `json:"name" validate:"required,max=64"`
	PubliclyTraded   bool   `json:"publicly_traded"`
	InterestEnabled  *bool  `json:"interest_enabled,omitempty"`
	InterestRateBps  *int64 `json:"interest_rate_bps,omitempty" validate:"omitempty,min=0,max=10000"`
	InterestType     string `json:"interest_type,omitempty" validate:"omitempty,oneof=simple compound"`
	OverdraftEnabled *bool  `json:"overdraft_enabled,omitempty"`
}

// TransferRequest moves Amount from one account to another.
type TransferRequest struct {
	From   string       `json:"from" validate:"required"`
	To     string       `json:"to" validate:"required,nefield=From"`
	Amount money.Amount `json:"amount" validate:"gt=0"`
}

// AmountRequest applies Amount to a single account (deposit, withdraw, requestLoan).
type AmountRequest struct {
	Account string       `json:"account" validate:"required"`
	Amount  money.Amount `json:"amount" validate:"gt=0"`
}

// AccountRequest names a single account (issueShare, freeze, unfreeze).
type AccountRequest struct {
	Account string `json:"account" validate:"required"`
}

// TransactionRequest names a transaction (approve, cancel, revert).
type TransactionRequest struct {
	Transaction string `json:"transaction" validate:"required"`
}

// PayLoanRequest pays Amount towards Loan from Account.
type PayLoanRequest struct {
	Loan    string       `json:"loan" validate:"required"`
	Account string       `json:"account" validate:"required"`
	Amount  money.Amount `json:"amount" validate:"gt=0"`
}

// TransferShareRequest sells Share to the To account for Price.
type TransferShareRequest struct {
	Share string       `json:"share" validate:"required"`
	To    string       `json:"to" validate:"required"`
	Price money.Amount `json:"price" validate:"gt=0"`
}

// Package interest implements time-gated balance growth shared by accounts and loans.
//
// An Accrual is embedded by value in the owning entity; the owner passes its
// current balance to Apply and stores the returned balance. At most one
// Period is applied per call and LastApplied advances by exactly one Period,
// so callers after a long gap see one period of growth per call.
package interest

import (
	"fmt"
	"time"

	"github.com/amirasaad/ledger/pkg/money"
)

// Period is the accrual period.
const Period = 24 * time.Hour

// Type selects how growth is computed.
type Type string

const (
	// Simple grows by a fixed share of the principal captured on first application.
	Simple Type = "simple"
	// Compound grows by a share of the current balance.
	Compound Type = "compound"
)

// ParseType validates a textual interest type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Simple, Compound:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown interest type %q", s)
	}
}

// Accrual holds interest configuration and bookkeeping. RateBps is the
// rate per Period in basis points (100 = 1%).
type Accrual struct {
	Enabled      bool         `graph:"enabled"`
	RateBps      int64        `graph:"rateBps"`
	Type         Type         `graph:"type"`
	LastApplied  time.Time    `graph:"lastApplied"`
	Principal    money.Amount `graph:"principal"`
	PrincipalSet bool         `graph:"principalSet"`
}

// New returns an enabled accrual starting at now.
func New(rateBps int64, typ Type, now time.Time) Accrual {
	return Accrual{Enabled: true, RateBps: rateBps, Type: typ, LastApplied: now}
}

// Enable turns accrual on and restarts the period clock at now.
func (a *Accrual) Enable(now time.Time) {
	a.Enabled = true
	a.LastApplied = now
}

// Disable turns accrual off.
func (a *Accrual) Disable() {
	a.Enabled = false
}

// Due reports whether a full period has elapsed since the last application.
func (a *Accrual) Due(now time.Time) bool {
	return a.Enabled && !a.LastApplied.IsZero() && now.Sub(a.LastApplied) >= Period
}

// Apply returns balance after at most one period of growth and whether
// anything changed. Calling it again within the same period is a no-op.
// Growth that would overflow an Amount is dropped.
func (a *Accrual) Apply(balance money.Amount, now time.Time) (money.Amount, bool) {
	if !a.Enabled {
		return balance, false
	}
	if a.LastApplied.IsZero() {
		a.LastApplied = now
		return balance, false
	}
	if now.Sub(a.LastApplied) < Period {
		return balance, false
	}

	base := balance
	if a.Type == Simple {
		if !a.PrincipalSet {
			a.Principal = balance
			a.PrincipalSet = true
		}
		base = a.Principal
	}
	a.LastApplied = a.LastApplied.Add(Period)
	// A period whose growth would overflow is consumed without growth.
	growth, err := base.MulRate(a.RateBps)
	if err != nil {
		return balance, false
	}
	next, err := balance.Add(growth)
	if err != nil {
		return balance, false
	}
	return next, true
}

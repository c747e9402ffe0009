package ledger

import (
	"fmt"
	"time"

	"github.com/amirasaad/ledger/pkg/domain"
)

// Share is one unit of ownership in a publicly traded account.
type Share struct {
	ID        string    `graph:"id"`
	Issuer    *Account  `graph:"issuer,ref=accounts"`
	Owner     *Account  `graph:"owner,ref=accounts"`
	CreatedAt time.Time `graph:"createdAt"`
}

func (s *Share) NodeID() string   { return s.ID }
func (s *Share) NodeKind() string { return "share" }

// CreateShare issues a share of a, initially owned by a.
func (l *Ledger) CreateShare(a *Account) (*Share, error) {
	if !a.PubliclyTraded {
		return nil, fmt.Errorf("issue share for %s: %w", a.ID, domain.ErrNotPubliclyTraded)
	}
	s := &Share{ID: l.newID(), Issuer: a, CreatedAt: l.Now()}
	l.Shares[s.ID] = s
	a.TotalShares++
	l.SetShareOwner(s, a)
	return s, nil
}

// SetShareOwner moves s from its current owner's index into owner's.
// A nil owner clears ownership.
func (l *Ledger) SetShareOwner(s *Share, owner *Account) {
	if prev := s.Owner; prev != nil {
		if _, ok := prev.Shares[s.ID]; ok {
			delete(prev.Shares, s.ID)
		} else {
			l.logger.Warn("Share missing from owner index", "share_id", s.ID, "account_id", prev.ID)
		}
	}
	s.Owner = owner
	if owner == nil {
		return
	}
	if owner.Shares == nil {
		owner.Shares = make(map[string]*Share)
	}
	owner.Shares[s.ID] = s
}

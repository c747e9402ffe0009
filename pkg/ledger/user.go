package ledger

import (
	"fmt"
	"time"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/utils"
)

// User is a login identity. ID is the login name.
type User struct {
	ID         string              `graph:"id"`
	Credential *Credential         `graph:"credential,ref=credentials"`
	Accounts   map[string]*Account `graph:"accounts,ref=accounts"`
	CreatedAt  time.Time           `graph:"createdAt"`
}

func (u *User) NodeID() string   { return u.ID }
func (u *User) NodeKind() string { return "user" }

// Owns reports whether a is linked to u.
func (u *User) Owns(a *Account) bool {
	if a == nil {
		return false
	}
	_, ok := u.Accounts[a.ID]
	return ok
}

// Credential is a salted credential hash owned by exactly one user.
type Credential struct {
	ID        string    `graph:"id"`
	Hash      string    `graph:"hash"`
	CreatedAt time.Time `graph:"createdAt"`
}

func (c *Credential) NodeID() string   { return c.ID }
func (c *Credential) NodeKind() string { return "credential" }

// CreateUser registers username with a new credential record. The
// credential is hashed before it is stored.
func (l *Ledger) CreateUser(username, credential string) (*User, error) {
	if !utils.IsUsername(username) {
		return nil, fmt.Errorf("invalid username %q: %w", username, domain.ErrValidation)
	}
	if credential == "" {
		return nil, fmt.Errorf("empty credential: %w", domain.ErrValidation)
	}
	if _, exists := l.Users[username]; exists {
		return nil, fmt.Errorf("%q: %w", username, domain.ErrDuplicateUser)
	}
	hash, err := l.hasher.Hash(credential)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	now := l.Now()
	cred := &Credential{ID: l.newID(), Hash: hash, CreatedAt: now}
	u := &User{
		ID:         username,
		Credential: cred,
		Accounts:   make(map[string]*Account),
		CreatedAt:  now,
	}
	l.Credentials[cred.ID] = cred
	l.Users[u.ID] = u
	l.logger.Info("User registered", "user_id", u.ID)
	return u, nil
}

// Authenticate returns the user when credential matches the stored hash.
// Unknown users and wrong credentials both yield ErrUnauthorized.
func (l *Ledger) Authenticate(username, credential string) (*User, error) {
	u, ok := l.Users[username]
	if !ok || u.Credential == nil {
		l.hasher.Compare(l.dummy(), credential)
		return nil, domain.ErrUnauthorized
	}
	if !l.hasher.Compare(u.Credential.Hash, credential) {
		return nil, domain.ErrUnauthorized
	}
	return u, nil
}

// dummy is compared against for unknown users so that both failure paths
// cost one hash comparison.
func (l *Ledger) dummy() string {
	l.dummyOnce.Do(func() {
		l.dummyHash, _ = l.hasher.Hash("dummy-credential")
	})
	return l.dummyHash
}

// LinkAccount records u as an owner of a and a as an account of u.
func (l *Ledger) LinkAccount(u *User, a *Account) {
	if u.Accounts == nil {
		u.Accounts = make(map[string]*Account)
	}
	if a.Owners == nil {
		a.Owners = make(map[string]*User)
	}
	u.Accounts[a.ID] = a
	a.Owners[u.ID] = u
}

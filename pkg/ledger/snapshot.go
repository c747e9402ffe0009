package ledger

import (
	"fmt"

	"github.com/amirasaad/ledger/pkg/graph"
)

// Registry returns the kinds stored in a ledger document.
func Registry() *graph.Registry {
	return graph.NewRegistry(
		&User{}, &Credential{}, &Account{}, &Loan{}, &Transaction{}, &Share{},
	)
}

func nodes[T graph.Node](m map[string]T) map[string]graph.Node {
	out := make(map[string]graph.Node, len(m))
	for id, v := range m {
		out[id] = v
	}
	return out
}

// Collections exposes the six top-level collections to the graph codec.
func (l *Ledger) Collections() graph.Collections {
	return graph.Collections{
		CollUsers:        nodes(l.Users),
		CollCredentials:  nodes(l.Credentials),
		CollAccounts:     nodes(l.Accounts),
		CollLoans:        nodes(l.Loans),
		CollTransactions: nodes(l.Transactions),
		CollShares:       nodes(l.Shares),
	}
}

// Snapshot encodes the whole ledger.
func (l *Ledger) Snapshot() (*graph.Document, error) {
	doc, err := graph.Encode(l.Collections())
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	doc.SavedAt = l.Now()
	return doc, nil
}

// Marshal encodes the whole ledger as JSON.
func (l *Ledger) Marshal() ([]byte, error) {
	doc, err := l.Snapshot()
	if err != nil {
		return nil, err
	}
	return graph.Marshal(doc)
}

func typed[T graph.Node](cols graph.Collections, name string) (map[string]T, error) {
	out := make(map[string]T, len(cols[name]))
	for id, n := range cols[name] {
		v, ok := n.(T)
		if !ok {
			return nil, fmt.Errorf("%s/%s: %w: unexpected %s", name, id, graph.ErrMalformed, n.NodeKind())
		}
		out[id] = v
	}
	return out, nil
}

// Restore replaces the ledger contents with doc. On error the ledger is
// left as it was.
func (l *Ledger) Restore(doc *graph.Document) error {
	cols, err := graph.Decode(doc, Registry())
	if err != nil {
		return fmt.Errorf("decode ledger: %w", err)
	}
	users, err := typed[*User](cols, CollUsers)
	if err != nil {
		return err
	}
	creds, err := typed[*Credential](cols, CollCredentials)
	if err != nil {
		return err
	}
	accounts, err := typed[*Account](cols, CollAccounts)
	if err != nil {
		return err
	}
	loans, err := typed[*Loan](cols, CollLoans)
	if err != nil {
		return err
	}
	txs, err := typed[*Transaction](cols, CollTransactions)
	if err != nil {
		return err
	}
	shares, err := typed[*Share](cols, CollShares)
	if err != nil {
		return err
	}

	l.Users, l.Credentials, l.Accounts = users, creds, accounts
	l.Loans, l.Transactions, l.Shares = loans, txs, shares
	l.logger.Info("Ledger restored",
		"users", len(users), "accounts", len(accounts), "transactions", len(txs), "saved_at", doc.SavedAt)
	return nil
}

// Load restores the ledger from JSON produced by Marshal.
func (l *Ledger) Load(data []byte) error {
	doc, err := graph.Unmarshal(data)
	if err != nil {
		return err
	}
	return l.Restore(doc)
}

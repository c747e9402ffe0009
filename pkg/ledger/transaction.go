package ledger

import (
	"fmt"
	"time"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/money"
)

// TxType is the kind of movement a transaction performs.
type TxType string

const (
	CurrencyTransfer TxType = "currency_transfer"
	ShareTransfer    TxType = "share_transfer"
	Deposit          TxType = "deposit"
	Withdrawal       TxType = "withdrawal"
)

// TxState is a transaction state. See the edges table for valid moves.
type TxState string

const (
	PendingHold        TxState = "pending_hold"
	PendingApproval    TxState = "pending_approval"
	Approved           TxState = "approved"
	Complete           TxState = "complete"
	PendingRevertHold  TxState = "pending_revert_hold"
	RevertHold         TxState = "revert_hold"
	Reverted           TxState = "reverted"
	Cancelled          TxState = "cancelled"
	PendingTransaction TxState = "pending_transaction"
)

// StateChange is one entry of a transaction's audit trail.
type StateChange struct {
	From TxState   `graph:"from"`
	To   TxState   `graph:"to"`
	At   time.Time `graph:"at"`
}

// Transaction moves currency or a share between accounts in explicit steps.
// Accounts holds the source first and, for transfers, the destination second.
type Transaction struct {
	ID        string        `graph:"id"`
	Type      TxType        `graph:"type"`
	State     TxState       `graph:"state"`
	Amount    money.Amount  `graph:"amount"`
	Share     *Share        `graph:"share,ref=shares"`
	Linked    *Transaction  `graph:"linked,ref=transactions"`
	Accounts  []*Account    `graph:"accounts,ref=accounts"`
	Reason    string        `graph:"reason"`
	History   []StateChange `graph:"history"`
	CreatedAt time.Time     `graph:"createdAt"`
	UpdatedAt time.Time     `graph:"updatedAt"`
}

func (t *Transaction) NodeID() string   { return t.ID }
func (t *Transaction) NodeKind() string { return "transaction" }

// Source is the account funds or the share leave.
func (t *Transaction) Source() *Account {
	if len(t.Accounts) == 0 {
		return nil
	}
	return t.Accounts[0]
}

// Destination is the account funds or the share arrive at, nil for
// deposits and withdrawals.
func (t *Transaction) Destination() *Account {
	if len(t.Accounts) < 2 {
		return nil
	}
	return t.Accounts[1]
}

// Involves reports whether a is one of the transaction's accounts.
func (t *Transaction) Involves(a *Account) bool {
	for _, acc := range t.Accounts {
		if acc == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no tick will move the transaction further.
func (t *Transaction) IsTerminal() bool {
	switch t.State {
	case Complete, Cancelled, Reverted:
		return true
	}
	return false
}

func (l *Ledger) newTransaction(typ TxType, state TxState, amount money.Amount, accounts ...*Account) *Transaction {
	now := l.Now()
	tx := &Transaction{
		ID:        l.newID(),
		Type:      typ,
		State:     state,
		Amount:    amount,
		Accounts:  accounts,
		History:   []StateChange{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.Transactions[tx.ID] = tx
	for _, a := range accounts {
		a.Transactions = append(a.Transactions, tx)
	}
	l.logger.Debug("Transaction created", "transaction_id", tx.ID, "type", typ, "state", state, "amount", amount)
	return tx
}

// Transfer starts a currency transfer in pending_hold. The source is
// debited on the first tick.
func (l *Ledger) Transfer(from, to *Account, amount money.Amount) (*Transaction, error) {
	if err := positive(amount); err != nil {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("transfer to the same account: %w", domain.ErrValidation)
	}
	return l.newTransaction(CurrencyTransfer, PendingHold, amount, from, to), nil
}

// Deposit records an approved deposit; the account is credited on tick.
// A deposit the balance could never hold is refused up front.
func (l *Ledger) Deposit(a *Account, amount money.Amount) (*Transaction, error) {
	if err := positive(amount); err != nil {
		return nil, err
	}
	if err := canCredit(a, amount); err != nil {
		return nil, err
	}
	return l.newTransaction(Deposit, Approved, amount, a), nil
}

// Withdraw records a withdrawal and resolves it at once. The returned
// transaction is complete on success, or cancelled alongside the debit error.
func (l *Ledger) Withdraw(a *Account, amount money.Amount) (*Transaction, error) {
	if err := positive(amount); err != nil {
		return nil, err
	}
	tx := l.newTransaction(Withdrawal, Approved, amount, a)
	if _, err := l.Tick(tx); err != nil {
		return tx, err
	}
	return tx, nil
}

// TransferShare sells s from its owner to buyer for price. It creates a
// currency transfer from buyer to seller and a share transfer linked to
// it; the share moves once the currency transfer completes. A share has at
// most one open share transfer at a time.
func (l *Ledger) TransferShare(s *Share, buyer *Account, price money.Amount) (*Transaction, error) {
	seller := s.Owner
	if seller == nil {
		return nil, fmt.Errorf("share %s has no owner: %w", s.ID, domain.ErrValidation)
	}
	if seller == buyer {
		return nil, fmt.Errorf("share %s already owned by %s: %w", s.ID, buyer.ID, domain.ErrValidation)
	}
	if open := l.openShareTransfer(s); open != nil {
		return nil, fmt.Errorf("share %s is in transaction %s (%s): %w",
			s.ID, open.ID, open.State, domain.ErrInvalidTransition)
	}
	payment, err := l.Transfer(buyer, seller, price)
	if err != nil {
		return nil, err
	}
	tx := l.newTransaction(ShareTransfer, PendingHold, price, seller, buyer)
	tx.Share = s
	tx.Linked = payment
	return tx, nil
}

// Approve authorizes a held currency transfer.
func (l *Ledger) Approve(tx *Transaction) error {
	if tx.Type != CurrencyTransfer || tx.State != PendingApproval {
		return fmt.Errorf("approve %s %s in %s: %w", tx.Type, tx.ID, tx.State, domain.ErrInvalidTransition)
	}
	return l.transition(tx, Approved)
}

// Cancel ends a transaction that has not completed. A hold already taken
// from the source is refunded first. Cancelling a share transfer gives the
// buyer's payment back.
func (l *Ledger) Cancel(tx *Transaction) error {
	switch tx.State {
	case PendingHold:
	case PendingApproval, Approved:
		if holdsFunds(tx) {
			if err := l.Credit(tx.Source(), tx.Amount); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("cancel %s in %s: %w", tx.ID, tx.State, domain.ErrInvalidTransition)
	}
	if err := l.transition(tx, Cancelled); err != nil {
		return err
	}
	if tx.Type == ShareTransfer {
		l.refundLinked(tx)
	}
	return nil
}

// holdsFunds reports whether the source was debited on the way to tx.State.
func holdsFunds(tx *Transaction) bool {
	return tx.Type == CurrencyTransfer &&
		(tx.State == PendingApproval || tx.State == Approved)
}

// openShareTransfer returns the non-terminal share transfer of s, if any.
func (l *Ledger) openShareTransfer(s *Share) *Transaction {
	for _, tx := range l.Transactions {
		if tx.Type == ShareTransfer && tx.Share == s && !tx.IsTerminal() {
			return tx
		}
	}
	return nil
}

// shareSale returns the share transfer paid for by payment, if any.
func (l *Ledger) shareSale(payment *Transaction) *Transaction {
	for _, tx := range l.Transactions {
		if tx.Type == ShareTransfer && tx.Linked == payment {
			return tx
		}
	}
	return nil
}

func (l *Ledger) cancelLinked(tx *Transaction) {
	linked := tx.Linked
	if linked == nil || linked.IsTerminal() {
		return
	}
	if err := l.Cancel(linked); err != nil {
		l.logger.Warn("Linked transaction not cancelled",
			"transaction_id", tx.ID, "linked_id", linked.ID, "error", err)
	}
}

// Revert starts undoing a complete transaction. A share transfer also
// reverts its linked payment and returns the share only once the payment
// has been taken back from the seller. The payment of a share transfer can
// not be reverted on its own.
func (l *Ledger) Revert(tx *Transaction) error {
	if tx.State != Complete {
		return fmt.Errorf("revert %s in %s: %w", tx.ID, tx.State, domain.ErrInvalidTransition)
	}
	switch tx.Type {
	case CurrencyTransfer:
		if sale := l.shareSale(tx); sale != nil {
			return fmt.Errorf("revert %s: payment of share transfer %s: %w",
				tx.ID, sale.ID, domain.ErrInvalidTransition)
		}
	case ShareTransfer:
		if tx.Share.Owner != tx.Destination() {
			return fmt.Errorf("revert %s: share %s no longer owned by %s: %w",
				tx.ID, tx.Share.ID, tx.Destination().ID, domain.ErrInvalidTransition)
		}
		if tx.Linked != nil {
			if tx.Linked.State != Complete {
				return fmt.Errorf("revert %s: payment %s in %s: %w",
					tx.ID, tx.Linked.ID, tx.Linked.State, domain.ErrInvalidTransition)
			}
			if err := l.transition(tx.Linked, PendingRevertHold); err != nil {
				return err
			}
		}
	}
	return l.transition(tx, PendingRevertHold)
}

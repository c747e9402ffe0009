package ledger

import (
	"fmt"
	"sort"

	"github.com/amirasaad/ledger/pkg/domain"
)

// edges lists every permitted state change.
var edges = map[TxState][]TxState{
	PendingHold:        {PendingApproval, PendingTransaction, Cancelled},
	PendingApproval:    {Approved, Cancelled},
	Approved:           {Complete, Cancelled},
	PendingTransaction: {Complete, Cancelled},
	Complete:           {PendingRevertHold},
	PendingRevertHold:  {RevertHold},
	RevertHold:         {Reverted},
}

func allowed(from, to TxState) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (l *Ledger) transition(tx *Transaction, to TxState) error {
	if !allowed(tx.State, to) {
		return fmt.Errorf("transaction %s %s -> %s: %w", tx.ID, tx.State, to, domain.ErrInvalidTransition)
	}
	now := l.Now()
	tx.History = append(tx.History, StateChange{From: tx.State, To: to, At: now})
	l.logger.Debug("Transaction state changed", "transaction_id", tx.ID, "type", tx.Type, "from", tx.State, "to", to)
	tx.State = to
	tx.UpdatedAt = now
	return nil
}

// step performs the work for one state and names the state to move to.
// An empty next state means nothing changed: the transaction is waiting,
// or the work was refused with err. A non-empty next state is entered even
// when err reports why.
type step func(l *Ledger, tx *Transaction) (next TxState, err error)

// then returns next when err is nil.
func then(next TxState, err error) (TxState, error) {
	if err != nil {
		return "", err
	}
	return next, nil
}

var steps = map[TxType]map[TxState]step{
	CurrencyTransfer: {
		PendingHold: func(l *Ledger, tx *Transaction) (TxState, error) {
			return then(PendingApproval, l.Debit(tx.Source(), tx.Amount))
		},
		Approved: func(l *Ledger, tx *Transaction) (TxState, error) {
			return then(Complete, l.Credit(tx.Destination(), tx.Amount))
		},
		PendingRevertHold: func(l *Ledger, tx *Transaction) (TxState, error) {
			return then(RevertHold, l.Debit(tx.Destination(), tx.Amount))
		},
		RevertHold: func(l *Ledger, tx *Transaction) (TxState, error) {
			return then(Reverted, l.Credit(tx.Source(), tx.Amount))
		},
	},
	Deposit: {
		Approved: func(l *Ledger, tx *Transaction) (TxState, error) {
			return then(Complete, l.Credit(tx.Source(), tx.Amount))
		},
		PendingRevertHold: func(l *Ledger, tx *Transaction) (TxState, error) {
			return then(RevertHold, l.Debit(tx.Source(), tx.Amount))
		},
		RevertHold: func(*Ledger, *Transaction) (TxState, error) {
			return Reverted, nil
		},
	},
	Withdrawal: {
		Approved: withdrawalApproved,
		PendingRevertHold: func(*Ledger, *Transaction) (TxState, error) {
			return RevertHold, nil
		},
		RevertHold: func(l *Ledger, tx *Transaction) (TxState, error) {
			return then(Reverted, l.Credit(tx.Source(), tx.Amount))
		},
	},
	ShareTransfer: {
		PendingHold:        shareHold,
		PendingTransaction: shareSettle,
		PendingRevertHold: shareRevert,
		RevertHold: func(*Ledger, *Transaction) (TxState, error) {
			return Reverted, nil
		},
	},
}

func withdrawalApproved(l *Ledger, tx *Transaction) (TxState, error) {
	if err := l.Debit(tx.Source(), tx.Amount); err != nil {
		return Cancelled, err
	}
	return Complete, nil
}

func shareHold(l *Ledger, tx *Transaction) (TxState, error) {
	if tx.Share.Owner != tx.Source() {
		tx.Reason = "share no longer owned by seller"
		l.logger.Warn("Share transfer seller mismatch", "transaction_id", tx.ID, "share_id", tx.Share.ID)
		l.refundLinked(tx)
		return Cancelled, nil
	}
	return PendingTransaction, nil
}

func shareSettle(l *Ledger, tx *Transaction) (TxState, error) {
	if tx.Linked == nil {
		tx.Reason = "payment missing"
		return Cancelled, nil
	}
	if tx.Share.Owner != tx.Source() {
		tx.Reason = "share no longer owned by seller"
		l.logger.Warn("Share transfer seller mismatch", "transaction_id", tx.ID, "share_id", tx.Share.ID)
		l.refundLinked(tx)
		return Cancelled, nil
	}
	switch tx.Linked.State {
	case Complete:
		l.SetShareOwner(tx.Share, tx.Destination())
		return Complete, nil
	case Cancelled, Reverted:
		tx.Reason = "payment " + string(tx.Linked.State)
		return Cancelled, nil
	}
	return "", nil
}

// refundLinked gives the buyer's payment back: an open payment is
// cancelled, a complete one is reverted.
func (l *Ledger) refundLinked(tx *Transaction) {
	if tx.Linked == nil || tx.Linked.State != Complete {
		l.cancelLinked(tx)
		return
	}
	if err := l.transition(tx.Linked, PendingRevertHold); err != nil {
		l.logger.Warn("Linked transaction not reverted",
			"transaction_id", tx.ID, "linked_id", tx.Linked.ID, "error", err)
	}
}

// shareRevert returns the share to the seller once the payment has been
// debited back from them.
func shareRevert(l *Ledger, tx *Transaction) (TxState, error) {
	if tx.Linked != nil && tx.Linked.State != RevertHold && tx.Linked.State != Reverted {
		return "", nil
	}
	if tx.Share.Owner != tx.Destination() {
		return "", fmt.Errorf("share %s no longer owned by %s: %w",
			tx.Share.ID, tx.Destination().ID, domain.ErrInvalidTransition)
	}
	l.SetShareOwner(tx.Share, tx.Source())
	return RevertHold, nil
}

// Tick performs the work defined for the transaction's current state and
// reports whether the state changed. Calling it in a state with no work
// is a no-op. A refused step keeps the state, records the refusal in
// Reason and returns it.
func (l *Ledger) Tick(tx *Transaction) (bool, error) {
	do, ok := steps[tx.Type][tx.State]
	if !ok {
		return false, nil
	}
	next, err := do(l, tx)
	if err != nil {
		tx.Reason = err.Error()
	}
	if next == "" {
		return false, err
	}
	if terr := l.transition(tx, next); terr != nil {
		return false, terr
	}
	return true, err
}

// Pending returns the non-terminal transactions, oldest first.
func (l *Ledger) Pending() []*Transaction {
	var out []*Transaction
	for _, tx := range l.Transactions {
		if !tx.IsTerminal() {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// TickAll ticks every non-terminal transaction until none advances and
// returns the number of state changes made.
func (l *Ledger) TickAll() int {
	total := 0
	for {
		advanced := 0
		for _, tx := range l.Pending() {
			for {
				moved, err := l.Tick(tx)
				if err != nil {
					l.logger.Debug("Transaction blocked", "transaction_id", tx.ID, "state", tx.State, "error", err)
				}
				if !moved {
					break
				}
				advanced++
			}
		}
		if advanced == 0 {
			return total
		}
		total += advanced
	}
}

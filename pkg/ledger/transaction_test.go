package ledger_test

import (
	"math"
	"testing"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func states(tx *ledger.Transaction) []ledger.TxState {
	out := []ledger.TxState{}
	for _, h := range tx.History {
		out = append(out, h.To)
	}
	return out
}

func twoAccounts(t *testing.T, f *fixture) (*ledger.Account, *ledger.Account) {
	t.Helper()
	src := f.account(t, f.user(t, "alice"), ledger.WithoutInterest())
	dst := f.account(t, f.user(t, "bob"), ledger.WithoutInterest())
	return src, dst
}

func TestCurrencyTransfer_TwoSuccessfulTicks(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	src, dst := twoAccounts(t, f)

	tx, err := f.Transfer(src, dst, units(100))
	require.NoError(t, err)
	assert.Equal(t, ledger.PendingHold, tx.State)
	assert.Contains(t, src.Transactions, tx)
	assert.Contains(t, dst.Transactions, tx)

	successes := 0
	tick := func() {
		moved, err := f.Tick(tx)
		require.NoError(t, err)
		if moved {
			successes++
		}
	}

	tick()
	assert.Equal(t, ledger.PendingApproval, tx.State)
	assert.Equal(t, units(900), src.Balance, "hold taken from the source")
	tick()
	assert.Equal(t, ledger.PendingApproval, tx.State, "waits for approval")

	require.NoError(t, f.Approve(tx))
	tick()
	tick()
	assert.Equal(t, ledger.Complete, tx.State)
	assert.Equal(t, 2, successes)
	assert.Equal(t, units(1100), dst.Balance)
	assert.Equal(t, []ledger.TxState{ledger.PendingApproval, ledger.Approved, ledger.Complete}, states(tx))
}

func TestCurrencyTransfer_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	src, dst := twoAccounts(t, f)

	_, err := f.Transfer(src, src, units(1))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.Transfer(src, dst, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.Transactions)
}

func TestCurrencyTransfer_BlockedUntilSourceUnfrozen(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	src, dst := twoAccounts(t, f)
	tx, err := f.Transfer(src, dst, units(100))
	require.NoError(t, err)

	f.Freeze(src)
	moved, err := f.Tick(tx)
	assert.False(t, moved)
	assert.ErrorIs(t, err, domain.ErrAccountFrozen)
	assert.Equal(t, ledger.PendingHold, tx.State)
	assert.NotEmpty(t, tx.Reason)
	assert.Equal(t, units(1000), src.Balance)

	f.Unfreeze(src)
	moved, err = f.Tick(tx)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, ledger.PendingApproval, tx.State)
}

func TestApprove_OnlyFromPendingApproval(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	src, dst := twoAccounts(t, f)
	tx, err := f.Transfer(src, dst, units(100))
	require.NoError(t, err)

	assert.ErrorIs(t, f.Approve(tx), domain.ErrInvalidTransition)

	dep, err := f.Deposit(src, units(1))
	require.NoError(t, err)
	assert.ErrorIs(t, f.Approve(dep), domain.ErrInvalidTransition)
}

func TestCancel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		advance func(t *testing.T, f *fixture, tx *ledger.Transaction)
	}{
		{"pending hold", func(*testing.T, *fixture, *ledger.Transaction) {}},
		{"pending approval", func(t *testing.T, f *fixture, tx *ledger.Transaction) {
			_, err := f.Tick(tx)
			require.NoError(t, err)
		}},
		{"approved", func(t *testing.T, f *fixture, tx *ledger.Transaction) {
			_, err := f.Tick(tx)
			require.NoError(t, err)
			require.NoError(t, f.Approve(tx))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			src, dst := twoAccounts(t, f)
			tx, err := f.Transfer(src, dst, units(250))
			require.NoError(t, err)
			tt.advance(t, f, tx)

			require.NoError(t, f.Cancel(tx))
			assert.Equal(t, ledger.Cancelled, tx.State)
			assert.Equal(t, units(1000), src.Balance, "held amount refunded exactly")
			assert.Equal(t, units(1000), dst.Balance)

			moved, err := f.Tick(tx)
			assert.NoError(t, err)
			assert.False(t, moved, "terminal states do not tick")
		})
	}
}

func TestCancel_CompleteFails(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	src, dst := twoAccounts(t, f)
	tx, err := f.Transfer(src, dst, units(100))
	require.NoError(t, err)
	_, err = f.Tick(tx)
	require.NoError(t, err)
	require.NoError(t, f.Approve(tx))
	_, err = f.Tick(tx)
	require.NoError(t, err)

	assert.ErrorIs(t, f.Cancel(tx), domain.ErrInvalidTransition)
	assert.Equal(t, ledger.Complete, tx.State)
	assert.Equal(t, units(900), src.Balance)
}

func TestCurrencyTransfer_Revert(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	src, dst := twoAccounts(t, f)
	tx, err := f.Transfer(src, dst, units(100))
	require.NoError(t, err)

	assert.ErrorIs(t, f.Revert(tx), domain.ErrInvalidTransition)

	_, err = f.Tick(tx)
	require.NoError(t, err)
	require.NoError(t, f.Approve(tx))
	_, err = f.Tick(tx)
	require.NoError(t, err)

	require.NoError(t, f.Revert(tx))
	assert.Equal(t, ledger.PendingRevertHold, tx.State)

	_, err = f.Tick(tx)
	require.NoError(t, err)
	assert.Equal(t, ledger.RevertHold, tx.State)
	assert.Equal(t, units(1000), dst.Balance)

	_, err = f.Tick(tx)
	require.NoError(t, err)
	assert.Equal(t, ledger.Reverted, tx.State)
	assert.Equal(t, units(1000), src.Balance)

	assert.ErrorIs(t, f.Revert(tx), domain.ErrInvalidTransition)
}

func TestDeposit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a, _ := twoAccounts(t, f)

	tx, err := f.Deposit(a, units(40))
	require.NoError(t, err)
	assert.Equal(t, ledger.Approved, tx.State)
	assert.Equal(t, units(1000), a.Balance)

	moved, err := f.Tick(tx)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, ledger.Complete, tx.State)
	assert.Equal(t, units(1040), a.Balance)

	require.NoError(t, f.Revert(tx))
	assert.Equal(t, 2, f.TickAll())
	assert.Equal(t, ledger.Reverted, tx.State)
	assert.Equal(t, units(1000), a.Balance)
}

func TestDeposit_Overflow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.account(t, f.user(t, "alice"), ledger.WithoutInterest())
	big := money.FromMinor(9_000_000_000_000_000_000)

	first, err := f.Deposit(a, big)
	require.NoError(t, err)
	second, err := f.Deposit(a, big)
	require.NoError(t, err, "fits the balance at creation")

	f.TickAll()
	assert.Equal(t, ledger.Complete, first.State)
	assert.Equal(t, ledger.Approved, second.State, "the credit would overflow")
	assert.NotEmpty(t, second.Reason)
	want, err := units(1000).Add(big)
	require.NoError(t, err)
	assert.Equal(t, want, a.Balance)
	assert.Empty(t, a.Loans)

	_, err = f.Deposit(a, big)
	assert.ErrorIs(t, err, money.ErrAmountOverflow)
	_, err = f.Deposit(a, money.FromMinor(math.MaxInt64))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeposit_CancelBeforeTick(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a, _ := twoAccounts(t, f)
	tx, err := f.Deposit(a, units(40))
	require.NoError(t, err)

	require.NoError(t, f.Cancel(tx))
	assert.Equal(t, units(1000), a.Balance, "nothing was held")
}

func TestWithdraw_ResolvesAtCreation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := f.account(t, f.user(t, "alice"), ledger.WithoutInterest(), ledger.WithOverdraft(false, 0))

	tx, err := f.Withdraw(a, units(300))
	require.NoError(t, err)
	assert.Equal(t, ledger.Complete, tx.State)
	assert.Equal(t, units(700), a.Balance)

	failed, err := f.Withdraw(a, units(701))
	assert.ErrorIs(t, err, domain.ErrInsufficientFundsAndOverdraftDenied)
	require.NotNil(t, failed)
	assert.Equal(t, ledger.Cancelled, failed.State)
	assert.Equal(t, units(700), a.Balance)
	assert.Same(t, failed, f.Transactions[failed.ID], "failed withdrawals are kept for audit")
}

func TestWithdraw_Revert(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a, _ := twoAccounts(t, f)
	tx, err := f.Withdraw(a, units(300))
	require.NoError(t, err)

	require.NoError(t, f.Revert(tx))
	assert.Equal(t, 2, f.TickAll())
	assert.Equal(t, ledger.Reverted, tx.State)
	assert.Equal(t, units(1000), a.Balance)
}

type shareMarket struct {
	seller, buyer *ledger.Account
	share         *ledger.Share
}

func newShareMarket(t *testing.T, f *fixture) shareMarket {
	t.Helper()
	seller := f.account(t, f.user(t, "issuer"), ledger.WithoutInterest(), ledger.WithPubliclyTraded(true))
	buyer := f.account(t, f.user(t, "buyer"), ledger.WithoutInterest())
	s, err := f.CreateShare(seller)
	require.NoError(t, err)
	return shareMarket{seller: seller, buyer: buyer, share: s}
}

func TestShareTransfer_CompletesWithPayment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)

	tx, err := f.TransferShare(m.share, m.buyer, units(100))
	require.NoError(t, err)
	payment := tx.Linked
	require.NotNil(t, payment)
	assert.Equal(t, ledger.CurrencyTransfer, payment.Type)
	assert.Same(t, m.buyer, payment.Source())
	assert.Same(t, m.seller, payment.Destination())

	f.TickAll()
	assert.Equal(t, ledger.PendingTransaction, tx.State)
	assert.Equal(t, ledger.PendingApproval, payment.State)
	assert.Same(t, m.seller, m.share.Owner)

	require.NoError(t, f.Approve(payment))
	f.TickAll()
	assert.Equal(t, ledger.Complete, payment.State)
	assert.Equal(t, ledger.Complete, tx.State)
	assert.Same(t, m.buyer, m.share.Owner)
	assert.Equal(t, []*ledger.Account{m.buyer}, indexedUnder(f, m.share))
	assert.Equal(t, units(900), m.buyer.Balance)
	assert.Equal(t, units(1100), m.seller.Balance)
}

func TestShareTransfer_SelfCancelsWithPayment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	tx, err := f.TransferShare(m.share, m.buyer, units(100))
	require.NoError(t, err)
	f.TickAll()

	require.NoError(t, f.Cancel(tx.Linked))
	f.TickAll()
	assert.Equal(t, ledger.Cancelled, tx.State)
	assert.Same(t, m.seller, m.share.Owner)
	assert.Equal(t, units(1000), m.buyer.Balance)
}

func TestShareTransfer_SellerMismatchCancels(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	other := f.account(t, f.user(t, "carol"))
	tx, err := f.TransferShare(m.share, m.buyer, units(100))
	require.NoError(t, err)

	f.SetShareOwner(m.share, other)
	f.TickAll()
	assert.Equal(t, ledger.Cancelled, tx.State)
	assert.Equal(t, ledger.Cancelled, tx.Linked.State)
	assert.Same(t, other, m.share.Owner)
	assert.Equal(t, units(1000), m.buyer.Balance)
}

func TestShareTransfer_CancelLinksPayment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	tx, err := f.TransferShare(m.share, m.buyer, units(100))
	require.NoError(t, err)

	require.NoError(t, f.Cancel(tx))
	assert.Equal(t, ledger.Cancelled, tx.State)
	assert.Equal(t, ledger.Cancelled, tx.Linked.State)
}

func TestShareTransfer_Revert(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	tx, err := f.TransferShare(m.share, m.buyer, units(100))
	require.NoError(t, err)
	f.TickAll()
	require.NoError(t, f.Approve(tx.Linked))
	f.TickAll()
	require.Equal(t, ledger.Complete, tx.State)

	require.NoError(t, f.Revert(tx))
	f.TickAll()
	assert.Equal(t, ledger.Reverted, tx.State)
	assert.Equal(t, ledger.Reverted, tx.Linked.State)
	assert.Same(t, m.seller, m.share.Owner)
	assert.Equal(t, []*ledger.Account{m.seller}, indexedUnder(f, m.share))
	assert.Equal(t, units(1000), m.buyer.Balance)
	assert.Equal(t, units(1000), m.seller.Balance)
}

// completeSale sells share to buyer and approves the payment.
func completeSale(t *testing.T, f *fixture, share *ledger.Share, buyer *ledger.Account, price money.Amount) *ledger.Transaction {
	t.Helper()
	tx, err := f.TransferShare(share, buyer, price)
	require.NoError(t, err)
	f.TickAll()
	require.NoError(t, f.Approve(tx.Linked))
	f.TickAll()
	require.Equal(t, ledger.Complete, tx.State)
	return tx
}

func TestTransferShare_OneOpenSalePerShare(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	other := f.account(t, f.user(t, "carol"), ledger.WithoutInterest())

	first, err := f.TransferShare(m.share, m.buyer, units(100))
	require.NoError(t, err)
	_, err = f.TransferShare(m.share, other, units(100))
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Len(t, f.Transactions, 2, "the refused sale creates no payment")

	f.TickAll()
	require.NoError(t, f.Approve(first.Linked))
	f.TickAll()
	assert.Equal(t, ledger.Complete, first.State)
	assert.Same(t, m.buyer, m.share.Owner)
	assert.Equal(t, units(900), m.buyer.Balance)
	assert.Equal(t, units(1000), other.Balance)

	resale := completeSale(t, f, m.share, other, units(150))
	assert.Same(t, m.buyer, resale.Source())
	assert.Same(t, other, m.share.Owner)
	assert.Equal(t, units(1050), m.buyer.Balance)
	assert.Equal(t, units(850), other.Balance)
	assert.Equal(t, units(1100), m.seller.Balance)
}

func TestShareTransfer_SellerLostShareBeforePayment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	other := f.account(t, f.user(t, "carol"))
	tx, err := f.TransferShare(m.share, m.buyer, units(100))
	require.NoError(t, err)
	f.TickAll()
	require.Equal(t, ledger.PendingTransaction, tx.State)

	f.SetShareOwner(m.share, other)
	require.NoError(t, f.Approve(tx.Linked))
	f.TickAll()
	assert.Equal(t, ledger.Cancelled, tx.State)
	assert.Equal(t, ledger.Reverted, tx.Linked.State, "the completed payment is given back")
	assert.Same(t, other, m.share.Owner)
	assert.Equal(t, units(1000), m.buyer.Balance)
	assert.Equal(t, units(1000), m.seller.Balance)
}

func TestShareTransfer_CancelAfterPaymentCompletes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	tx, err := f.TransferShare(m.share, m.buyer, units(100))
	require.NoError(t, err)
	payment := tx.Linked
	_, err = f.Tick(payment)
	require.NoError(t, err)
	require.NoError(t, f.Approve(payment))
	_, err = f.Tick(payment)
	require.NoError(t, err)
	require.Equal(t, ledger.Complete, payment.State)

	require.NoError(t, f.Cancel(tx))
	assert.Equal(t, ledger.PendingRevertHold, payment.State)
	f.TickAll()
	assert.Equal(t, ledger.Reverted, payment.State)
	assert.Same(t, m.seller, m.share.Owner)
	assert.Equal(t, units(1000), m.buyer.Balance)
	assert.Equal(t, units(1000), m.seller.Balance)
}

func TestRevert_SharePaymentAlone(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	tx := completeSale(t, f, m.share, m.buyer, units(100))

	assert.ErrorIs(t, f.Revert(tx.Linked), domain.ErrInvalidTransition)
	f.TickAll()
	assert.Equal(t, ledger.Complete, tx.Linked.State)
	assert.Same(t, m.buyer, m.share.Owner)
	assert.Equal(t, units(900), m.buyer.Balance)
	assert.Equal(t, units(1100), m.seller.Balance)
}

func TestShareTransfer_RevertWaitsForPayment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	tx := completeSale(t, f, m.share, m.buyer, units(100))

	f.Freeze(m.seller)
	require.NoError(t, f.Revert(tx))
	f.TickAll()
	assert.Equal(t, ledger.PendingRevertHold, tx.State)
	assert.Equal(t, ledger.PendingRevertHold, tx.Linked.State)
	assert.NotEmpty(t, tx.Linked.Reason)
	assert.Same(t, m.buyer, m.share.Owner, "the share stays until the seller pays back")
	assert.Equal(t, units(900), m.buyer.Balance)
	assert.Equal(t, units(1100), m.seller.Balance)

	f.Unfreeze(m.seller)
	f.TickAll()
	assert.Equal(t, ledger.Reverted, tx.State)
	assert.Equal(t, ledger.Reverted, tx.Linked.State)
	assert.Same(t, m.seller, m.share.Owner)
	assert.Equal(t, units(1000), m.buyer.Balance)
	assert.Equal(t, units(1000), m.seller.Balance)
}

func TestShareTransfer_RevertAfterResale(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)
	other := f.account(t, f.user(t, "carol"), ledger.WithoutInterest())
	first := completeSale(t, f, m.share, m.buyer, units(100))
	completeSale(t, f, m.share, other, units(100))

	assert.ErrorIs(t, f.Revert(first), domain.ErrInvalidTransition)
	assert.Equal(t, ledger.Complete, first.State)
	assert.Equal(t, ledger.Complete, first.Linked.State)
	assert.Same(t, other, m.share.Owner)
}

func TestTransferShare_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	m := newShareMarket(t, f)

	_, err := f.TransferShare(m.share, m.seller, units(1))
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.SetShareOwner(m.share, nil)
	_, err = f.TransferShare(m.share, m.buyer, units(1))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTickAll_OldestFirstAndBlocked(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	src, dst := twoAccounts(t, f)
	first, err := f.Transfer(src, dst, units(600))
	require.NoError(t, err)
	f.clock.Advance(1)
	second, err := f.Transfer(src, dst, units(1500))
	require.NoError(t, err)

	assert.Equal(t, []*ledger.Transaction{first, second}, f.Pending())
	assert.Equal(t, 1, f.TickAll())
	assert.Equal(t, ledger.PendingApproval, first.State)
	assert.Equal(t, ledger.PendingHold, second.State, "shortfall exceeds headroom")
	assert.Equal(t, 0, f.TickAll())
}

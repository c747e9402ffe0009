package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirasaad/ledger/internal/fixtures"
	"github.com/amirasaad/ledger/pkg/ledger"
	"github.com/amirasaad/ledger/pkg/money"
	"github.com/amirasaad/ledger/pkg/scheduler"
	"github.com/amirasaad/ledger/pkg/service/bank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func run(t *testing.T, s *scheduler.Scheduler) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return func() error {
		stop()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not stop")
			return nil
		}
	}
}

func TestRun_TicksPendingTransactions(t *testing.T) {
	store := fixtures.NewMockSnapshotStore(t)
	store.On("Save", mock.Anything, mock.Anything).Return(nil)

	l := ledger.New(ledger.WithHasher(ledger.BcryptHasher{Cost: bcrypt.MinCost}), ledger.WithLogger(discard))
	u, err := l.CreateUser("alice", "credential")
	require.NoError(t, err)
	a, err := l.CreateAccount(u, "main")
	require.NoError(t, err)
	_, err = l.Deposit(a, money.FromUnits(5))
	require.NoError(t, err)

	svc := bank.New(l, store, discard)
	require.Equal(t, 1, svc.Stats().Pending)

	stop := run(t, scheduler.New(svc, 5*time.Millisecond, time.Hour, discard))
	require.Eventually(t, func() bool { return svc.Stats().Pending == 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
	store.AssertCalled(t, "Save", mock.Anything, mock.Anything)
}

type fakeLedger struct {
	ticks atomic.Int32
	saves atomic.Int32
	err   error
}

func (f *fakeLedger) Tick(context.Context) int {
	f.ticks.Add(1)
	return 0
}

func (f *fakeLedger) Save(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.saves.Add(1)
	return f.err
}

func TestRun_SavesPeriodicallyAndOnShutdown(t *testing.T) {
	f := &fakeLedger{}
	stop := run(t, scheduler.New(f, 0, 5*time.Millisecond, discard))
	require.Eventually(t, func() bool { return f.saves.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop(), "the final save runs on a live context")
	assert.Zero(t, f.ticks.Load(), "a zero interval disables ticking")
}

func TestRun_FinalSaveError(t *testing.T) {
	f := &fakeLedger{err: errors.New("disk full")}
	stop := run(t, scheduler.New(f, time.Hour, 5*time.Millisecond, discard))
	require.Eventually(t, func() bool { return f.saves.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	assert.EqualError(t, stop(), "disk full")
}

package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securevault/securevault/internal/ledger"
	"github.com/securevault/securevault/internal/logging"
	"github.com/securevault/securevault/internal/notification"
)

type testNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *testNotifier) Publish(_ context.Context, event notification.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTestService(store ledger.Store, notifier notification.Notifier) *Service {
	return NewService(store, notifier, logging.Discard(), time.Second)
}

func mustWallet(t *testing.T, s ledger.Store, userID string) ledger.Wallet {
	t.Helper()
	w, err := s.WalletByUser(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func TestTransferSuccess(t *testing.T) {
	store := ledger.NewMemoryStore()
	alice := ledger.SeedWallet(store, "alice", dec("100.00"), 3)
	bob := ledger.SeedWallet(store, "bob", dec("5.00"), 0)
	notifier := &testNotifier{}
	svc := newTestService(store, notifier)

	res := svc.Transfer(context.Background(), TransferInput{SenderID: "alice", ReceiverID: "bob", Amount: dec("40")})

	require.True(t, res.Success(), res.Message)
	assert.Equal(t, KindSuccess, res.Kind)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, alice.ID, res.Transaction.SourceWalletID)
	assert.Equal(t, bob.ID, res.Transaction.DestinationWalletID)
	assert.Equal(t, ledger.StatusCompleted, res.Transaction.Status)
	assert.True(t, res.Transaction.Amount.Equal(dec("40")))

	a := mustWallet(t, store, "alice")
	b := mustWallet(t, store, "bob")
	assert.True(t, a.Balance.Equal(dec("60")), a.Balance.String())
	assert.Equal(t, int64(4), a.Version)
	assert.True(t, b.Balance.Equal(dec("45")), b.Balance.String())
	assert.Equal(t, int64(1), b.Version)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, res.Transaction.ID, notifier.events[0].TransactionID)
	assert.Equal(t, "40.00", notifier.events[0].Amount)
}

func TestTransferValidationTouchesNothing(t *testing.T) {
	cases := []struct {
		name    string
		input   TransferInput
		kind    Kind
		message string
	}{
		{"zero amount", TransferInput{SenderID: "alice", ReceiverID: "bob", Amount: decimal.Zero}, KindValidation, msgAmountNotPositive},
		{"negative amount", TransferInput{SenderID: "alice", ReceiverID: "bob", Amount: dec("-5")}, KindValidation, msgAmountNotPositive},
		{"sub-cent amount", TransferInput{SenderID: "alice", ReceiverID: "bob", Amount: dec("0.001")}, KindValidation, msgAmountScale},
		{"self transfer", TransferInput{SenderID: "alice", ReceiverID: "alice", Amount: dec("1")}, KindValidation, msgSameParty},
		{"missing sender", TransferInput{ReceiverID: "bob", Amount: dec("1")}, KindValidation, msgMissingParty},
		{"insufficient funds", TransferInput{SenderID: "carol", ReceiverID: "bob", Amount: dec("50")}, KindValidation, msgInsufficientFunds},
		{"unknown sender", TransferInput{SenderID: "nobody", ReceiverID: "bob", Amount: dec("1")}, KindNotFound, msgSenderNotFound},
		{"unknown receiver", TransferInput{SenderID: "alice", ReceiverID: "nobody", Amount: dec("1")}, KindNotFound, msgReceiverNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := ledger.NewMemoryStore()
			ledger.SeedWallet(store, "alice", dec("100"), 2)
			ledger.SeedWallet(store, "bob", dec("0"), 0)
			ledger.SeedWallet(store, "carol", dec("10"), 7)
			notifier := &testNotifier{}
			svc := newTestService(store, notifier)

			res := svc.Transfer(context.Background(), tc.input)

			assert.False(t, res.Success())
			assert.False(t, res.Retryable())
			assert.Equal(t, tc.kind, res.Kind)
			assert.Equal(t, tc.message, res.Message)
			assert.Nil(t, res.Transaction)
			assert.Empty(t, notifier.events)

			for user, want := range map[string]struct {
				balance string
				version int64
			}{"alice": {"100", 2}, "bob": {"0", 0}, "carol": {"10", 7}} {
				w := mustWallet(t, store, user)
				assert.True(t, w.Balance.Equal(dec(want.balance)), "%s balance %s", user, w.Balance)
				assert.Equal(t, want.version, w.Version, "%s version", user)
				txns, err := store.TransactionsByUser(context.Background(), user)
				require.NoError(t, err)
				assert.Empty(t, txns)
			}
		})
	}
}

// racingStore commits a competing transfer after the outer session has read
// both wallets and before it writes the first guarded update.
type racingStore struct {
	*ledger.MemoryStore
	once sync.Once
	race func()
}

func (s *racingStore) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	return s.MemoryStore.WithTx(ctx, func(tx ledger.Tx) error {
		return fn(&racingTx{Tx: tx, store: s})
	})
}

type racingTx struct {
	ledger.Tx
	store *racingStore
}

func (t *racingTx) ApplyDelta(ctx context.Context, walletID string, delta decimal.Decimal, expectedVersion int64) (bool, error) {
	t.store.once.Do(t.store.race)
	return t.Tx.ApplyDelta(ctx, walletID, delta, expectedVersion)
}

func TestTransferConflictOnSenderLeg(t *testing.T) {
	mem := ledger.NewMemoryStore()
	ledger.SeedWallet(mem, "w", dec("100"), 3)
	ledger.SeedWallet(mem, "x", dec("0"), 0)
	ledger.SeedWallet(mem, "y", dec("0"), 0)

	var competing Result
	store := &racingStore{MemoryStore: mem}
	store.race = func() {
		competing = newTestService(mem, nil).Transfer(context.Background(), TransferInput{SenderID: "w", ReceiverID: "y", Amount: dec("40")})
	}
	notifier := &testNotifier{}

	res := newTestService(store, notifier).Transfer(context.Background(), TransferInput{SenderID: "w", ReceiverID: "x", Amount: dec("40")})

	require.True(t, competing.Success(), competing.Message)
	assert.Equal(t, KindConflict, res.Kind)
	assert.Equal(t, msgConflict, res.Message)
	assert.True(t, res.Retryable())
	assert.Nil(t, res.Transaction)
	assert.Empty(t, notifier.events)

	w := mustWallet(t, mem, "w")
	assert.True(t, w.Balance.Equal(dec("60")), w.Balance.String())
	assert.Equal(t, int64(4), w.Version)
	x := mustWallet(t, mem, "x")
	assert.True(t, x.Balance.IsZero())
	assert.Equal(t, int64(0), x.Version)

	txns, err := mem.TransactionsByUser(context.Background(), "w")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestTransferConflictOnReceiverLeg(t *testing.T) {
	mem := ledger.NewMemoryStore()
	ledger.SeedWallet(mem, "alice", dec("100"), 0)
	ledger.SeedWallet(mem, "bob", dec("0"), 5)
	ledger.SeedWallet(mem, "carol", dec("20"), 0)

	store := &racingStore{MemoryStore: mem}
	store.race = func() {
		// Only the receiver changes underneath the outer session.
		res := newTestService(mem, nil).Transfer(context.Background(), TransferInput{SenderID: "carol", ReceiverID: "bob", Amount: dec("20")})
		require.True(t, res.Success(), res.Message)
	}

	res := newTestService(store, nil).Transfer(context.Background(), TransferInput{SenderID: "alice", ReceiverID: "bob", Amount: dec("10")})

	assert.Equal(t, KindConflict, res.Kind)
	a := mustWallet(t, mem, "alice")
	assert.True(t, a.Balance.Equal(dec("100")), "debit must roll back with the rejected credit")
	assert.Equal(t, int64(0), a.Version)
	b := mustWallet(t, mem, "bob")
	assert.True(t, b.Balance.Equal(dec("20")))
	assert.Equal(t, int64(6), b.Version)
}

func TestConcurrentTransfersConserveFunds(t *testing.T) {
	store := ledger.NewMemoryStore()
	users := []string{"u0", "u1", "u2", "u3"}
	for _, u := range users {
		ledger.SeedWallet(store, u, dec("50"), 0)
	}
	svc := newTestService(store, nil)

	const workers = 16
	const perWorker = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[Kind]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				from := users[(i+j)%len(users)]
				to := users[(i+j+1+i%3)%len(users)]
				res := svc.Transfer(context.Background(), TransferInput{SenderID: from, ReceiverID: to, Amount: dec(fmt.Sprintf("%d.25", 1+j%7))})
				mu.Lock()
				outcomes[res.Kind]++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, outcomes[KindInfrastructure])
	assert.Zero(t, outcomes[KindNotFound])

	total := decimal.Zero
	rows := map[string]bool{}
	touches := map[string]int64{}
	for _, u := range users {
		w := mustWallet(t, store, u)
		assert.False(t, w.Balance.IsNegative(), "%s went negative", u)
		total = total.Add(w.Balance)

		txns, err := store.TransactionsByUser(context.Background(), u)
		require.NoError(t, err)
		for _, txn := range txns {
			rows[txn.ID] = true
			if txn.SourceWalletID == w.ID || txn.DestinationWalletID == w.ID {
				touches[u]++
			}
		}
		assert.Equal(t, touches[u], w.Version, "%s version must equal committed mutations", u)
	}
	assert.True(t, total.Equal(dec("200")), "total drifted to %s", total)
	assert.Equal(t, outcomes[KindSuccess], len(rows))
}

type failingStore struct {
	ledger.Store
	err error
}

func (s failingStore) WithTx(context.Context, func(ledger.Tx) error) error { return s.err }

func TestTransferInfrastructureFailure(t *testing.T) {
	svc := newTestService(failingStore{err: errors.New("connection refused")}, nil)

	res := svc.Transfer(context.Background(), TransferInput{SenderID: "a", ReceiverID: "b", Amount: dec("1")})

	assert.Equal(t, KindInfrastructure, res.Kind)
	assert.Equal(t, "connection refused", res.Message)
	assert.False(t, res.Retryable())
}

func TestTransferCommitConflictIsRetryable(t *testing.T) {
	svc := newTestService(failingStore{err: fmt.Errorf("commit session: %w", ledger.ErrConflict)}, nil)

	res := svc.Transfer(context.Background(), TransferInput{SenderID: "a", ReceiverID: "b", Amount: dec("1")})

	assert.Equal(t, KindConflict, res.Kind)
	assert.Equal(t, msgConflict, res.Message)
}

// stallingStore blocks every read until the session deadline fires.
type stallingStore struct {
	*ledger.MemoryStore
}

func (s stallingStore) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	return s.MemoryStore.WithTx(ctx, func(tx ledger.Tx) error {
		return fn(stallingTx{tx})
	})
}

type stallingTx struct{ ledger.Tx }

func (t stallingTx) WalletByUser(ctx context.Context, _ string) (ledger.Wallet, error) {
	<-ctx.Done()
	return ledger.Wallet{}, ctx.Err()
}

func TestTransferTimeoutIsRetryableConflict(t *testing.T) {
	mem := ledger.NewMemoryStore()
	ledger.SeedWallet(mem, "alice", dec("100"), 0)
	ledger.SeedWallet(mem, "bob", dec("0"), 0)
	svc := NewService(stallingStore{mem}, nil, logging.Discard(), 20*time.Millisecond)

	res := svc.Transfer(context.Background(), TransferInput{SenderID: "alice", ReceiverID: "bob", Amount: dec("1")})

	assert.Equal(t, KindConflict, res.Kind)
	assert.Equal(t, msgTimeout, res.Message)
	assert.True(t, res.Retryable())
	a := mustWallet(t, mem, "alice")
	assert.Equal(t, int64(0), a.Version)
}

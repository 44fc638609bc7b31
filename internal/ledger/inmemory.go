package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is a concurrency-safe in-memory Store. Sessions read committed
// state and stage their writes; commit re-validates every staged version
// guard under the store lock, so two sessions that read the same version
// cannot both commit.
type MemoryStore struct {
	mu           sync.RWMutex
	wallets      map[string]Wallet
	byUser       map[string]string
	transactions []Transaction
	now          func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets: make(map[string]Wallet),
		byUser:  make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// OpenWallet creates the wallet for userID with a zero balance at version 0.
func (s *MemoryStore) OpenWallet(_ context.Context, userID, currency string) (Wallet, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUser[userID]; exists {
		return Wallet{}, ErrWalletExists
	}
	w := Wallet{
		ID:        uuid.NewString(),
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  currency,
		CreatedAt: s.now(),
	}
	s.wallets[w.ID] = w
	s.byUser[userID] = w.ID
	return w, nil
}

func (s *MemoryStore) WalletByUser(_ context.Context, userID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletByUserLocked(userID)
}

func (s *MemoryStore) TransactionsByUser(_ context.Context, userID string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	walletID, ok := s.byUser[userID]
	if !ok {
		return nil, ErrWalletNotFound
	}
	// Rows are appended in commit order; walk backwards for newest first.
	var out []Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		txn := s.transactions[i]
		if txn.SourceWalletID == walletID || txn.DestinationWalletID == walletID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) walletByUserLocked(userID string) (Wallet, error) {
	walletID, ok := s.byUser[userID]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return s.wallets[walletID], nil
}

func (s *MemoryStore) commit(tx *memoryTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before applying anything.
	for _, d := range tx.deltas {
		w, ok := s.wallets[d.walletID]
		if !ok {
			return ErrWalletNotFound
		}
		if w.Version != d.expectedVersion {
			return ErrConflict
		}
		if w.Balance.Add(d.delta).IsNegative() {
			return ErrNegativeBalance
		}
	}

	for _, d := range tx.deltas {
		w := s.wallets[d.walletID]
		w.Balance = w.Balance.Add(d.delta)
		w.Version++
		s.wallets[d.walletID] = w
	}
	s.transactions = append(s.transactions, tx.inserts...)
	return nil
}

type stagedDelta struct {
	walletID        string
	delta           decimal.Decimal
	expectedVersion int64
}

type memoryTx struct {
	store   *MemoryStore
	deltas  []stagedDelta
	inserts []Transaction
}

func (t *memoryTx) WalletByUser(_ context.Context, userID string) (Wallet, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.walletByUserLocked(userID)
}

func (t *memoryTx) ApplyDelta(_ context.Context, walletID string, delta decimal.Decimal, expectedVersion int64) (bool, error) {
	t.store.mu.RLock()
	w, ok := t.store.wallets[walletID]
	t.store.mu.RUnlock()
	if !ok || w.Version != expectedVersion {
		return false, nil
	}
	for _, d := range t.deltas {
		if d.walletID == walletID {
			return false, nil
		}
	}
	t.deltas = append(t.deltas, stagedDelta{walletID: walletID, delta: delta, expectedVersion: expectedVersion})
	return true, nil
}

func (t *memoryTx) InsertTransaction(_ context.Context, txn Transaction) (Transaction, error) {
	txn.ID = uuid.NewString()
	txn.CreatedAt = t.store.now()
	t.inserts = append(t.inserts, txn)
	return txn, nil
}

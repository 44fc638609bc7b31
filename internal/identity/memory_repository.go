package identity

import (
	"context"
	"sync"

	"github.com/securevault/securevault/internal/ledger"
)

type memoryRepository struct {
	mu      sync.RWMutex
	wallets *ledger.MemoryStore
	users   []User
	names   map[string]struct{}
	emails  map[string]struct{}
}

// NewMemoryRepository builds an in-memory user store whose wallets live in
// the given ledger store.
func NewMemoryRepository(wallets *ledger.MemoryStore) Repository {
	return &memoryRepository{
		wallets: wallets,
		names:   make(map[string]struct{}),
		emails:  make(map[string]struct{}),
	}
}

func (r *memoryRepository) Create(ctx context.Context, user User) (User, ledger.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Uniqueness is case-sensitive, like the UNIQUE columns in Postgres.
	name, email := user.Username, user.Email
	if _, exists := r.names[name]; exists {
		return User{}, ledger.Wallet{}, ErrUsernameTaken
	}
	if _, exists := r.emails[email]; exists {
		return User{}, ledger.Wallet{}, ErrEmailTaken
	}
	w, err := r.wallets.OpenWallet(ctx, user.ID, ledger.DefaultCurrency)
	if err != nil {
		return User{}, ledger.Wallet{}, err
	}
	r.names[name] = struct{}{}
	r.emails[email] = struct{}{}
	r.users = append(r.users, user)
	return user, w, nil
}

func (r *memoryRepository) List(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]User(nil), r.users...), nil
}

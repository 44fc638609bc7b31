package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrWalletNotFound is returned when no wallet is owned by the requested user.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletExists is returned when a user already owns a wallet.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrConflict indicates another session committed a change to a wallet
	// after it was read. The whole session has been rolled back.
	ErrConflict = errors.New("concurrent wallet modification")

	// ErrNegativeBalance is raised if a write would leave a wallet below zero.
	ErrNegativeBalance = errors.New("balance would become negative")
)

const (
	// StatusCompleted is the only status written by the transfer path.
	StatusCompleted = "COMPLETED"
	// StatusPending is reserved for deferred settlement.
	StatusPending = "PENDING"
	// StatusFailed is reserved for settlement failures.
	StatusFailed = "FAILED"

	// DefaultCurrency is assigned to wallets opened without an explicit currency.
	DefaultCurrency = "USD"
)

// Wallet is a user's balance. Version increases by exactly one on every
// committed balance change and is the only token used to detect conflicts.
type Wallet struct {
	ID        string
	UserID    string
	Balance   decimal.Decimal
	Currency  string
	Version   int64
	CreatedAt time.Time
}

// Transaction is an immutable ledger row recording one committed transfer.
type Transaction struct {
	ID                  string
	SourceWalletID      string
	DestinationWalletID string
	Amount              decimal.Decimal
	Status              string
	CreatedAt           time.Time
}

// Tx is a transactional session. It is owned by a single caller for its
// whole lifetime and must not be shared between goroutines.
type Tx interface {
	WalletByUser(ctx context.Context, userID string) (Wallet, error)
	// ApplyDelta adds delta to the wallet balance and bumps its version, but
	// only if the stored version still equals expectedVersion. It reports
	// false when the guard did not match.
	ApplyDelta(ctx context.Context, walletID string, delta decimal.Decimal, expectedVersion int64) (bool, error)
	InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error)
}

// Store is the persistence gateway for wallets and ledger rows.
type Store interface {
	WalletByUser(ctx context.Context, userID string) (Wallet, error)
	TransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
	// WithTx runs fn inside one session. The session commits when fn returns
	// nil and is rolled back on any error; the connection is always released.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
}

package ledger

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/securevault/securevault/internal/infra"
)

// newPostgresStore connects to DATABASE_URL and applies the schema; the
// tests are skipped when no database is configured.
func newPostgresStore(t *testing.T) (*PostgresStore, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping postgres tests")
	}
	ctx := context.Background()
	pool, err := infra.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := infra.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewPostgresStore(pool), pool
}

// insertWallet creates a user and a wallet with the given balance at version 0.
func insertWallet(t *testing.T, pool *pgxpool.Pool, balance string) (userID string, walletID string) {
	t.Helper()
	ctx := context.Background()
	uid, wid := uuid.New(), uuid.New()
	name := "pg_" + uid.String()[:8]
	if _, err := pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash) VALUES ($1, $2, $3, 'x')`,
		uid, name, name+"@example.com"); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`INSERT INTO wallets (id, user_id, balance, currency) VALUES ($1, $2, $3::numeric, 'USD')`,
		wid, uid, balance); err != nil {
		t.Fatalf("insert wallet: %v", err)
	}
	return uid.String(), wid.String()
}

func TestPostgresApplyDeltaVersionGuard(t *testing.T) {
	store, pool := newPostgresStore(t)
	ctx := context.Background()
	userID, walletID := insertWallet(t, pool, "100.00")

	err := store.WithTx(ctx, func(tx Tx) error {
		ok, err := tx.ApplyDelta(ctx, walletID, decimal.NewFromInt(-10), 3)
		if err != nil {
			return err
		}
		if ok {
			t.Fatalf("expected stale version to match zero rows")
		}
		ok, err = tx.ApplyDelta(ctx, walletID, decimal.NewFromInt(-10), 0)
		if err != nil {
			return err
		}
		if !ok {
			t.Fatalf("expected current version to match")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	w, err := store.WalletByUser(ctx, userID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if !w.Balance.Equal(decimal.NewFromInt(90)) || w.Version != 1 {
		t.Fatalf("expected 90 at v1, got %s v%d", w.Balance, w.Version)
	}
}

func TestPostgresNegativeBalanceMapped(t *testing.T) {
	store, pool := newPostgresStore(t)
	ctx := context.Background()
	userID, walletID := insertWallet(t, pool, "5.00")

	err := store.WithTx(ctx, func(tx Tx) error {
		_, err := tx.ApplyDelta(ctx, walletID, decimal.NewFromInt(-6), 0)
		return err
	})
	if !errors.Is(err, ErrNegativeBalance) {
		t.Fatalf("expected ErrNegativeBalance, got %v", err)
	}

	w, err := store.WalletByUser(ctx, userID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if !w.Balance.Equal(decimal.NewFromInt(5)) || w.Version != 0 {
		t.Fatalf("expected untouched wallet, got %s v%d", w.Balance, w.Version)
	}
}

func TestPostgresSessionCommitsAndRollsBack(t *testing.T) {
	store, pool := newPostgresStore(t)
	ctx := context.Background()
	senderID, senderWallet := insertWallet(t, pool, "50.00")
	receiverID, receiverWallet := insertWallet(t, pool, "0.00")

	boom := errors.New("abort session")
	err := store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.ApplyDelta(ctx, senderWallet, decimal.NewFromInt(-20), 0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected session error, got %v", err)
	}
	if w, _ := store.WalletByUser(ctx, senderID); !w.Balance.Equal(decimal.NewFromInt(50)) || w.Version != 0 {
		t.Fatalf("expected rollback, got %s v%d", w.Balance, w.Version)
	}

	amount := decimal.RequireFromString("20.50")
	var committed Transaction
	err = store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.ApplyDelta(ctx, senderWallet, amount.Neg(), 0); err != nil {
			return err
		}
		if _, err := tx.ApplyDelta(ctx, receiverWallet, amount, 0); err != nil {
			return err
		}
		txn, err := tx.InsertTransaction(ctx, Transaction{
			SourceWalletID:      senderWallet,
			DestinationWalletID: receiverWallet,
			Amount:              amount,
			Status:              StatusCompleted,
		})
		committed = txn
		return err
	})
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	txns, err := store.TransactionsByUser(ctx, receiverID)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txns) != 1 || txns[0].ID != committed.ID || !txns[0].Amount.Equal(amount) {
		t.Fatalf("unexpected history %+v", txns)
	}
	if w, _ := store.WalletByUser(ctx, receiverID); !w.Balance.Equal(amount) || w.Version != 1 {
		t.Fatalf("expected receiver credited, got %s v%d", w.Balance, w.Version)
	}
}

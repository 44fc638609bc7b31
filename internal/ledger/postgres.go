package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgCheckViolation       = "23514"
)

// querier is satisfied by both the pool and an open pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore persists wallets and transactions in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// WalletByUser fetches the wallet owned by userID.
func (s *PostgresStore) WalletByUser(ctx context.Context, userID string) (Wallet, error) {
	return walletByUser(ctx, s.db, userID, false)
}

// TransactionsByUser lists ledger rows touching the user's wallet, newest first.
func (s *PostgresStore) TransactionsByUser(ctx context.Context, userID string) ([]Transaction, error) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrWalletNotFound
	}
	const query = `
        SELECT t.id, t.source_wallet_id, t.destination_wallet_id, t.amount::text, t.status, t.created_at
        FROM transactions t
        WHERE t.source_wallet_id IN (SELECT id FROM wallets WHERE user_id = $1)
           OR t.destination_wallet_id IN (SELECT id FROM wallets WHERE user_id = $1)
        ORDER BY t.created_at DESC`
	rows, err := s.db.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			id, src, dst uuid.UUID
			amount       string
			txn          Transaction
		)
		if err := rows.Scan(&id, &src, &dst, &amount, &txn.Status, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if txn.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		txn.ID, txn.SourceWalletID, txn.DestinationWalletID = id.String(), src.String(), dst.String()
		txn.CreatedAt = txn.CreatedAt.UTC()
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// WithTx runs fn inside a read-committed transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit session: %w", err))
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) WalletByUser(ctx context.Context, userID string) (Wallet, error) {
	return walletByUser(ctx, t.tx, userID, true)
}

func (t *postgresTx) ApplyDelta(ctx context.Context, walletID string, delta decimal.Decimal, expectedVersion int64) (bool, error) {
	id, err := uuid.Parse(walletID)
	if err != nil {
		return false, ErrWalletNotFound
	}
	const update = `
        UPDATE wallets
        SET balance = balance + $1::numeric, version = version + 1
        WHERE id = $2 AND version = $3`
	tag, err := t.tx.Exec(ctx, update, delta.String(), id, expectedVersion)
	if err != nil {
		return false, classify(fmt.Errorf("update wallet %s: %w", walletID, err))
	}
	return tag.RowsAffected() == 1, nil
}

func (t *postgresTx) InsertTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	src, err := uuid.Parse(txn.SourceWalletID)
	if err != nil {
		return Transaction{}, fmt.Errorf("source wallet id: %w", err)
	}
	dst, err := uuid.Parse(txn.DestinationWalletID)
	if err != nil {
		return Transaction{}, fmt.Errorf("destination wallet id: %w", err)
	}
	id := uuid.New()
	const insert = `
        INSERT INTO transactions (id, source_wallet_id, destination_wallet_id, amount, status)
        VALUES ($1, $2, $3, $4::numeric, $5)
        RETURNING created_at`
	var createdAt time.Time
	if err := t.tx.QueryRow(ctx, insert, id, src, dst, txn.Amount.String(), txn.Status).Scan(&createdAt); err != nil {
		return Transaction{}, classify(fmt.Errorf("insert transaction: %w", err))
	}
	txn.ID = id.String()
	txn.CreatedAt = createdAt.UTC()
	return txn, nil
}

func walletByUser(ctx context.Context, q querier, userID string, inTx bool) (Wallet, error) {
	owner, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, ErrWalletNotFound
	}
	const query = `
        SELECT id, user_id, balance::text, currency, version, created_at
        FROM wallets WHERE user_id = $1`
	var (
		id, uid uuid.UUID
		balance string
		w       Wallet
	)
	if err := q.QueryRow(ctx, query, owner).Scan(&id, &uid, &balance, &w.Currency, &w.Version, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		if inTx {
			err = classify(err)
		}
		return Wallet{}, fmt.Errorf("read wallet for user %s: %w", userID, err)
	}
	if w.Balance, err = decimal.NewFromString(balance); err != nil {
		return Wallet{}, fmt.Errorf("parse balance: %w", err)
	}
	w.ID, w.UserID = id.String(), uid.String()
	w.CreatedAt = w.CreatedAt.UTC()
	return w, nil
}

// classify maps Postgres concurrency aborts onto ErrConflict and check
// violations onto ErrNegativeBalance, keeping the original error text.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case pgCheckViolation:
		return fmt.Errorf("%w: %v", ErrNegativeBalance, err)
	default:
		return err
	}
}

package identity

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

	"github.com/securevault/securevault/internal/ledger"
)

const pgUniqueViolation = "23505"

// Repository persists users and opens their wallets.
type Repository interface {
	// Create stores the user and its wallet atomically.
	Create(ctx context.Context, user User) (User, ledger.Wallet, error)
	List(ctx context.Context) ([]User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the user and a zero-balance wallet in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, user User) (User, ledger.Wallet, error) {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return User{}, ledger.Wallet{}, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return User{}, ledger.Wallet{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var createdAt time.Time
	err = tx.QueryRow(ctx, `INSERT INTO users (id, username, email, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		userID, user.Username, user.Email, string(user.PasswordHash), user.CreatedAt.UTC()).Scan(&createdAt)
	if err != nil {
		return User{}, ledger.Wallet{}, mapUniqueViolation(err)
	}
	user.CreatedAt = createdAt.UTC()

	w := ledger.Wallet{
		ID:       uuid.New().String(),
		UserID:   user.ID,
		Balance:  decimal.Zero,
		Currency: ledger.DefaultCurrency,
	}
	err = tx.QueryRow(ctx, `INSERT INTO wallets (id, user_id, balance, currency, version)
        VALUES ($1, $2, 0, $3, 0) RETURNING created_at`,
		uuid.MustParse(w.ID), userID, w.Currency).Scan(&w.CreatedAt)
	if err != nil {
		return User{}, ledger.Wallet{}, fmt.Errorf("open wallet: %w", err)
	}
	w.CreatedAt = w.CreatedAt.UTC()

	if err := tx.Commit(ctx); err != nil {
		return User{}, ledger.Wallet{}, fmt.Errorf("commit: %w", err)
	}
	return user, w, nil
}

// List returns users ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT id, username, email, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var (
			id   uuid.UUID
			user User
		)
		if err := row.Scan(&id, &user.Username, &user.Email, &user.CreatedAt); err != nil {
			return User{}, err
		}
		user.ID = id.String()
		user.CreatedAt = user.CreatedAt.UTC()
		return user, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return fmt.Errorf("insert user: %w", err)
	}
	switch pgErr.ConstraintName {
	case "users_email_key":
		return ErrEmailTaken
	default:
		return ErrUsernameTaken
	}
}

package identity

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/securevault/securevault/internal/ledger"
)

const passwordCost = 12

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Service manages user registration.
type Service struct {
	repo   Repository
	logger *slog.Logger
	cost   int
	now    func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		cost:   passwordCost,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register validates the input, hashes the password and creates the user
// together with an empty wallet.
func (s *Service) Register(ctx context.Context, reg Registration) (User, ledger.Wallet, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if err := validate(reg); err != nil {
		return User{}, ledger.Wallet{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return User{}, ledger.Wallet{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	user, w, err := s.repo.Create(ctx, user)
	if err != nil {
		return User{}, ledger.Wallet{}, err
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("wallet_id", w.ID),
	)
	return user, w, nil
}

// List returns all registered users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func validate(reg Registration) error {
	switch {
	case reg.Username == "" || reg.Email == "" || reg.Password == "":
		return ErrMissingFields
	case len(reg.Username) < 3 || len(reg.Username) > 50:
		return ErrUsernameLength
	case !usernamePattern.MatchString(reg.Username):
		return ErrUsernameChars
	case !emailPattern.MatchString(reg.Email):
		return ErrInvalidEmail
	case len(reg.Password) < 6:
		return ErrPasswordTooShort
	}
	return nil
}

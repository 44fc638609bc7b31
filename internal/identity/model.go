package identity

import (
	"errors"
	"time"
)

var (
	ErrMissingFields    = errors.New("all fields (username, email, password) are required")
	ErrUsernameLength   = errors.New("username must be between 3 and 50 characters")
	ErrUsernameChars    = errors.New("username can only contain letters, numbers, and underscores")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters long")
	ErrUsernameTaken    = errors.New("username is already taken")
	ErrEmailTaken       = errors.New("email is already registered")
)

// User represents a registered wallet owner.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Registration is the input for creating a user.
type Registration struct {
	Username string
	Email    string
	Password string
}

package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/wallet"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string           `json:"id"`
	Username  string           `json:"username"`
	Email     string           `json:"email"`
	CreatedAt time.Time        `json:"createdAt"`
	Wallet    *wallet.Response `json:"wallet,omitempty"`
}

func newUserResponse(u User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// Register creates a user and its wallet.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	user, w, err := h.service.Register(c.UserContext(), Registration{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		switch {
		case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrEmailTaken):
			return fiber.NewError(http.StatusConflict, err.Error())
		case isValidation(err):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, "failed to create user: "+err.Error())
		}
	}
	out := newUserResponse(user)
	wr := wallet.NewResponse(w)
	out.Wallet = &wr
	return c.Status(http.StatusCreated).JSON(out)
}

// List returns all users.
func (h *Handler) List(c *fiber.Ctx) error {
	users, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	return c.Status(http.StatusOK).JSON(out)
}

func isValidation(err error) bool {
	for _, target := range []error{ErrMissingFields, ErrUsernameLength, ErrUsernameChars, ErrInvalidEmail, ErrPasswordTooShort} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

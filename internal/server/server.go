package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/config"
	"github.com/securevault/securevault/internal/notification"
	"github.com/securevault/securevault/internal/routes"
)

const notificationBuffer = 1024

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app      *fiber.App
	cfg      config.Config
	notifier *notification.AsyncNotifier
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// Notifications are delivered off the request path.
func New(deps routes.Deps) (*Server, error) {
	var notifier *notification.AsyncNotifier
	if deps.Notifier != nil {
		notifier = notification.NewAsync(deps.Notifier, deps.Logger, notificationBuffer, deps.Cfg.PublishTimeout)
		deps.Notifier = notifier
	}

	app := fiber.New(fiber.Config{
		AppName:      deps.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: errorHandler(deps.Logger),
	})

	if err := routes.Setup(app, deps); err != nil {
		if notifier != nil {
			_ = notifier.Close(context.Background())
		}
		return nil, err
	}

	return &Server{app: app, cfg: deps.Cfg, notifier: notifier}, nil
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server, then drains queued notifications.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.app.ShutdownWithContext(ctx)
	if s.notifier != nil {
		err = errors.Join(err, s.notifier.Close(ctx))
	}
	return err
}

// errorHandler renders every error as {"error": message}. Unexpected errors
// are logged and hidden behind a generic message.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else if logger != nil {
			logger.Error("unhandled error", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}

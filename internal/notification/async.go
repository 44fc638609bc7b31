package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the delivery buffer has no room left.
	ErrQueueFull = errors.New("notification queue full")
	// ErrClosed is returned for events published after Close.
	ErrClosed = errors.New("notifier closed")
)

// AsyncNotifier queues events and delivers them from a single background
// worker, so callers never wait on the downstream notifier. Each delivery is
// bounded by the configured timeout.
type AsyncNotifier struct {
	next    Notifier
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

// NewAsync starts a worker that forwards queued events to next.
func NewAsync(next Notifier, logger *slog.Logger, buffer int, timeout time.Duration) *AsyncNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = 1
	}
	n := &AsyncNotifier{
		next:    next,
		logger:  logger,
		timeout: timeout,
		events:  make(chan Event, buffer),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// Publish enqueues the event without blocking.
func (n *AsyncNotifier) Publish(_ context.Context, event Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}
	select {
	case n.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until the queue is drained or ctx
// is done.
func (n *AsyncNotifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.events)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *AsyncNotifier) run() {
	defer close(n.done)
	for event := range n.events {
		n.deliver(event)
	}
}

func (n *AsyncNotifier) deliver(event Event) {
	ctx := context.Background()
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.next.Publish(ctx, event); err != nil {
		n.logger.Warn("deliver notification",
			slog.String("kind", event.Kind),
			slog.String("transaction_id", event.TransactionID),
			slog.Any("error", err),
		)
	}
}

package notification

import (
	"context"
	"log/slog"
	"time"
)

const (
	// KindTransferCompleted is emitted once per committed transfer.
	KindTransferCompleted = "transfer_completed"
)

// Event describes a transfer that has been committed to the ledger.
type Event struct {
	Kind          string    `json:"kind"`
	TransactionID string    `json:"transactionId"`
	SenderID      string    `json:"senderId"`
	ReceiverID    string    `json:"receiverId"`
	Amount        string    `json:"amount"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Notifier delivers events to downstream systems.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// LoggerNotifier writes events to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Publish writes the event to the structured logger.
func (n *LoggerNotifier) Publish(_ context.Context, event Event) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", event.Kind,
		"transaction_id", event.TransactionID,
		"sender_id", event.SenderID,
		"receiver_id", event.ReceiverID,
		"amount", event.Amount,
	)
	return nil
}

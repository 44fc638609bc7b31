package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/securevault/securevault/internal/ledger"
	"github.com/securevault/securevault/internal/metrics"
	"github.com/securevault/securevault/internal/notification"
)

const (
	currencyScale = 2

	msgCompleted         = "Transfer completed successfully"
	msgMissingParty      = "senderId and receiverId are required"
	msgAmountNotPositive = "amount must be greater than zero"
	msgAmountScale       = "amount must have at most 2 decimal places"
	msgSameParty         = "sender and receiver cannot be the same"
	msgSenderNotFound    = "sender wallet not found"
	msgReceiverNotFound  = "receiver wallet not found"
	msgInsufficientFunds = "insufficient funds in sender's wallet"
	msgConflict          = "conflict detected, retry"
	msgTimeout           = "transfer timed out, retry"
)

// abort carries a business-rule outcome out of the session so WithTx rolls back.
type abort struct {
	result Result
}

func (a *abort) Error() string { return a.result.Message }

// TransferInput captures the data needed to move funds between two users' wallets.
type TransferInput struct {
	SenderID   string
	ReceiverID string
	Amount     decimal.Decimal
}

// Service moves funds between wallets using optimistic version guards.
type Service struct {
	store    ledger.Store
	notifier notification.Notifier
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewService constructs the transfer engine. A zero timeout disables the
// session deadline.
func NewService(store ledger.Store, notifier notification.Notifier, logger *slog.Logger, timeout time.Duration) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Transfer debits the sender and credits the receiver in one session.
// It never returns an error; every outcome is described by the Result.
func (s *Service) Transfer(ctx context.Context, input TransferInput) Result {
	res := s.transfer(ctx, input)
	metrics.TransfersTotal.WithLabelValues(string(res.Kind)).Inc()

	attrs := []any{"sender_id", input.SenderID, "receiver_id", input.ReceiverID, "amount", input.Amount.String(), "outcome", res.Kind}
	if res.Success() {
		s.logger.Info("transfer completed", append(attrs, "transaction_id", res.Transaction.ID)...)
		s.publish(ctx, input, *res.Transaction)
	} else {
		s.logger.Warn("transfer failed", append(attrs, "reason", res.Message)...)
	}
	return res
}

func (s *Service) transfer(ctx context.Context, input TransferInput) Result {
	input.SenderID = strings.TrimSpace(input.SenderID)
	input.ReceiverID = strings.TrimSpace(input.ReceiverID)

	switch {
	case input.SenderID == "" || input.ReceiverID == "":
		return failed(KindValidation, msgMissingParty)
	case !input.Amount.IsPositive():
		return failed(KindValidation, msgAmountNotPositive)
	case !input.Amount.Equal(input.Amount.Round(currencyScale)):
		return failed(KindValidation, msgAmountScale)
	case input.SenderID == input.ReceiverID:
		return failed(KindValidation, msgSameParty)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var committed ledger.Transaction
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		txn, err := s.apply(ctx, tx, input)
		if err != nil {
			return err
		}
		committed = txn
		return nil
	})
	if err == nil {
		return succeeded(committed)
	}

	var a *abort
	switch {
	case errors.As(err, &a):
		return a.result
	case errors.Is(err, ledger.ErrConflict):
		return failed(KindConflict, msgConflict)
	case errors.Is(err, ledger.ErrNegativeBalance):
		return failed(KindValidation, msgInsufficientFunds)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return failed(KindConflict, msgTimeout)
	default:
		return failed(KindInfrastructure, err.Error())
	}
}

func (s *Service) apply(ctx context.Context, tx ledger.Tx, input TransferInput) (ledger.Transaction, error) {
	sender, err := tx.WalletByUser(ctx, input.SenderID)
	if errors.Is(err, ledger.ErrWalletNotFound) {
		return ledger.Transaction{}, &abort{failed(KindNotFound, msgSenderNotFound)}
	}
	if err != nil {
		return ledger.Transaction{}, err
	}

	receiver, err := tx.WalletByUser(ctx, input.ReceiverID)
	if err != nil && !errors.Is(err, ledger.ErrWalletNotFound) {
		return ledger.Transaction{}, err
	}
	receiverMissing := err != nil

	if sender.Balance.LessThan(input.Amount) {
		return ledger.Transaction{}, &abort{failed(KindValidation, msgInsufficientFunds)}
	}
	if receiverMissing {
		return ledger.Transaction{}, &abort{failed(KindNotFound, msgReceiverNotFound)}
	}

	// Lock rows in id order so concurrent opposite-direction transfers do
	// not deadlock in Postgres.
	legs := []struct {
		wallet ledger.Wallet
		delta  decimal.Decimal
	}{
		{sender, input.Amount.Neg()},
		{receiver, input.Amount},
	}
	if receiver.ID < sender.ID {
		legs[0], legs[1] = legs[1], legs[0]
	}
	for _, leg := range legs {
		ok, err := tx.ApplyDelta(ctx, leg.wallet.ID, leg.delta, leg.wallet.Version)
		if err != nil {
			return ledger.Transaction{}, err
		}
		if !ok {
			return ledger.Transaction{}, &abort{failed(KindConflict, msgConflict)}
		}
	}

	return tx.InsertTransaction(ctx, ledger.Transaction{
		SourceWalletID:      sender.ID,
		DestinationWalletID: receiver.ID,
		Amount:              input.Amount,
		Status:              ledger.StatusCompleted,
	})
}

func (s *Service) publish(ctx context.Context, input TransferInput, txn ledger.Transaction) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Publish(context.WithoutCancel(ctx), notification.Event{
		Kind:          notification.KindTransferCompleted,
		TransactionID: txn.ID,
		SenderID:      input.SenderID,
		ReceiverID:    input.ReceiverID,
		Amount:        txn.Amount.StringFixed(currencyScale),
		OccurredAt:    s.now(),
	})
	if err != nil {
		s.logger.Warn("publish transfer event", "transaction_id", txn.ID, "error", err)
	}
}

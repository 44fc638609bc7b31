package wallet

import (
	"time"

	"github.com/securevault/securevault/internal/ledger"
)

const currencyScale = 2

// Response is the wire form of a wallet.
type Response struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
}

// TransactionResponse is the wire form of a ledger row.
type TransactionResponse struct {
	ID                  string    `json:"id"`
	SourceWalletID      string    `json:"sourceWalletId"`
	DestinationWalletID string    `json:"destinationWalletId"`
	Amount              string    `json:"amount"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"createdAt"`
}

// NewResponse converts a stored wallet for output.
func NewResponse(w ledger.Wallet) Response {
	return Response{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance.StringFixed(currencyScale),
		Currency:  w.Currency,
		Version:   w.Version,
		CreatedAt: w.CreatedAt,
	}
}

// NewTransactionResponse converts a ledger row for output.
func NewTransactionResponse(txn ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                  txn.ID,
		SourceWalletID:      txn.SourceWalletID,
		DestinationWalletID: txn.DestinationWalletID,
		Amount:              txn.Amount.StringFixed(currencyScale),
		Status:              txn.Status,
		CreatedAt:           txn.CreatedAt,
	}
}

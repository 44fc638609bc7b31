package wallet

import (
	"context"
	"strings"

	"github.com/securevault/securevault/internal/ledger"
)

// Service answers read-only wallet queries. Balances are only ever changed
// by the transfer engine.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet query service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Get returns the wallet owned by userID.
func (s *Service) Get(ctx context.Context, userID string) (ledger.Wallet, error) {
	return s.store.WalletByUser(ctx, strings.TrimSpace(userID))
}

// Transactions lists every ledger row touching the user's wallet, newest
// first. An unknown user yields ledger.ErrWalletNotFound.
func (s *Service) Transactions(ctx context.Context, userID string) ([]ledger.Transaction, error) {
	userID = strings.TrimSpace(userID)
	if _, err := s.store.WalletByUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.TransactionsByUser(ctx, userID)
}

package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// SeedWallet is a test helper that opens (if needed) and overwrites the wallet
// of userID when using the in-memory store.
func SeedWallet(s Store, userID string, balance decimal.Decimal, version int64) Wallet {
	mem, ok := s.(*MemoryStore)
	if !ok {
		return Wallet{}
	}
	if _, err := mem.WalletByUser(context.Background(), userID); err != nil {
		_, _ = mem.OpenWallet(context.Background(), userID, DefaultCurrency)
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	w := mem.wallets[mem.byUser[userID]]
	w.Balance = balance
	w.Version = version
	mem.wallets[w.ID] = w
	return w
}

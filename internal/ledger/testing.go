package ledger

// SeedSpendable is a test helper that sets the spendable balance for an
// account when using the in-memory ledger.
func SeedSpendable(l Ledger, userID string, currency Currency, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		key := acctKey{userID, currency}
		if _, exists := mem.accounts[key]; !exists {
			mem.accounts[key] = &Account{UserID: userID, Currency: currency}
		}
		mem.accounts[key].Spendable = amount
	}
}

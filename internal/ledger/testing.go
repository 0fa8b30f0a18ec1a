package ledger

// SeedBalance is a test helper that seeds the available balance for a user and
// asset when using the in-memory client.
func SeedBalance(c Client, userID, asset string, amount int64) {
	if mem, ok := c.(*inMemoryClient); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[balanceKey(userID, asset)] = Balance{Available: amount}
	}
}

package contracts

import "context"

// CurrencyService resolves an exchange rate into the ledger currency.
// Implementations fall back to the configured static table when the live
// feed is unavailable; a missing pair is an error.
type CurrencyService interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}

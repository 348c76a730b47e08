package auction

import "math/big"

// PriceAt returns the auction quote at time now. The quote decays linearly
// from StartQuote at StartTime down to MinQuote at EndTime and is clamped to
// that range outside the schedule. The decay is computed in arbitrary
// precision so the intermediate product cannot overflow, then floored by
// integer division.
func PriceAt(a *Auction, now int64) *big.Int {
	if a == nil {
		return big.NewInt(0)
	}
	if now <= a.StartTime {
		return new(big.Int).Set(a.StartQuote)
	}
	if now >= a.EndTime {
		return new(big.Int).Set(a.MinQuote)
	}
	duration := a.EndTime - a.StartTime
	if duration <= 0 {
		return new(big.Int).Set(a.MinQuote)
	}
	elapsed := now - a.StartTime
	priceRange := new(big.Int).Sub(a.StartQuote, a.MinQuote)
	if priceRange.Sign() <= 0 {
		return new(big.Int).Set(a.MinQuote)
	}
	decay := new(big.Int).Mul(priceRange, big.NewInt(elapsed))
	decay.Quo(decay, big.NewInt(duration))
	price := new(big.Int).Sub(a.StartQuote, decay)
	if price.Cmp(a.MinQuote) < 0 {
		return new(big.Int).Set(a.MinQuote)
	}
	return price
}

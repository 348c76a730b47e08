package auction

import (
	"fmt"
	"math/big"
)

const (
	// DefaultDurationSecs is how long the quote decays before bottoming
	// out at the intent's minimum receive amount.
	DefaultDurationSecs int64 = 120
	// DefaultExclusiveWindowSecs is how long after the auction end the
	// winning solver retains the exclusive right to settle.
	DefaultExclusiveWindowSecs int64 = 30
	// DefaultPremiumBps is the starting quote premium over the minimum
	// receive amount, in basis points.
	DefaultPremiumBps uint64 = 1000
	// DefaultBondAmount is the collateral a solver posts when claiming.
	DefaultBondAmount uint64 = 1_000_000

	basisPointsDenominator uint64 = 10_000
)

// Params bundles the auction schedule and bonding knobs. The zero value is
// not usable; obtain a baseline from DefaultParams and override as needed.
type Params struct {
	DurationSecs        int64
	ExclusiveWindowSecs int64
	PremiumBps          uint64
	BondAsset           string
	BondAmount          *big.Int
}

// DefaultParams returns the protocol defaults.
func DefaultParams() Params {
	return Params{
		DurationSecs:        DefaultDurationSecs,
		ExclusiveWindowSecs: DefaultExclusiveWindowSecs,
		PremiumBps:          DefaultPremiumBps,
		BondAsset:           "SWP",
		BondAmount:          new(big.Int).SetUint64(DefaultBondAmount),
	}
}

// Validate checks the parameter set for internal consistency.
func (p Params) Validate() error {
	if p.DurationSecs <= 0 {
		return fmt.Errorf("auction: duration must be positive")
	}
	if p.ExclusiveWindowSecs < 0 {
		return fmt.Errorf("auction: exclusive window must be non-negative")
	}
	if p.PremiumBps > basisPointsDenominator {
		return fmt.Errorf("auction: premium must not exceed %d basis points", basisPointsDenominator)
	}
	if p.BondAsset == "" {
		return fmt.Errorf("auction: bond asset must be set")
	}
	if p.BondAmount == nil || p.BondAmount.Sign() <= 0 {
		return fmt.Errorf("auction: bond amount must be positive")
	}
	return nil
}

package auction

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Status tracks the auction lifecycle. Started auctions accept claims,
// Awarded auctions wait on the winning solver to settle, and Ended or
// Cancelled auctions are terminal.
type Status uint8

const (
	StatusStarted Status = iota
	StatusCancelled
	StatusAwarded
	StatusEnded
)

// Valid reports whether the status is one of the defined lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusStarted, StatusCancelled, StatusAwarded, StatusEnded:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusCancelled:
		return "cancelled"
	case StatusAwarded:
		return "awarded"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Auction is the descending-price discovery record for a single intent. The
// quote starts at a premium over the intent's minimum receive amount and
// decays linearly to it over the auction duration. The claim fields are
// written exactly once, when a solver wins the auction.
type Auction struct {
	ID                  [32]byte
	IntentID            [32]byte
	StartQuote          *big.Int
	MinQuote            *big.Int
	StartTime           int64
	EndTime             int64
	ExclusiveWindowSecs int64
	BondAsset           string
	BondAmount          *big.Int
	ClaimedBy           *[20]byte
	ClaimPrice          *big.Int
	ClaimExpiry         int64
	Status              Status
}

// DeriveID computes the deterministic auction identifier for an intent.
// Identifiers are one-to-one with intents, so at most one auction can ever
// exist per intent.
func DeriveID(intentID [32]byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash([]byte("auction"), intentID[:]))
}

// Claimed reports whether a solver has already won the auction.
func (a *Auction) Claimed() bool {
	return a != nil && a.ClaimedBy != nil
}

// Clone returns a deep copy of the auction.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.StartQuote != nil {
		clone.StartQuote = new(big.Int).Set(a.StartQuote)
	} else {
		clone.StartQuote = big.NewInt(0)
	}
	if a.MinQuote != nil {
		clone.MinQuote = new(big.Int).Set(a.MinQuote)
	} else {
		clone.MinQuote = big.NewInt(0)
	}
	if a.BondAmount != nil {
		clone.BondAmount = new(big.Int).Set(a.BondAmount)
	} else {
		clone.BondAmount = big.NewInt(0)
	}
	if a.ClaimedBy != nil {
		claimed := *a.ClaimedBy
		clone.ClaimedBy = &claimed
	}
	if a.ClaimPrice != nil {
		clone.ClaimPrice = new(big.Int).Set(a.ClaimPrice)
	}
	return &clone
}

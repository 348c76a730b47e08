package state

import (
	"fmt"
	"math/big"

	"stealthswap/native/auction"
	"stealthswap/native/intent"
)

type storedIntent struct {
	Owner       [20]byte
	InputAsset  string
	OutputAsset string
	InputAmount *big.Int
	MinReceive  *big.Int
	Active      bool
	CreatedAt   uint64
}

// IntentPut persists the intent record.
func (m *Manager) IntentPut(i *intent.Intent) error {
	if i == nil {
		return fmt.Errorf("state: nil intent")
	}
	sanitized, err := intent.SanitizeIntent(i)
	if err != nil {
		return err
	}
	stored := storedIntent{
		Owner:       sanitized.Owner,
		InputAsset:  sanitized.InputAsset,
		OutputAsset: sanitized.OutputAsset,
		InputAmount: sanitized.InputAmount,
		MinReceive:  sanitized.MinReceive,
		Active:      sanitized.Active,
		CreatedAt:   uint64(sanitized.CreatedAt),
	}
	return m.KVPut(intentKey(sanitized.ID), &stored)
}

// IntentGet loads an intent record by identifier.
func (m *Manager) IntentGet(id [32]byte) (*intent.Intent, bool) {
	var stored storedIntent
	ok, err := m.KVGet(intentKey(id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	return &intent.Intent{
		ID:          id,
		Owner:       stored.Owner,
		InputAsset:  stored.InputAsset,
		OutputAsset: stored.OutputAsset,
		InputAmount: stored.InputAmount,
		MinReceive:  stored.MinReceive,
		Active:      stored.Active,
		CreatedAt:   int64(stored.CreatedAt),
	}, true
}

type storedAuction struct {
	IntentID            [32]byte
	StartQuote          *big.Int
	MinQuote            *big.Int
	StartTime           uint64
	EndTime             uint64
	ExclusiveWindowSecs uint64
	BondAsset           string
	BondAmount          *big.Int
	Claimed             bool
	ClaimedBy           [20]byte
	ClaimPrice          *big.Int
	ClaimExpiry         uint64
	Status              uint8
}

// AuctionPut persists the auction record.
func (m *Manager) AuctionPut(a *auction.Auction) error {
	if a == nil {
		return fmt.Errorf("state: nil auction")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("state: invalid auction status %d", a.Status)
	}
	clone := a.Clone()
	stored := storedAuction{
		IntentID:            clone.IntentID,
		StartQuote:          clone.StartQuote,
		MinQuote:            clone.MinQuote,
		StartTime:           uint64(clone.StartTime),
		EndTime:             uint64(clone.EndTime),
		ExclusiveWindowSecs: uint64(clone.ExclusiveWindowSecs),
		BondAsset:           clone.BondAsset,
		BondAmount:          clone.BondAmount,
		ClaimExpiry:         uint64(clone.ClaimExpiry),
		Status:              uint8(clone.Status),
	}
	if clone.ClaimedBy != nil {
		stored.Claimed = true
		stored.ClaimedBy = *clone.ClaimedBy
	}
	if clone.ClaimPrice != nil {
		stored.ClaimPrice = clone.ClaimPrice
	} else {
		stored.ClaimPrice = big.NewInt(0)
	}
	return m.KVPut(auctionKey(clone.ID), &stored)
}

// AuctionGet loads an auction record by identifier.
func (m *Manager) AuctionGet(id [32]byte) (*auction.Auction, bool) {
	var stored storedAuction
	ok, err := m.KVGet(auctionKey(id), &stored)
	if err != nil || !ok {
		return nil, false
	}
	record := &auction.Auction{
		ID:                  id,
		IntentID:            stored.IntentID,
		StartQuote:          stored.StartQuote,
		MinQuote:            stored.MinQuote,
		StartTime:           int64(stored.StartTime),
		EndTime:             int64(stored.EndTime),
		ExclusiveWindowSecs: int64(stored.ExclusiveWindowSecs),
		BondAsset:           stored.BondAsset,
		BondAmount:          stored.BondAmount,
		ClaimExpiry:         int64(stored.ClaimExpiry),
		Status:              auction.Status(stored.Status),
	}
	if stored.Claimed {
		claimed := stored.ClaimedBy
		record.ClaimedBy = &claimed
		record.ClaimPrice = stored.ClaimPrice
	}
	return record, true
}

package auction

import (
	"encoding/hex"
	"fmt"

	"stealthswap/core/types"
)

const (
	// EventTypeAuctionCreated is emitted when an auction starts.
	EventTypeAuctionCreated = "auction.created"
	// EventTypeAuctionClaimed is emitted exactly once, when a solver wins.
	EventTypeAuctionClaimed = "auction.claimed"
	// EventTypeAuctionCancelled is emitted when the intent owner withdraws
	// an unclaimed auction.
	EventTypeAuctionCancelled = "auction.cancelled"
)

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent builds the auction.created event payload.
func NewCreatedEvent(a *Auction) *types.Event {
	if a == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeAuctionCreated,
		Attributes: map[string]string{
			"auctionId":  hex.EncodeToString(a.ID[:]),
			"intentId":   hex.EncodeToString(a.IntentID[:]),
			"startQuote": a.StartQuote.String(),
			"minQuote":   a.MinQuote.String(),
			"startTime":  fmt.Sprintf("%d", a.StartTime),
			"endTime":    fmt.Sprintf("%d", a.EndTime),
			"bondAsset":  a.BondAsset,
			"bondAmount": a.BondAmount.String(),
		},
	}
}

// NewClaimedEvent builds the auction.claimed event payload carrying the
// winning solver, the locked price and the claim timestamp.
func NewClaimedEvent(a *Auction, now int64) *types.Event {
	if a == nil || a.ClaimedBy == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeAuctionClaimed,
		Attributes: map[string]string{
			"auctionId":   hex.EncodeToString(a.ID[:]),
			"intentId":    hex.EncodeToString(a.IntentID[:]),
			"solver":      hex.EncodeToString(a.ClaimedBy[:]),
			"claimPrice":  a.ClaimPrice.String(),
			"claimTime":   fmt.Sprintf("%d", now),
			"claimExpiry": fmt.Sprintf("%d", a.ClaimExpiry),
		},
	}
}

// NewCancelledEvent builds the auction.cancelled event payload.
func NewCancelledEvent(a *Auction) *types.Event {
	if a == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeAuctionCancelled,
		Attributes: map[string]string{
			"auctionId": hex.EncodeToString(a.ID[:]),
			"intentId":  hex.EncodeToString(a.IntentID[:]),
		},
	}
}

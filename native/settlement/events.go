package settlement

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"stealthswap/core/types"
	"stealthswap/native/auction"
	"stealthswap/native/intent"
)

const (
	// EventTypeIntentFilled is emitted when a fill settles an intent.
	EventTypeIntentFilled = "intent.filled"
	// EventTypeBondSwept is emitted when a lapsed winner's bond is
	// forfeited to the fee treasury.
	EventTypeBondSwept = "auction.bond_swept"
)

type settlementEvent struct {
	evt *types.Event
}

func (e settlementEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e settlementEvent) Event() *types.Event { return e.evt }

// NewFilledEvent builds the intent.filled event payload.
func NewFilledEvent(i *intent.Intent, a *auction.Auction, received *big.Int, solver [20]byte, now int64) *types.Event {
	if i == nil || a == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeIntentFilled,
		Attributes: map[string]string{
			"intentId":      hex.EncodeToString(i.ID[:]),
			"auctionId":     hex.EncodeToString(a.ID[:]),
			"owner":         hex.EncodeToString(i.Owner[:]),
			"solver":        hex.EncodeToString(solver[:]),
			"inputAsset":    i.InputAsset,
			"outputAsset":   i.OutputAsset,
			"inputAmount":   i.InputAmount.String(),
			"receiveAmount": received.String(),
			"filledAt":      fmt.Sprintf("%d", now),
		},
	}
}

// NewBondSweptEvent builds the auction.bond_swept event payload.
func NewBondSweptEvent(a *auction.Auction, solver [20]byte, amount *big.Int, now int64) *types.Event {
	if a == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeBondSwept,
		Attributes: map[string]string{
			"auctionId": hex.EncodeToString(a.ID[:]),
			"intentId":  hex.EncodeToString(a.IntentID[:]),
			"solver":    hex.EncodeToString(solver[:]),
			"bondAsset": a.BondAsset,
			"amount":    amount.String(),
			"sweptAt":   fmt.Sprintf("%d", now),
		},
	}
}

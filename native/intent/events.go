package intent

import (
	"encoding/hex"
	"fmt"

	"stealthswap/core/types"
)

// EventTypeIntentCreated is emitted once per newly persisted intent.
const EventTypeIntentCreated = "intent.created"

type intentEvent struct {
	evt *types.Event
}

func (e intentEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e intentEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent builds the intent.created event payload.
func NewCreatedEvent(i *Intent) *types.Event {
	if i == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeIntentCreated,
		Attributes: map[string]string{
			"intentId":    hex.EncodeToString(i.ID[:]),
			"owner":       hex.EncodeToString(i.Owner[:]),
			"inputAsset":  i.InputAsset,
			"outputAsset": i.OutputAsset,
			"inputAmount": i.InputAmount.String(),
			"minReceive":  i.MinReceive.String(),
			"createdAt":   fmt.Sprintf("%d", i.CreatedAt),
		},
	}
}

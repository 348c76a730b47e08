package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"stealthswap/core/events"
	"stealthswap/core/state"
	"stealthswap/core/types"
	"stealthswap/native/auction"
	nativecommon "stealthswap/native/common"
	"stealthswap/native/intent"
	"stealthswap/native/settlement"
	"stealthswap/storage/trie"
)

// StateProcessor owns the working trie and hands out engines wired to it.
// Engines mutate the trie in memory; the node either commits the pending
// changes or resets the trie to the last committed root, which is what makes
// multi-leg operations atomic.
type StateProcessor struct {
	Trie          *trie.Trie
	committedRoot common.Hash
	version       uint64
	events        []types.Event

	auctionParams auction.Params
	feeTreasury   *[20]byte
	pauses        nativecommon.PauseView
}

// NewStateProcessor wraps the trie opened at the latest committed root.
func NewStateProcessor(tr *trie.Trie) *StateProcessor {
	return &StateProcessor{
		Trie:          tr,
		committedRoot: tr.Root(),
		auctionParams: auction.DefaultParams(),
	}
}

// SetAuctionParams overrides the auction schedule used by new engines.
func (sp *StateProcessor) SetAuctionParams(p auction.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	sp.auctionParams = p
	return nil
}

// SetFeeTreasury configures where forfeited bonds are sent.
func (sp *StateProcessor) SetFeeTreasury(addr [20]byte) {
	treasury := addr
	sp.feeTreasury = &treasury
}

// SetPauses wires the pause view passed down to engines.
func (sp *StateProcessor) SetPauses(p nativecommon.PauseView) { sp.pauses = p }

// Manager returns a state manager over the working trie.
func (sp *StateProcessor) Manager() *state.Manager {
	return state.NewManager(sp.Trie)
}

type processorEmitter struct {
	sp *StateProcessor
}

func (p processorEmitter) Emit(evt events.Event) {
	type payloadProvider interface {
		Event() *types.Event
	}
	provider, ok := evt.(payloadProvider)
	if !ok {
		return
	}
	payload := provider.Event()
	if payload == nil {
		return
	}
	p.sp.AppendEvent(payload)
}

// AppendEvent records an event in the pending set. Pending events are
// discarded on rollback alongside the trie changes.
func (sp *StateProcessor) AppendEvent(evt *types.Event) {
	if evt == nil {
		return
	}
	sp.events = append(sp.events, *evt)
}

// PendingEvents returns the events accumulated since the last commit or
// rollback.
func (sp *StateProcessor) PendingEvents() []types.Event {
	out := make([]types.Event, len(sp.events))
	copy(out, sp.events)
	return out
}

// IntentEngine returns an intent engine bound to the working trie.
func (sp *StateProcessor) IntentEngine(now int64) *intent.Engine {
	engine := intent.NewEngine()
	engine.SetState(sp.Manager())
	engine.SetEmitter(processorEmitter{sp: sp})
	engine.SetNowFunc(func() int64 { return now })
	engine.SetPauses(sp.pauses)
	return engine
}

// AuctionEngine returns an auction engine bound to the working trie.
func (sp *StateProcessor) AuctionEngine() (*auction.Engine, error) {
	engine := auction.NewEngine()
	engine.SetState(sp.Manager())
	engine.SetEmitter(processorEmitter{sp: sp})
	engine.SetPauses(sp.pauses)
	if err := engine.SetParams(sp.auctionParams); err != nil {
		return nil, err
	}
	return engine, nil
}

// SettlementEngine returns a settlement engine bound to the working trie.
func (sp *StateProcessor) SettlementEngine() *settlement.Engine {
	engine := settlement.NewEngine()
	engine.SetState(sp.Manager())
	engine.SetEmitter(processorEmitter{sp: sp})
	engine.SetPauses(sp.pauses)
	if sp.feeTreasury != nil {
		engine.SetFeeTreasury(*sp.feeTreasury)
	}
	return engine
}

// CommittedRoot returns the root hash of the last committed state.
func (sp *StateProcessor) CommittedRoot() common.Hash { return sp.committedRoot }

// PendingRoot hashes the working trie including uncommitted changes.
func (sp *StateProcessor) PendingRoot() common.Hash { return sp.Trie.Hash() }

// Rollback discards all pending trie changes and events, restoring the last
// committed root.
func (sp *StateProcessor) Rollback() error {
	sp.events = nil
	return sp.Trie.Reset(sp.committedRoot)
}

// Commit persists the pending trie changes and returns the new root together
// with the events produced since the previous commit.
func (sp *StateProcessor) Commit() (common.Hash, []types.Event, error) {
	sp.version++
	root, err := sp.Trie.Commit(sp.committedRoot, sp.version)
	if err != nil {
		sp.version--
		return common.Hash{}, nil, err
	}
	emitted := sp.events
	sp.events = nil
	sp.committedRoot = root
	return root, emitted, nil
}

// Balance reads an account balance from the working trie.
func (sp *StateProcessor) Balance(addr [20]byte, asset string) (*big.Int, error) {
	return sp.Manager().Balance(addr[:], asset)
}

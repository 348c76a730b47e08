package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"stealthswap/core/types"
	"stealthswap/native/auction"
	nativecommon "stealthswap/native/common"
	"stealthswap/native/intent"
	"stealthswap/native/settlement"
	"stealthswap/observability/metrics"
	"stealthswap/storage"
	"stealthswap/storage/trie"
)

// stateRootKey is the database key holding the latest committed state root.
var stateRootKey = []byte("stealthswap/state-root")

// EmptyStateRoot is the root hash of a state with no writes, i.e. a node that
// has not been bootstrapped yet.
var EmptyStateRoot = gethtypes.EmptyRootHash

// Node is the single entry point for protocol operations. It serializes all
// state mutations, samples the clock once per operation, and commits or rolls
// back the working trie around each engine call so every operation is atomic.
type Node struct {
	mu     sync.Mutex
	db     storage.Database
	state  *StateProcessor
	logger *slog.Logger
	tracer oteltrace.Tracer
	nowFn  func() int64

	pendingParams   *auction.Params
	pendingTreasury *[20]byte
	pendingPauses   nativecommon.PauseView

	eventsMu sync.RWMutex
	events   []types.Event
}

// NodeOption customises node construction.
type NodeOption func(*Node)

// WithLogger overrides the node logger.
func WithLogger(logger *slog.Logger) NodeOption {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithNowFunc overrides the node clock. Primarily used in tests.
func WithNowFunc(now func() int64) NodeOption {
	return func(n *Node) {
		if now != nil {
			n.nowFn = now
		}
	}
}

// WithAuctionParams overrides the auction schedule.
func WithAuctionParams(p auction.Params) NodeOption {
	return func(n *Node) { n.pendingParams = &p }
}

// WithFeeTreasury configures the forfeited-bond recipient.
func WithFeeTreasury(addr [20]byte) NodeOption {
	return func(n *Node) { n.pendingTreasury = &addr }
}

// WithPauses wires the administrative pause set.
func WithPauses(p nativecommon.PauseView) NodeOption {
	return func(n *Node) { n.pendingPauses = p }
}

// NewNode opens the state trie at the last committed root found in db and
// wires the state processor.
func NewNode(db storage.Database, opts ...NodeOption) (*Node, error) {
	root, err := db.Get(stateRootKey)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			return nil, fmt.Errorf("core: load state root: %w", err)
		}
		root = nil
	}
	tr, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("core: open state trie: %w", err)
	}
	node := &Node{
		db:     db,
		state:  NewStateProcessor(tr),
		logger: slog.Default(),
		tracer: otel.Tracer("stealthswap/core"),
		nowFn:  func() int64 { return time.Now().Unix() },
	}
	for _, opt := range opts {
		opt(node)
	}
	if node.pendingParams != nil {
		if err := node.state.SetAuctionParams(*node.pendingParams); err != nil {
			return nil, err
		}
	}
	if node.pendingTreasury != nil {
		node.state.SetFeeTreasury(*node.pendingTreasury)
	}
	if node.pendingPauses != nil {
		node.state.SetPauses(node.pendingPauses)
	}
	return node, nil
}

// CreateIntent locks the owner's funds and records a new swap intent.
func (n *Node) CreateIntent(ctx context.Context, owner [20]byte, inputAsset, outputAsset string, inputAmount, minReceive *big.Int, nonce [32]byte) (*intent.Intent, error) {
	var created *intent.Intent
	err := n.withOperation(ctx, "intent.create", func(now int64) error {
		record, err := n.state.IntentEngine(now).Create(owner, inputAsset, outputAsset, inputAmount, minReceive, nonce)
		if err != nil {
			return err
		}
		created = record
		return nil
	})
	return created, err
}

// CreateAuction starts the price auction for an active intent.
func (n *Node) CreateAuction(ctx context.Context, intentID [32]byte) (*auction.Auction, error) {
	var created *auction.Auction
	err := n.withOperation(ctx, "auction.create", func(now int64) error {
		engine, err := n.state.AuctionEngine()
		if err != nil {
			return err
		}
		record, err := engine.Create(intentID, now)
		if err != nil {
			return err
		}
		created = record
		return nil
	})
	return created, err
}

// ClaimAuction awards the auction to the solver at the current quote.
func (n *Node) ClaimAuction(ctx context.Context, auctionID [32]byte, solver [20]byte) (*auction.Auction, error) {
	var claimed *auction.Auction
	err := n.withOperation(ctx, "auction.claim", func(now int64) error {
		engine, err := n.state.AuctionEngine()
		if err != nil {
			return err
		}
		record, err := engine.Claim(auctionID, solver, now)
		if err != nil {
			return err
		}
		claimed = record
		return nil
	})
	return claimed, err
}

// CancelAuction withdraws an unclaimed auction on behalf of the intent owner.
func (n *Node) CancelAuction(ctx context.Context, auctionID [32]byte, caller [20]byte) (*auction.Auction, error) {
	var cancelled *auction.Auction
	err := n.withOperation(ctx, "auction.cancel", func(now int64) error {
		engine, err := n.state.AuctionEngine()
		if err != nil {
			return err
		}
		record, err := engine.Cancel(auctionID, caller)
		if err != nil {
			return err
		}
		cancelled = record
		return nil
	})
	return cancelled, err
}

// FillIntent settles an awarded intent atomically. On any failure the
// working trie resets to the committed root, so no leg applies alone.
func (n *Node) FillIntent(ctx context.Context, intentID, auctionID [32]byte, order settlement.Order, solver [20]byte) error {
	return n.withOperation(ctx, "intent.fill", func(now int64) error {
		return n.state.SettlementEngine().Fill(intentID, auctionID, order, solver, now)
	})
}

// SweepLapsedBond forfeits the bond of a winner whose settlement window
// closed without a fill.
func (n *Node) SweepLapsedBond(ctx context.Context, auctionID [32]byte) error {
	return n.withOperation(ctx, "auction.sweep_bond", func(now int64) error {
		return n.state.SettlementEngine().SweepLapsedBond(auctionID, now)
	})
}

// IntentByID loads an intent record.
func (n *Node) IntentByID(id [32]byte) (*intent.Intent, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	record, ok := n.state.Manager().IntentGet(id)
	if !ok {
		return nil, intent.ErrIntentNotFound
	}
	return record, nil
}

// AuctionByID loads an auction record.
func (n *Node) AuctionByID(id [32]byte) (*auction.Auction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	record, ok := n.state.Manager().AuctionGet(id)
	if !ok {
		return nil, auction.ErrAuctionNotFound
	}
	return record, nil
}

// AuctionForIntent resolves the auction attached to an intent, if any.
func (n *Node) AuctionForIntent(intentID [32]byte) (*auction.Auction, error) {
	return n.AuctionByID(auction.DeriveID(intentID))
}

// QuoteAt returns the auction quote at the supplied timestamp without
// touching state.
func (n *Node) QuoteAt(auctionID [32]byte, at int64) (*big.Int, error) {
	record, err := n.AuctionByID(auctionID)
	if err != nil {
		return nil, err
	}
	return auction.PriceAt(record, at), nil
}

// Balance reads an account balance.
func (n *Node) Balance(addr [20]byte, asset string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Balance(addr, asset)
}

// EscrowBalance reads the funds locked for an intent.
func (n *Node) EscrowBalance(intentID [32]byte, asset string) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Manager().EscrowBalance(intentID, asset)
}

// BondBalance reads the bond a solver has posted on an auction.
func (n *Node) BondBalance(auctionID [32]byte, solver [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Manager().BondBalance(auctionID, solver)
}

// Events returns all events committed since the node started.
func (n *Node) Events() []types.Event {
	n.eventsMu.RLock()
	defer n.eventsMu.RUnlock()
	out := make([]types.Event, len(n.events))
	copy(out, n.events)
	return out
}

// Bootstrap applies genesis-style setup through fn and commits the result.
// It is intended for first boot on an empty state root.
func (n *Node) Bootstrap(fn func(sp *StateProcessor) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := fn(n.state); err != nil {
		if rollbackErr := n.state.Rollback(); rollbackErr != nil {
			return fmt.Errorf("core: rollback after bootstrap failure: %v (original: %w)", rollbackErr, err)
		}
		return err
	}
	_, _, err := n.commitLocked()
	return err
}

// StateRoot returns the last committed state root.
func (n *Node) StateRoot() common.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.CommittedRoot()
}

// withOperation serializes the operation, samples the clock once, traces and
// meters the call, and commits on success or rolls back on failure.
func (n *Node) withOperation(ctx context.Context, name string, fn func(now int64) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	opID := uuid.NewString()
	now := n.nowFn()
	_, span := n.tracer.Start(ctx, name, oteltrace.WithAttributes(
		attribute.String("swap.op_id", opID),
		attribute.Int64("swap.op_time", now),
	))
	defer span.End()

	start := time.Now()
	err := fn(now)
	if err != nil {
		if rollbackErr := n.state.Rollback(); rollbackErr != nil {
			n.logger.Error("state rollback failed", "op", name, "opId", opID, "error", rollbackErr)
			span.SetStatus(codes.Error, rollbackErr.Error())
			metrics.RecordOperation(name, "rollback_failed", time.Since(start))
			return fmt.Errorf("core: rollback after %s failure: %v (original: %w)", name, rollbackErr, err)
		}
		n.logger.Info("operation rejected", "op", name, "opId", opID, "error", err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordOperation(name, "rejected", time.Since(start))
		return err
	}

	root, emitted, err := n.commitLocked()
	if err != nil {
		n.logger.Error("state commit failed", "op", name, "opId", opID, "error", err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordOperation(name, "commit_failed", time.Since(start))
		return err
	}
	n.logger.Info("operation committed", "op", name, "opId", opID, "root", root.Hex(), "events", len(emitted))
	metrics.RecordOperation(name, "ok", time.Since(start))
	for _, evt := range emitted {
		metrics.RecordEvent(evt.Type)
	}
	return nil
}

func (n *Node) commitLocked() (common.Hash, []types.Event, error) {
	root, emitted, err := n.state.Commit()
	if err != nil {
		return common.Hash{}, nil, err
	}
	if err := n.db.Put(stateRootKey, root.Bytes()); err != nil {
		return common.Hash{}, nil, fmt.Errorf("core: persist state root: %w", err)
	}
	if len(emitted) > 0 {
		n.eventsMu.Lock()
		n.events = append(n.events, emitted...)
		n.eventsMu.Unlock()
	}
	return root, emitted, nil
}

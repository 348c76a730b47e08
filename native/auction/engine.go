package auction

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"stealthswap/core/events"
	"stealthswap/core/types"
	"stealthswap/native/common"
	"stealthswap/native/intent"
)

var (
	// ErrAuctionExists is returned when an auction was already started for
	// the intent.
	ErrAuctionExists = errors.New("auction: already exists for intent")
	// ErrAuctionNotFound is returned when the referenced auction does not
	// exist in state.
	ErrAuctionNotFound = errors.New("auction: not found")
	// ErrAuctionNotStarted is returned when a claim arrives before the
	// auction window opens or against a non-Started auction.
	ErrAuctionNotStarted = errors.New("auction: not started")
	// ErrAuctionExpired is returned when a claim arrives after the decay
	// window closed.
	ErrAuctionExpired = errors.New("auction: expired")
	// ErrAuctionAlreadyClaimed is returned when a solver has already won
	// the auction.
	ErrAuctionAlreadyClaimed = errors.New("auction: already claimed")
	// ErrPriceBelowMinimum is returned when a quote would fall below the
	// auction floor.
	ErrPriceBelowMinimum = errors.New("auction: price below minimum")
	// ErrMathOverflow is returned when the starting quote computation
	// leaves the 64-bit amount domain.
	ErrMathOverflow = errors.New("auction: math overflow")
	// ErrIntentMismatch is returned when an auction does not belong to the
	// supplied intent.
	ErrIntentMismatch = errors.New("auction: intent mismatch")
	// ErrNotIntentOwner is returned when a cancellation is attempted by
	// anyone other than the intent owner.
	ErrNotIntentOwner = errors.New("auction: caller is not the intent owner")
	// ErrAuctionNotCancellable is returned when cancellation is attempted
	// on a claimed or terminal auction.
	ErrAuctionNotCancellable = errors.New("auction: not cancellable")
	// ErrInsufficientBond is returned when the claiming solver cannot
	// cover the bond collateral.
	ErrInsufficientBond = errors.New("auction: insufficient bond collateral")
)

type engineState interface {
	IntentGet(id [32]byte) (*intent.Intent, bool)
	AuctionPut(a *Auction) error
	AuctionGet(id [32]byte) (*Auction, bool)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	BondVaultAddress() [20]byte
	BondCredit(auctionID [32]byte, solver [20]byte, amount *big.Int) error
}

// Engine runs the descending-price auctions that award intents to solvers.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  common.PauseView
	params  Params
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
	}
}

// SetState wires the engine to a state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the emitter used for lifecycle events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the pause view used to gate auction operations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetParams overrides the auction schedule and bonding parameters.
func (e *Engine) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.params = p
	return nil
}

// Create starts the auction for an active intent. The starting quote is the
// intent's minimum receive amount marked up by the configured premium; the
// multiplication is overflow-checked against the 64-bit amount domain.
func (e *Engine) Create(intentID [32]byte, now int64) (*Auction, error) {
	if err := common.Guard(e.pauses, "auction"); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, errors.New("auction: engine state not configured")
	}
	record, ok := e.state.IntentGet(intentID)
	if !ok {
		return nil, intent.ErrIntentNotFound
	}
	if !record.Active {
		return nil, intent.ErrIntentInactive
	}
	if record.InputAmount == nil || record.InputAmount.Sign() <= 0 {
		return nil, intent.ErrInvalidInputAmount
	}
	if record.MinReceive == nil || record.MinReceive.Sign() <= 0 {
		return nil, intent.ErrInvalidMinReceive
	}
	id := DeriveID(intentID)
	if _, ok := e.state.AuctionGet(id); ok {
		return nil, ErrAuctionExists
	}

	startQuote, err := startQuoteFor(record.MinReceive, e.params.PremiumBps)
	if err != nil {
		return nil, err
	}
	auction := &Auction{
		ID:                  id,
		IntentID:            intentID,
		StartQuote:          startQuote,
		MinQuote:            new(big.Int).Set(record.MinReceive),
		StartTime:           now,
		EndTime:             now + e.params.DurationSecs,
		ExclusiveWindowSecs: e.params.ExclusiveWindowSecs,
		BondAsset:           e.params.BondAsset,
		BondAmount:          new(big.Int).Set(e.params.BondAmount),
		Status:              StatusStarted,
	}
	if err := e.state.AuctionPut(auction); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(auction))
	return auction, nil
}

// Claim awards the auction to the first solver willing to deliver the
// current quote. The solver posts the bond collateral into the bond vault
// and the claim fields are written exactly once.
func (e *Engine) Claim(auctionID [32]byte, solver [20]byte, now int64) (*Auction, error) {
	if err := common.Guard(e.pauses, "auction"); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, errors.New("auction: engine state not configured")
	}
	auction, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return nil, ErrAuctionNotFound
	}
	if auction.Claimed() {
		return nil, ErrAuctionAlreadyClaimed
	}
	if auction.Status != StatusStarted {
		return nil, ErrAuctionNotStarted
	}
	if now < auction.StartTime {
		return nil, ErrAuctionNotStarted
	}
	if now > auction.EndTime {
		return nil, ErrAuctionExpired
	}
	record, ok := e.state.IntentGet(auction.IntentID)
	if !ok {
		return nil, intent.ErrIntentNotFound
	}
	if !record.Active {
		return nil, intent.ErrIntentInactive
	}
	price := PriceAt(auction, now)
	if price.Cmp(auction.MinQuote) < 0 {
		return nil, ErrPriceBelowMinimum
	}

	if err := e.lockBond(auctionID, solver, auction.BondAsset, auction.BondAmount); err != nil {
		return nil, err
	}

	claimed := solver
	auction.ClaimedBy = &claimed
	auction.ClaimPrice = price
	auction.ClaimExpiry = now + auction.ExclusiveWindowSecs
	auction.Status = StatusAwarded
	if err := e.state.AuctionPut(auction); err != nil {
		return nil, err
	}
	e.emit(NewClaimedEvent(auction, now))
	return auction, nil
}

// Cancel withdraws an unclaimed auction. Only the intent owner may cancel,
// and only while no solver has claimed. The intent stays active; cancelling
// the auction does not release the escrow.
func (e *Engine) Cancel(auctionID [32]byte, caller [20]byte) (*Auction, error) {
	if err := common.Guard(e.pauses, "auction"); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, errors.New("auction: engine state not configured")
	}
	auction, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return nil, ErrAuctionNotFound
	}
	if auction.Status != StatusStarted || auction.Claimed() {
		return nil, ErrAuctionNotCancellable
	}
	record, ok := e.state.IntentGet(auction.IntentID)
	if !ok {
		return nil, intent.ErrIntentNotFound
	}
	if record.Owner != caller {
		return nil, ErrNotIntentOwner
	}
	auction.Status = StatusCancelled
	if err := e.state.AuctionPut(auction); err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(auction))
	return auction, nil
}

// Get loads an auction by identifier.
func (e *Engine) Get(auctionID [32]byte) (*Auction, error) {
	if e.state == nil {
		return nil, errors.New("auction: engine state not configured")
	}
	auction, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return auction, nil
}

func startQuoteFor(minReceive *big.Int, premiumBps uint64) (*big.Int, error) {
	base, overflow := uint256.FromBig(minReceive)
	if overflow {
		return nil, ErrMathOverflow
	}
	multiplier := uint256.NewInt(basisPointsDenominator + premiumBps)
	product, overflow := new(uint256.Int).MulOverflow(base, multiplier)
	if overflow {
		return nil, ErrMathOverflow
	}
	quote := product.Div(product, uint256.NewInt(basisPointsDenominator))
	if !quote.IsUint64() {
		return nil, ErrMathOverflow
	}
	return quote.ToBig(), nil
}

func (e *Engine) lockBond(auctionID [32]byte, solver [20]byte, asset string, amount *big.Int) error {
	solverAccount, err := e.state.GetAccount(solver[:])
	if err != nil {
		return err
	}
	if solverAccount.Balance(asset).Cmp(amount) < 0 {
		return ErrInsufficientBond
	}
	vault := e.state.BondVaultAddress()
	vaultAccount, err := e.state.GetAccount(vault[:])
	if err != nil {
		return err
	}
	solverAccount.SetBalance(asset, new(big.Int).Sub(solverAccount.Balance(asset), amount))
	vaultAccount.SetBalance(asset, new(big.Int).Add(vaultAccount.Balance(asset), amount))
	if err := e.state.PutAccount(solver[:], solverAccount); err != nil {
		return err
	}
	if err := e.state.PutAccount(vault[:], vaultAccount); err != nil {
		return err
	}
	return e.state.BondCredit(auctionID, solver, amount)
}

func (e *Engine) emit(evt *types.Event) {
	if evt == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: evt})
}

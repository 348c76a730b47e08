package settlement

import (
	"errors"
	"math/big"

	"stealthswap/core/events"
	"stealthswap/core/types"
	"stealthswap/native/auction"
	"stealthswap/native/common"
	"stealthswap/native/intent"
)

var (
	// ErrIntentUserMismatch is returned when the order's user differs from
	// the intent owner.
	ErrIntentUserMismatch = errors.New("settlement: order user does not match intent owner")
	// ErrIntentInputAssetMismatch is returned when the order's input asset
	// differs from the intent.
	ErrIntentInputAssetMismatch = errors.New("settlement: order input asset does not match intent")
	// ErrIntentOutputAssetMismatch is returned when the order's output
	// asset differs from the intent.
	ErrIntentOutputAssetMismatch = errors.New("settlement: order output asset does not match intent")
	// ErrIntentInputAmountMismatch is returned when the order's input
	// amount differs from the intent.
	ErrIntentInputAmountMismatch = errors.New("settlement: order input amount does not match intent")
	// ErrIntentMinReceiveMismatch is returned when the order's minimum
	// receive differs from the intent.
	ErrIntentMinReceiveMismatch = errors.New("settlement: order min receive does not match intent")
	// ErrInsufficientOutput is returned when the delivered amount falls
	// below the intent's minimum receive.
	ErrInsufficientOutput = errors.New("settlement: output below intent minimum")
	// ErrInsufficientSolverBalance is returned when the solver cannot
	// cover the delivered output amount.
	ErrInsufficientSolverBalance = errors.New("settlement: insufficient solver balance")
	// ErrInsufficientUserEscrow is returned when the intent's escrow vault
	// does not hold the full input amount.
	ErrInsufficientUserEscrow = errors.New("settlement: insufficient user escrow")
	// ErrAuctionNotAwarded is returned when a fill targets an auction that
	// no solver has won.
	ErrAuctionNotAwarded = errors.New("settlement: auction not awarded")
	// ErrAuctionNotSolver is returned when the filling party is not the
	// auction winner.
	ErrAuctionNotSolver = errors.New("settlement: caller is not the winning solver")
	// ErrTimeExceeded is returned when the fill arrives after the winner's
	// settlement window closed.
	ErrTimeExceeded = errors.New("settlement: settlement window exceeded")
	// ErrExclusiveWindowOpen is returned when a bond sweep is attempted
	// while the winning solver may still settle.
	ErrExclusiveWindowOpen = errors.New("settlement: exclusive window still open")
	// ErrNoFeeTreasury is returned when a bond sweep runs without a
	// configured treasury address.
	ErrNoFeeTreasury = errors.New("settlement: fee treasury not configured")
)

type engineState interface {
	IntentGet(id [32]byte) (*intent.Intent, bool)
	IntentPut(i *intent.Intent) error
	AuctionGet(id [32]byte) (*auction.Auction, bool)
	AuctionPut(a *auction.Auction) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	EscrowVaultAddress(intentID [32]byte) [20]byte
	EscrowBalance(intentID [32]byte, asset string) (*big.Int, error)
	EscrowDebit(intentID [32]byte, asset string, amount *big.Int) error
	BondVaultAddress() [20]byte
	BondBalance(auctionID [32]byte, solver [20]byte) (*big.Int, error)
	BondDebit(auctionID [32]byte, solver [20]byte, amount *big.Int) error
}

// Engine performs the atomic exchange that settles an awarded intent and the
// bond forfeiture path for winners that never settle.
type Engine struct {
	state       engineState
	emitter     events.Emitter
	pauses      common.PauseView
	feeTreasury *[20]byte
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
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

// SetPauses wires the pause view used to gate settlement operations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetFeeTreasury configures the address that receives forfeited bonds.
func (e *Engine) SetFeeTreasury(addr [20]byte) {
	treasury := addr
	e.feeTreasury = &treasury
}

// Fill settles an awarded intent. The winning solver delivers ReceiveAmount
// of the output asset to the user, collects the escrowed input and its bond
// back, and the intent deactivates. Either every leg applies or none does;
// callers are expected to discard pending state on error.
func (e *Engine) Fill(intentID, auctionID [32]byte, order Order, solver [20]byte, now int64) error {
	if err := common.Guard(e.pauses, "settlement"); err != nil {
		return err
	}
	if e.state == nil {
		return errors.New("settlement: engine state not configured")
	}
	record, ok := e.state.IntentGet(intentID)
	if !ok {
		return intent.ErrIntentNotFound
	}
	if !record.Active {
		return intent.ErrIntentInactive
	}
	auc, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return auction.ErrAuctionNotFound
	}
	if auc.IntentID != intentID {
		return auction.ErrIntentMismatch
	}
	if err := matchOrder(order, record); err != nil {
		return err
	}
	if auc.Status != auction.StatusAwarded {
		return ErrAuctionNotAwarded
	}
	if auc.ClaimedBy == nil || *auc.ClaimedBy != solver {
		return ErrAuctionNotSolver
	}
	if order.ReceiveAmount == nil || order.ReceiveAmount.Cmp(record.MinReceive) < 0 {
		return ErrInsufficientOutput
	}
	if auc.ClaimPrice == nil || order.ReceiveAmount.Cmp(auc.ClaimPrice) < 0 {
		return auction.ErrPriceBelowMinimum
	}
	if now >= auc.EndTime+auc.ExclusiveWindowSecs {
		return ErrTimeExceeded
	}

	// Check both funding legs before moving anything.
	solverAccount, err := e.state.GetAccount(solver[:])
	if err != nil {
		return err
	}
	if solverAccount.Balance(record.OutputAsset).Cmp(order.ReceiveAmount) < 0 {
		return ErrInsufficientSolverBalance
	}
	escrowed, err := e.state.EscrowBalance(intentID, record.InputAsset)
	if err != nil {
		return err
	}
	if escrowed.Cmp(record.InputAmount) < 0 {
		return ErrInsufficientUserEscrow
	}

	// Solver pays the user the output amount.
	if err := e.transfer(solver, record.Owner, record.OutputAsset, order.ReceiveAmount); err != nil {
		return err
	}
	// The escrowed input moves to the solver.
	escrowVault := e.state.EscrowVaultAddress(intentID)
	if err := e.transfer(escrowVault, solver, record.InputAsset, record.InputAmount); err != nil {
		return err
	}
	if err := e.state.EscrowDebit(intentID, record.InputAsset, record.InputAmount); err != nil {
		return err
	}
	// Any residual escrow returns to the user and closes the vault.
	residual, err := e.state.EscrowBalance(intentID, record.InputAsset)
	if err != nil {
		return err
	}
	if residual.Sign() > 0 {
		if err := e.transfer(escrowVault, record.Owner, record.InputAsset, residual); err != nil {
			return err
		}
		if err := e.state.EscrowDebit(intentID, record.InputAsset, residual); err != nil {
			return err
		}
	}
	// The winner's bond comes back in full.
	if err := e.refundBond(auc, solver); err != nil {
		return err
	}

	auc.Status = auction.StatusEnded
	if err := e.state.AuctionPut(auc); err != nil {
		return err
	}
	record.Active = false
	if err := e.state.IntentPut(record); err != nil {
		return err
	}
	e.emit(NewFilledEvent(record, auc, order.ReceiveAmount, solver, now))
	return nil
}

// SweepLapsedBond forfeits the winner's bond to the fee treasury after the
// settlement window closed without a fill. The auction ends; the intent
// stays active and keeps its escrow.
func (e *Engine) SweepLapsedBond(auctionID [32]byte, now int64) error {
	if err := common.Guard(e.pauses, "settlement"); err != nil {
		return err
	}
	if e.state == nil {
		return errors.New("settlement: engine state not configured")
	}
	if e.feeTreasury == nil {
		return ErrNoFeeTreasury
	}
	auc, ok := e.state.AuctionGet(auctionID)
	if !ok {
		return auction.ErrAuctionNotFound
	}
	if auc.Status != auction.StatusAwarded || auc.ClaimedBy == nil {
		return ErrAuctionNotAwarded
	}
	if now < auc.EndTime+auc.ExclusiveWindowSecs {
		return ErrExclusiveWindowOpen
	}
	solver := *auc.ClaimedBy
	bond, err := e.state.BondBalance(auc.ID, solver)
	if err != nil {
		return err
	}
	if bond.Sign() > 0 {
		vault := e.state.BondVaultAddress()
		if err := e.transfer(vault, *e.feeTreasury, auc.BondAsset, bond); err != nil {
			return err
		}
		if err := e.state.BondDebit(auc.ID, solver, bond); err != nil {
			return err
		}
	}
	auc.Status = auction.StatusEnded
	if err := e.state.AuctionPut(auc); err != nil {
		return err
	}
	e.emit(NewBondSweptEvent(auc, solver, bond, now))
	return nil
}

func matchOrder(order Order, record *intent.Intent) error {
	if order.User != record.Owner {
		return ErrIntentUserMismatch
	}
	if order.InputAsset != record.InputAsset {
		return ErrIntentInputAssetMismatch
	}
	if order.OutputAsset != record.OutputAsset {
		return ErrIntentOutputAssetMismatch
	}
	if order.InputAmount == nil || order.InputAmount.Cmp(record.InputAmount) != 0 {
		return ErrIntentInputAmountMismatch
	}
	if order.MinReceive == nil || order.MinReceive.Cmp(record.MinReceive) != 0 {
		return ErrIntentMinReceiveMismatch
	}
	return nil
}

func (e *Engine) refundBond(auc *auction.Auction, solver [20]byte) error {
	bond, err := e.state.BondBalance(auc.ID, solver)
	if err != nil {
		return err
	}
	if bond.Sign() == 0 {
		return nil
	}
	vault := e.state.BondVaultAddress()
	if err := e.transfer(vault, solver, auc.BondAsset, bond); err != nil {
		return err
	}
	return e.state.BondDebit(auc.ID, solver, bond)
}

func (e *Engine) transfer(from, to [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	fromAccount, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	if fromAccount.Balance(asset).Cmp(amount) < 0 {
		return errors.New("settlement: transfer exceeds balance")
	}
	toAccount, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAccount.SetBalance(asset, new(big.Int).Sub(fromAccount.Balance(asset), amount))
	toAccount.SetBalance(asset, new(big.Int).Add(toAccount.Balance(asset), amount))
	if err := e.state.PutAccount(from[:], fromAccount); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAccount)
}

func (e *Engine) emit(evt *types.Event) {
	if evt == nil {
		return
	}
	e.emitter.Emit(settlementEvent{evt: evt})
}

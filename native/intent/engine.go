package intent

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"stealthswap/core/events"
	"stealthswap/core/types"
	"stealthswap/native/common"
)

var (
	// ErrInvalidInputAmount is returned when an intent is created with a
	// non-positive input amount.
	ErrInvalidInputAmount = errors.New("intent: input amount must be positive")
	// ErrInvalidMinReceive is returned when an intent is created with a
	// non-positive minimum receive amount.
	ErrInvalidMinReceive = errors.New("intent: min receive must be positive")
	// ErrInsufficientBalance is returned when the owner cannot cover the
	// escrow deposit for the intent's input amount.
	ErrInsufficientBalance = errors.New("intent: insufficient balance")
	// ErrIntentNotFound is returned when the referenced intent does not
	// exist in state.
	ErrIntentNotFound = errors.New("intent: not found")
	// ErrIntentInactive is returned when an operation requires an active
	// intent but the intent was already filled.
	ErrIntentInactive = errors.New("intent: inactive")
	// ErrSameAsset is returned when the input and output assets of an
	// intent are identical.
	ErrSameAsset = errors.New("intent: input and output assets must differ")
	// ErrUnknownAsset is returned when an intent references an asset that
	// has not been registered.
	ErrUnknownAsset = errors.New("intent: unknown asset")
	// ErrIntentMismatch is returned when an existing intent record under
	// the derived identifier differs from the resubmitted definition.
	ErrIntentMismatch = errors.New("intent: existing intent does not match definition")
)

type engineState interface {
	IntentPut(i *Intent) error
	IntentGet(id [32]byte) (*Intent, bool)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	AssetExists(symbol string) bool
	EscrowVaultAddress(intentID [32]byte) [20]byte
	EscrowCredit(intentID [32]byte, asset string, amount *big.Int) error
}

// Engine exposes the intent lifecycle operations backed by a pluggable state
// interface so it can run against the node's trie-backed manager in
// production and lightweight mocks in tests.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	pauses  common.PauseView
}

func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, nowFn: func() int64 { return time.Now().Unix() }}
}

// SetState wires the engine to a state backend.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the emitter used for lifecycle events. Passing nil
// restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now != nil {
		e.nowFn = now
	}
}

// SetPauses wires the pause view used to gate intent operations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

func (e *Engine) now() int64 { return e.nowFn() }

// Create validates the intent definition, locks the owner's input funds in
// the intent escrow vault and persists the intent record. Resubmitting an
// identical definition with the same nonce returns the stored intent without
// moving funds again.
func (e *Engine) Create(owner [20]byte, inputAsset, outputAsset string, inputAmount, minReceive *big.Int, nonce [32]byte) (*Intent, error) {
	if err := common.Guard(e.pauses, "intent"); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, errors.New("intent: engine state not configured")
	}
	inAsset, err := NormalizeAsset(inputAsset)
	if err != nil {
		return nil, err
	}
	outAsset, err := NormalizeAsset(outputAsset)
	if err != nil {
		return nil, err
	}
	if inAsset == outAsset {
		return nil, ErrSameAsset
	}
	if !e.state.AssetExists(inAsset) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, inAsset)
	}
	if !e.state.AssetExists(outAsset) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, outAsset)
	}
	if inputAmount == nil || inputAmount.Sign() <= 0 {
		return nil, ErrInvalidInputAmount
	}
	if !inputAmount.IsUint64() {
		return nil, ErrInvalidInputAmount
	}
	if minReceive == nil || minReceive.Sign() <= 0 {
		return nil, ErrInvalidMinReceive
	}
	if !minReceive.IsUint64() {
		return nil, ErrInvalidMinReceive
	}

	id := DeriveID(owner, inAsset, outAsset, nonce)
	if existing, ok := e.state.IntentGet(id); ok {
		if existing.Owner != owner || existing.InputAsset != inAsset || existing.OutputAsset != outAsset ||
			existing.InputAmount.Cmp(inputAmount) != 0 || existing.MinReceive.Cmp(minReceive) != 0 {
			return nil, ErrIntentMismatch
		}
		return existing, nil
	}

	if err := e.lockEscrow(owner, id, inAsset, inputAmount); err != nil {
		return nil, err
	}

	record := &Intent{
		ID:          id,
		Owner:       owner,
		InputAsset:  inAsset,
		OutputAsset: outAsset,
		InputAmount: new(big.Int).Set(inputAmount),
		MinReceive:  new(big.Int).Set(minReceive),
		Active:      true,
		CreatedAt:   e.now(),
	}
	if err := e.state.IntentPut(record); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(record))
	return record, nil
}

// Get loads an intent by identifier.
func (e *Engine) Get(id [32]byte) (*Intent, error) {
	if e.state == nil {
		return nil, errors.New("intent: engine state not configured")
	}
	record, ok := e.state.IntentGet(id)
	if !ok {
		return nil, ErrIntentNotFound
	}
	return record, nil
}

func (e *Engine) lockEscrow(owner [20]byte, id [32]byte, asset string, amount *big.Int) error {
	ownerAccount, err := e.state.GetAccount(owner[:])
	if err != nil {
		return err
	}
	if ownerAccount.Balance(asset).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	vault := e.state.EscrowVaultAddress(id)
	vaultAccount, err := e.state.GetAccount(vault[:])
	if err != nil {
		return err
	}
	ownerAccount.SetBalance(asset, new(big.Int).Sub(ownerAccount.Balance(asset), amount))
	vaultAccount.SetBalance(asset, new(big.Int).Add(vaultAccount.Balance(asset), amount))
	if err := e.state.PutAccount(owner[:], ownerAccount); err != nil {
		return err
	}
	if err := e.state.PutAccount(vault[:], vaultAccount); err != nil {
		return err
	}
	return e.state.EscrowCredit(id, asset, amount)
}

func (e *Engine) emit(evt *types.Event) {
	if evt == nil {
		return
	}
	e.emitter.Emit(intentEvent{evt: evt})
}

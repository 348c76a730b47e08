package settlement

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"stealthswap/core/events"
	"stealthswap/core/types"
	"stealthswap/native/auction"
	"stealthswap/native/intent"
)

type mockState struct {
	intents  map[[32]byte]*intent.Intent
	auctions map[[32]byte]*auction.Auction
	accounts map[string]*types.Account
	escrow   map[string]*big.Int
	bonds    map[string]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		intents:  make(map[[32]byte]*intent.Intent),
		auctions: make(map[[32]byte]*auction.Auction),
		accounts: make(map[string]*types.Account),
		escrow:   make(map[string]*big.Int),
		bonds:    make(map[string]*big.Int),
	}
}

func (m *mockState) IntentGet(id [32]byte) (*intent.Intent, bool) {
	record, ok := m.intents[id]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

func (m *mockState) IntentPut(i *intent.Intent) error {
	m.intents[i.ID] = i.Clone()
	return nil
}

func (m *mockState) AuctionGet(id [32]byte) (*auction.Auction, bool) {
	record, ok := m.auctions[id]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

func (m *mockState) AuctionPut(a *auction.Auction) error {
	m.auctions[a.ID] = a.Clone()
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	if account, ok := m.accounts[string(addr)]; ok {
		return account.Clone(), nil
	}
	return types.NewAccount(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	m.accounts[string(addr)] = account.Clone()
	return nil
}

func (m *mockState) EscrowVaultAddress(intentID [32]byte) [20]byte {
	var addr [20]byte
	copy(addr[:], intentID[:20])
	addr[0] = 0xee
	return addr
}

func escrowLedgerKey(intentID [32]byte, asset string) string {
	return hex.EncodeToString(intentID[:]) + "/" + asset
}

func (m *mockState) EscrowBalance(intentID [32]byte, asset string) (*big.Int, error) {
	if current, ok := m.escrow[escrowLedgerKey(intentID, asset)]; ok {
		return new(big.Int).Set(current), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) EscrowDebit(intentID [32]byte, asset string, amount *big.Int) error {
	key := escrowLedgerKey(intentID, asset)
	current, ok := m.escrow[key]
	if !ok || current.Cmp(amount) < 0 {
		return errors.New("mock: escrow debit exceeds balance")
	}
	m.escrow[key] = new(big.Int).Sub(current, amount)
	return nil
}

func (m *mockState) BondVaultAddress() [20]byte {
	return newTestAddress(0xbb)
}

func bondLedgerKey(auctionID [32]byte, solver [20]byte) string {
	return hex.EncodeToString(auctionID[:]) + "/" + hex.EncodeToString(solver[:])
}

func (m *mockState) BondBalance(auctionID [32]byte, solver [20]byte) (*big.Int, error) {
	if current, ok := m.bonds[bondLedgerKey(auctionID, solver)]; ok {
		return new(big.Int).Set(current), nil
	}
	return big.NewInt(0), nil
}

func (m *mockState) BondDebit(auctionID [32]byte, solver [20]byte, amount *big.Int) error {
	key := bondLedgerKey(auctionID, solver)
	current, ok := m.bonds[key]
	if !ok || current.Cmp(amount) < 0 {
		return errors.New("mock: bond debit exceeds balance")
	}
	m.bonds[key] = new(big.Int).Sub(current, amount)
	return nil
}

func (m *mockState) setBalance(addr [20]byte, asset string, amount int64) {
	account, _ := m.GetAccount(addr[:])
	account.SetBalance(asset, big.NewInt(amount))
	m.accounts[string(addr[:])] = account
}

func (m *mockState) balance(addr [20]byte, asset string) *big.Int {
	account, _ := m.GetAccount(addr[:])
	return account.Balance(asset)
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type settlementEnv struct {
	state   *mockState
	engine  *Engine
	emitter *capturingEmitter
	intent  *intent.Intent
	auction *auction.Auction
	user    [20]byte
	solver  [20]byte
	order   Order
}

// setupEnv builds an awarded auction over an escrowed intent: min receive
// 100, claimed at t=1060 for 105, decay window [1000, 1120], exclusive
// window 30s.
func setupEnv(t *testing.T) *settlementEnv {
	t.Helper()
	state := newMockState()
	user := newTestAddress(0x11)
	solver := newTestAddress(0x99)

	record := &intent.Intent{
		ID:          [32]byte{0xaa},
		Owner:       user,
		InputAsset:  "USDX",
		OutputAsset: "ETHX",
		InputAmount: big.NewInt(1000),
		MinReceive:  big.NewInt(100),
		Active:      true,
	}
	state.intents[record.ID] = record

	vault := state.EscrowVaultAddress(record.ID)
	state.setBalance(vault, "USDX", 1000)
	state.escrow[escrowLedgerKey(record.ID, "USDX")] = big.NewInt(1000)

	claimed := solver
	auc := &auction.Auction{
		ID:                  auction.DeriveID(record.ID),
		IntentID:            record.ID,
		StartQuote:          big.NewInt(110),
		MinQuote:            big.NewInt(100),
		StartTime:           1000,
		EndTime:             1120,
		ExclusiveWindowSecs: 30,
		BondAsset:           "SWP",
		BondAmount:          big.NewInt(1_000_000),
		ClaimedBy:           &claimed,
		ClaimPrice:          big.NewInt(105),
		ClaimExpiry:         1090,
		Status:              auction.StatusAwarded,
	}
	state.auctions[auc.ID] = auc
	state.setBalance(state.BondVaultAddress(), "SWP", 1_000_000)
	state.bonds[bondLedgerKey(auc.ID, solver)] = big.NewInt(1_000_000)

	state.setBalance(solver, "ETHX", 500)

	engine := NewEngine()
	engine.SetState(state)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)
	engine.SetFeeTreasury(newTestAddress(0xfe))

	return &settlementEnv{
		state:   state,
		engine:  engine,
		emitter: emitter,
		intent:  record,
		auction: auc,
		user:    user,
		solver:  solver,
		order: Order{
			User:          user,
			InputAsset:    "USDX",
			OutputAsset:   "ETHX",
			InputAmount:   big.NewInt(1000),
			MinReceive:    big.NewInt(100),
			ReceiveAmount: big.NewInt(105),
		},
	}
}

func TestFillSettlesAllLegs(t *testing.T) {
	env := setupEnv(t)

	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1070); err != nil {
		t.Fatalf("fill: %v", err)
	}

	// User received the output amount.
	if got := env.state.balance(env.user, "ETHX"); got.Cmp(big.NewInt(105)) != 0 {
		t.Fatalf("expected user to receive 105 ETHX, got %s", got)
	}
	// Solver received the escrowed input and its bond back.
	if got := env.state.balance(env.solver, "USDX"); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected solver to receive 1000 USDX, got %s", got)
	}
	if got := env.state.balance(env.solver, "SWP"); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("expected bond refunded, got %s", got)
	}
	if got := env.state.balance(env.solver, "ETHX"); got.Cmp(big.NewInt(395)) != 0 {
		t.Fatalf("expected solver ETHX reduced to 395, got %s", got)
	}
	// Escrow is fully drained.
	escrowed, _ := env.state.EscrowBalance(env.intent.ID, "USDX")
	if escrowed.Sign() != 0 {
		t.Fatalf("expected escrow closed, got %s", escrowed)
	}
	// Intent flipped inactive, auction ended.
	record, _ := env.state.IntentGet(env.intent.ID)
	if record.Active {
		t.Fatalf("expected intent inactive after fill")
	}
	auc, _ := env.state.AuctionGet(env.auction.ID)
	if auc.Status != auction.StatusEnded {
		t.Fatalf("expected auction ended, got %v", auc.Status)
	}

	if len(env.emitter.events) != 1 || env.emitter.events[0].EventType() != EventTypeIntentFilled {
		t.Fatalf("expected a single intent.filled event")
	}
}

func TestFillRejectsOrderMismatches(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(o *Order)
		want   error
	}{
		{"user", func(o *Order) { o.User = newTestAddress(0x42) }, ErrIntentUserMismatch},
		{"inputAsset", func(o *Order) { o.InputAsset = "ETHX" }, ErrIntentInputAssetMismatch},
		{"outputAsset", func(o *Order) { o.OutputAsset = "USDX" }, ErrIntentOutputAssetMismatch},
		{"inputAmount", func(o *Order) { o.InputAmount = big.NewInt(999) }, ErrIntentInputAmountMismatch},
		{"minReceive", func(o *Order) { o.MinReceive = big.NewInt(101) }, ErrIntentMinReceiveMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupEnv(t)
			order := env.order.Clone()
			tc.mutate(&order)
			if err := env.engine.Fill(env.intent.ID, env.auction.ID, order, env.solver, 1070); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestFillRejectsWrongSolver(t *testing.T) {
	env := setupEnv(t)
	impostor := newTestAddress(0x66)
	env.state.setBalance(impostor, "ETHX", 500)

	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, impostor, 1070); !errors.Is(err, ErrAuctionNotSolver) {
		t.Fatalf("expected ErrAuctionNotSolver, got %v", err)
	}
}

func TestFillRejectsUnawardedAuction(t *testing.T) {
	env := setupEnv(t)
	auc := env.state.auctions[env.auction.ID]
	auc.Status = auction.StatusStarted
	auc.ClaimedBy = nil
	auc.ClaimPrice = nil

	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1070); !errors.Is(err, ErrAuctionNotAwarded) {
		t.Fatalf("expected ErrAuctionNotAwarded, got %v", err)
	}
}

func TestFillRejectsOutputBelowMinimum(t *testing.T) {
	env := setupEnv(t)
	order := env.order.Clone()
	order.ReceiveAmount = big.NewInt(99)

	if err := env.engine.Fill(env.intent.ID, env.auction.ID, order, env.solver, 1070); !errors.Is(err, ErrInsufficientOutput) {
		t.Fatalf("expected ErrInsufficientOutput, got %v", err)
	}
}

func TestFillRejectsOutputBelowClaimPrice(t *testing.T) {
	env := setupEnv(t)
	order := env.order.Clone()
	// Above the intent minimum but below the price locked at claim time.
	order.ReceiveAmount = big.NewInt(102)

	if err := env.engine.Fill(env.intent.ID, env.auction.ID, order, env.solver, 1070); !errors.Is(err, auction.ErrPriceBelowMinimum) {
		t.Fatalf("expected ErrPriceBelowMinimum, got %v", err)
	}
}

func TestFillRejectsAfterSettlementWindow(t *testing.T) {
	env := setupEnv(t)

	// end_time + exclusive window = 1150; the boundary instant is late.
	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1150); !errors.Is(err, ErrTimeExceeded) {
		t.Fatalf("expected ErrTimeExceeded, got %v", err)
	}
	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1149); err != nil {
		t.Fatalf("fill just inside window: %v", err)
	}
}

func TestFillRejectsUnderfundedSolver(t *testing.T) {
	env := setupEnv(t)
	env.state.setBalance(env.solver, "ETHX", 50)

	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1070); !errors.Is(err, ErrInsufficientSolverBalance) {
		t.Fatalf("expected ErrInsufficientSolverBalance, got %v", err)
	}
}

func TestFillRejectsDrainedEscrow(t *testing.T) {
	env := setupEnv(t)
	env.state.escrow[escrowLedgerKey(env.intent.ID, "USDX")] = big.NewInt(10)

	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1070); !errors.Is(err, ErrInsufficientUserEscrow) {
		t.Fatalf("expected ErrInsufficientUserEscrow, got %v", err)
	}
}

func TestFillRejectsForeignAuction(t *testing.T) {
	env := setupEnv(t)
	auc := env.state.auctions[env.auction.ID]
	auc.IntentID = [32]byte{0xdd}

	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1070); !errors.Is(err, auction.ErrIntentMismatch) {
		t.Fatalf("expected ErrIntentMismatch, got %v", err)
	}
}

func TestFillRejectsSecondAttempt(t *testing.T) {
	env := setupEnv(t)
	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1070); err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1071); !errors.Is(err, intent.ErrIntentInactive) {
		t.Fatalf("expected ErrIntentInactive on refill, got %v", err)
	}
}

func TestFillReturnsResidualEscrowToUser(t *testing.T) {
	env := setupEnv(t)
	vault := env.state.EscrowVaultAddress(env.intent.ID)
	env.state.setBalance(vault, "USDX", 1200)
	env.state.escrow[escrowLedgerKey(env.intent.ID, "USDX")] = big.NewInt(1200)

	if err := env.engine.Fill(env.intent.ID, env.auction.ID, env.order, env.solver, 1070); err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got := env.state.balance(env.user, "USDX"); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected residual 200 USDX returned to user, got %s", got)
	}
	if got := env.state.balance(env.solver, "USDX"); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected solver to receive exactly 1000 USDX, got %s", got)
	}
}

func TestSweepLapsedBondForfeitsToTreasury(t *testing.T) {
	env := setupEnv(t)
	treasury := newTestAddress(0xfe)

	if err := env.engine.SweepLapsedBond(env.auction.ID, 1149); !errors.Is(err, ErrExclusiveWindowOpen) {
		t.Fatalf("expected ErrExclusiveWindowOpen before deadline, got %v", err)
	}
	if err := env.engine.SweepLapsedBond(env.auction.ID, 1150); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if got := env.state.balance(treasury, "SWP"); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("expected treasury to hold forfeited bond, got %s", got)
	}
	bond, _ := env.state.BondBalance(env.auction.ID, env.solver)
	if bond.Sign() != 0 {
		t.Fatalf("expected bond ledger cleared, got %s", bond)
	}
	auc, _ := env.state.AuctionGet(env.auction.ID)
	if auc.Status != auction.StatusEnded {
		t.Fatalf("expected auction ended after sweep, got %v", auc.Status)
	}
	// The intent survives a sweep and keeps its escrow.
	record, _ := env.state.IntentGet(env.intent.ID)
	if !record.Active {
		t.Fatalf("expected intent to stay active after sweep")
	}
	escrowed, _ := env.state.EscrowBalance(env.intent.ID, "USDX")
	if escrowed.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected escrow untouched by sweep, got %s", escrowed)
	}

	if err := env.engine.SweepLapsedBond(env.auction.ID, 1151); !errors.Is(err, ErrAuctionNotAwarded) {
		t.Fatalf("expected ErrAuctionNotAwarded on second sweep, got %v", err)
	}
}

func TestSweepRequiresTreasury(t *testing.T) {
	env := setupEnv(t)
	engine := NewEngine()
	engine.SetState(env.state)

	if err := engine.SweepLapsedBond(env.auction.ID, 1150); !errors.Is(err, ErrNoFeeTreasury) {
		t.Fatalf("expected ErrNoFeeTreasury, got %v", err)
	}
}

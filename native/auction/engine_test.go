package auction

import (
	"encoding/hex"
	"errors"
	"math"
	"math/big"
	"testing"

	"stealthswap/core/events"
	"stealthswap/core/types"
	"stealthswap/native/intent"
)

type mockState struct {
	intents  map[[32]byte]*intent.Intent
	auctions map[[32]byte]*Auction
	accounts map[string]*types.Account
	bonds    map[string]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		intents:  make(map[[32]byte]*intent.Intent),
		auctions: make(map[[32]byte]*Auction),
		accounts: make(map[string]*types.Account),
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

func (m *mockState) AuctionPut(a *Auction) error {
	m.auctions[a.ID] = a.Clone()
	return nil
}

func (m *mockState) AuctionGet(id [32]byte) (*Auction, bool) {
	record, ok := m.auctions[id]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
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

func (m *mockState) BondVaultAddress() [20]byte {
	return newTestAddress(0xbb)
}

func (m *mockState) BondCredit(auctionID [32]byte, solver [20]byte, amount *big.Int) error {
	key := hex.EncodeToString(auctionID[:]) + "/" + hex.EncodeToString(solver[:])
	current, ok := m.bonds[key]
	if !ok {
		current = big.NewInt(0)
	}
	m.bonds[key] = new(big.Int).Add(current, amount)
	return nil
}

func (m *mockState) setBalance(addr [20]byte, asset string, amount int64) {
	account := types.NewAccount()
	account.SetBalance(asset, big.NewInt(amount))
	m.accounts[string(addr[:])] = account
}

func (m *mockState) addIntent(minReceive int64) *intent.Intent {
	record := &intent.Intent{
		ID:          [32]byte{0xaa},
		Owner:       newTestAddress(0x11),
		InputAsset:  "USDX",
		OutputAsset: "ETHX",
		InputAmount: big.NewInt(1000),
		MinReceive:  big.NewInt(minReceive),
		Active:      true,
	}
	m.intents[record.ID] = record
	return record
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

func newTestEngine(state *mockState) (*Engine, *capturingEmitter) {
	engine := NewEngine()
	engine.SetState(state)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)
	return engine, emitter
}

func TestCreateDerivesStartQuoteFromPremium(t *testing.T) {
	state := newMockState()
	engine, emitter := newTestEngine(state)
	record := state.addIntent(100)

	auction, err := engine.Create(record.ID, 1000)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	if auction.StartQuote.Cmp(big.NewInt(110)) != 0 {
		t.Fatalf("expected start quote 110, got %s", auction.StartQuote)
	}
	if auction.MinQuote.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected min quote 100, got %s", auction.MinQuote)
	}
	if auction.StartTime != 1000 || auction.EndTime != 1120 {
		t.Fatalf("unexpected schedule: start %d end %d", auction.StartTime, auction.EndTime)
	}
	if auction.Status != StatusStarted {
		t.Fatalf("expected started status, got %v", auction.Status)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != EventTypeAuctionCreated {
		t.Fatalf("expected a single auction.created event")
	}
}

func TestCreateFloorsStartQuote(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	record := state.addIntent(105)

	auction, err := engine.Create(record.ID, 1000)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	// 105 * 110 / 100 = 115.5, floored.
	if auction.StartQuote.Cmp(big.NewInt(115)) != 0 {
		t.Fatalf("expected floored start quote 115, got %s", auction.StartQuote)
	}
}

func TestCreateRejectsSecondAuction(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	record := state.addIntent(100)

	if _, err := engine.Create(record.ID, 1000); err != nil {
		t.Fatalf("create auction: %v", err)
	}
	if _, err := engine.Create(record.ID, 2000); !errors.Is(err, ErrAuctionExists) {
		t.Fatalf("expected ErrAuctionExists, got %v", err)
	}
}

func TestCreateRejectsOverflowingQuote(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	record := state.addIntent(1)
	record.MinReceive = new(big.Int).SetUint64(math.MaxUint64)
	state.intents[record.ID] = record

	if _, err := engine.Create(record.ID, 1000); !errors.Is(err, ErrMathOverflow) {
		t.Fatalf("expected ErrMathOverflow, got %v", err)
	}
}

func TestCreateRejectsInactiveIntent(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	record := state.addIntent(100)
	record.Active = false
	state.intents[record.ID] = record

	if _, err := engine.Create(record.ID, 1000); !errors.Is(err, intent.ErrIntentInactive) {
		t.Fatalf("expected ErrIntentInactive, got %v", err)
	}
}

func TestCreateRejectsZeroAmountIntent(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	record := state.addIntent(100)
	record.InputAmount = big.NewInt(0)
	state.intents[record.ID] = record

	if _, err := engine.Create(record.ID, 1000); !errors.Is(err, intent.ErrInvalidInputAmount) {
		t.Fatalf("expected ErrInvalidInputAmount, got %v", err)
	}

	record.InputAmount = big.NewInt(1000)
	record.MinReceive = big.NewInt(0)
	state.intents[record.ID] = record

	if _, err := engine.Create(record.ID, 1000); !errors.Is(err, intent.ErrInvalidMinReceive) {
		t.Fatalf("expected ErrInvalidMinReceive, got %v", err)
	}
	if len(state.auctions) != 0 {
		t.Fatalf("expected no auction record, got %d", len(state.auctions))
	}
}

func TestPriceDecaysLinearlyAndClamps(t *testing.T) {
	auction := &Auction{
		StartQuote: big.NewInt(110),
		MinQuote:   big.NewInt(100),
		StartTime:  1000,
		EndTime:    1120,
	}

	cases := []struct {
		now  int64
		want int64
	}{
		{now: 900, want: 110},
		{now: 1000, want: 110},
		{now: 1060, want: 105},
		{now: 1120, want: 100},
		{now: 5000, want: 100},
	}
	for _, tc := range cases {
		if got := PriceAt(auction, tc.now); got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("price at %d: expected %d, got %s", tc.now, tc.want, got)
		}
	}

	// Monotone non-increasing across the whole schedule.
	prev := PriceAt(auction, auction.StartTime)
	for now := auction.StartTime + 1; now <= auction.EndTime; now++ {
		price := PriceAt(auction, now)
		if price.Cmp(prev) > 0 {
			t.Fatalf("price increased at %d: %s -> %s", now, prev, price)
		}
		if price.Cmp(auction.MinQuote) < 0 || price.Cmp(auction.StartQuote) > 0 {
			t.Fatalf("price out of bounds at %d: %s", now, price)
		}
		prev = price
	}
}

func TestClaimLocksBondAndAwardsAuction(t *testing.T) {
	state := newMockState()
	engine, emitter := newTestEngine(state)
	record := state.addIntent(100)
	created, err := engine.Create(record.ID, 1000)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	solver := newTestAddress(0x99)
	state.setBalance(solver, "SWP", 2_000_000)

	claimed, err := engine.Claim(created.ID, solver, 1060)
	if err != nil {
		t.Fatalf("claim auction: %v", err)
	}
	if claimed.Status != StatusAwarded {
		t.Fatalf("expected awarded status, got %v", claimed.Status)
	}
	if claimed.ClaimedBy == nil || *claimed.ClaimedBy != solver {
		t.Fatalf("expected claim recorded for solver")
	}
	if claimed.ClaimPrice.Cmp(big.NewInt(105)) != 0 {
		t.Fatalf("expected claim price 105, got %s", claimed.ClaimPrice)
	}
	if claimed.ClaimExpiry != 1090 {
		t.Fatalf("expected claim expiry 1090, got %d", claimed.ClaimExpiry)
	}

	solverAccount, _ := state.GetAccount(solver[:])
	if got := solverAccount.Balance("SWP"); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("expected solver bond deducted, balance %s", got)
	}
	vault := state.BondVaultAddress()
	vaultAccount, _ := state.GetAccount(vault[:])
	if got := vaultAccount.Balance("SWP"); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("expected bond vault credited, balance %s", got)
	}

	var sawClaimed bool
	for _, evt := range emitter.events {
		if evt.EventType() == EventTypeAuctionClaimed {
			sawClaimed = true
		}
	}
	if !sawClaimed {
		t.Fatalf("expected auction.claimed event")
	}
}

func TestClaimRejectsSecondSolver(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	record := state.addIntent(100)
	created, err := engine.Create(record.ID, 1000)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	first := newTestAddress(0x99)
	second := newTestAddress(0x9a)
	state.setBalance(first, "SWP", 2_000_000)
	state.setBalance(second, "SWP", 2_000_000)

	if _, err := engine.Claim(created.ID, first, 1030); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := engine.Claim(created.ID, second, 1031); !errors.Is(err, ErrAuctionAlreadyClaimed) {
		t.Fatalf("expected ErrAuctionAlreadyClaimed, got %v", err)
	}
}

func TestClaimRejectsOutsideSchedule(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	record := state.addIntent(100)
	created, err := engine.Create(record.ID, 1000)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	solver := newTestAddress(0x99)
	state.setBalance(solver, "SWP", 2_000_000)

	if _, err := engine.Claim(created.ID, solver, 999); !errors.Is(err, ErrAuctionNotStarted) {
		t.Fatalf("expected ErrAuctionNotStarted, got %v", err)
	}
	if _, err := engine.Claim(created.ID, solver, 1121); !errors.Is(err, ErrAuctionExpired) {
		t.Fatalf("expected ErrAuctionExpired, got %v", err)
	}
	// The boundary instant still claims, at the floor price.
	claimed, err := engine.Claim(created.ID, solver, 1120)
	if err != nil {
		t.Fatalf("boundary claim: %v", err)
	}
	if claimed.ClaimPrice.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected floor price at boundary, got %s", claimed.ClaimPrice)
	}
}

func TestClaimRejectsUnderfundedSolver(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	record := state.addIntent(100)
	created, err := engine.Create(record.ID, 1000)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	solver := newTestAddress(0x99)
	state.setBalance(solver, "SWP", 10)

	if _, err := engine.Claim(created.ID, solver, 1030); !errors.Is(err, ErrInsufficientBond) {
		t.Fatalf("expected ErrInsufficientBond, got %v", err)
	}
}

func TestCancelRequiresOwnerAndUnclaimedAuction(t *testing.T) {
	state := newMockState()
	engine, emitter := newTestEngine(state)
	record := state.addIntent(100)
	created, err := engine.Create(record.ID, 1000)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}

	if _, err := engine.Cancel(created.ID, newTestAddress(0x42)); !errors.Is(err, ErrNotIntentOwner) {
		t.Fatalf("expected ErrNotIntentOwner, got %v", err)
	}

	cancelled, err := engine.Cancel(created.ID, record.Owner)
	if err != nil {
		t.Fatalf("cancel auction: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %v", cancelled.Status)
	}
	if _, err := engine.Cancel(created.ID, record.Owner); !errors.Is(err, ErrAuctionNotCancellable) {
		t.Fatalf("expected ErrAuctionNotCancellable, got %v", err)
	}

	var sawCancelled bool
	for _, evt := range emitter.events {
		if evt.EventType() == EventTypeAuctionCancelled {
			sawCancelled = true
		}
	}
	if !sawCancelled {
		t.Fatalf("expected auction.cancelled event")
	}
}

func TestCancelRejectsClaimedAuction(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	record := state.addIntent(100)
	created, err := engine.Create(record.ID, 1000)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	solver := newTestAddress(0x99)
	state.setBalance(solver, "SWP", 2_000_000)
	if _, err := engine.Claim(created.ID, solver, 1030); err != nil {
		t.Fatalf("claim auction: %v", err)
	}

	if _, err := engine.Cancel(created.ID, record.Owner); !errors.Is(err, ErrAuctionNotCancellable) {
		t.Fatalf("expected ErrAuctionNotCancellable, got %v", err)
	}
}

package state

import (
	"fmt"
	"math/big"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"stealthswap/core/types"
	"stealthswap/storage/trie"
)

// Asset is a registered settlement asset. Intents may only reference assets
// present in the registry.
type Asset struct {
	Symbol   string
	Name     string
	Decimals uint8
}

// Manager provides typed access to protocol state stored in the trie. All
// values are RLP encoded under keccak-hashed keys; mutations stay pending in
// the trie until the caller commits.
type Manager struct {
	trie *trie.Trie
}

// NewManager wraps the supplied trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// KVPut RLP-encodes value and stores it under the keccak hash of key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.trie.Update(ethcrypto.Keccak256(key), encoded)
}

// KVGet loads and decodes the value stored under key. The boolean reports
// whether the key exists.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, err := m.trie.Get(ethcrypto.Keccak256(key))
	if err != nil {
		return false, err
	}
	if len(encoded) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// RegisterAsset adds an asset to the registry. Re-registering an existing
// symbol overwrites its metadata.
func (m *Manager) RegisterAsset(asset Asset) error {
	if asset.Symbol == "" {
		return fmt.Errorf("state: asset symbol must be set")
	}
	if err := m.KVPut(assetKey(asset.Symbol), &asset); err != nil {
		return err
	}
	var index []string
	if _, err := m.KVGet([]byte(assetListKey), &index); err != nil {
		return err
	}
	for _, symbol := range index {
		if symbol == asset.Symbol {
			return nil
		}
	}
	index = append(index, asset.Symbol)
	sort.Strings(index)
	return m.KVPut([]byte(assetListKey), index)
}

// Asset loads a registered asset by symbol.
func (m *Manager) Asset(symbol string) (Asset, bool, error) {
	var asset Asset
	ok, err := m.KVGet(assetKey(symbol), &asset)
	return asset, ok, err
}

// AssetExists reports whether the symbol is registered. Lookup errors read
// as absent; writes will surface the underlying failure.
func (m *Manager) AssetExists(symbol string) bool {
	_, ok, err := m.Asset(symbol)
	return err == nil && ok
}

// Assets returns the sorted registry index.
func (m *Manager) Assets() ([]string, error) {
	var index []string
	if _, err := m.KVGet([]byte(assetListKey), &index); err != nil {
		return nil, err
	}
	return index, nil
}

type storedBalance struct {
	Asset  string
	Amount *big.Int
}

type storedAccount struct {
	Nonce    uint64
	Balances []storedBalance
}

// GetAccount loads the account stored at addr. Missing accounts come back
// as fresh zero-balance accounts.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	account := types.NewAccount()
	if !ok {
		return account, nil
	}
	account.Nonce = stored.Nonce
	for _, balance := range stored.Balances {
		account.SetBalance(balance.Asset, balance.Amount)
	}
	return account, nil
}

// PutAccount persists the account at addr. Balances are stored sorted by
// asset symbol so encoding is deterministic.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	stored := storedAccount{Nonce: account.Nonce}
	symbols := make([]string, 0, len(account.Balances))
	for symbol := range account.Balances {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		amount := account.Balances[symbol]
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		stored.Balances = append(stored.Balances, storedBalance{Asset: symbol, Amount: amount})
	}
	return m.KVPut(accountKey(addr), &stored)
}

// Balance is a read-side convenience over GetAccount.
func (m *Manager) Balance(addr []byte, asset string) (*big.Int, error) {
	account, err := m.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.Balance(asset), nil
}

// EscrowVaultAddress derives the per-intent escrow vault address. The
// derivation is a domain-separated hash, so no key material exists for the
// address and only protocol operations can move its funds.
func (m *Manager) EscrowVaultAddress(intentID [32]byte) [20]byte {
	sum := blake3.Sum256(append([]byte("stealthswap/escrow/"), intentID[:]...))
	var addr [20]byte
	copy(addr[:], sum[:20])
	return addr
}

// BondVaultAddress derives the shared bond vault address.
func (m *Manager) BondVaultAddress() [20]byte {
	sum := blake3.Sum256([]byte("stealthswap/bond-vault"))
	var addr [20]byte
	copy(addr[:], sum[:20])
	return addr
}

func (m *Manager) ledgerBalance(key []byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := m.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) ledgerCredit(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: credit amount must be positive")
	}
	current, err := m.ledgerBalance(key)
	if err != nil {
		return err
	}
	return m.KVPut(key, new(big.Int).Add(current, amount))
}

func (m *Manager) ledgerDebit(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("state: debit amount must be positive")
	}
	current, err := m.ledgerBalance(key)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("state: ledger debit exceeds balance")
	}
	return m.KVPut(key, new(big.Int).Sub(current, amount))
}

// EscrowCredit records funds entering an intent's escrow vault.
func (m *Manager) EscrowCredit(intentID [32]byte, asset string, amount *big.Int) error {
	return m.ledgerCredit(escrowKey(intentID, asset), amount)
}

// EscrowDebit records funds leaving an intent's escrow vault.
func (m *Manager) EscrowDebit(intentID [32]byte, asset string, amount *big.Int) error {
	return m.ledgerDebit(escrowKey(intentID, asset), amount)
}

// EscrowBalance reports the funds held for an intent.
func (m *Manager) EscrowBalance(intentID [32]byte, asset string) (*big.Int, error) {
	return m.ledgerBalance(escrowKey(intentID, asset))
}

// BondCredit records a solver's bond entering the bond vault.
func (m *Manager) BondCredit(auctionID [32]byte, solver [20]byte, amount *big.Int) error {
	return m.ledgerCredit(bondKey(auctionID, solver), amount)
}

// BondDebit records a solver's bond leaving the bond vault.
func (m *Manager) BondDebit(auctionID [32]byte, solver [20]byte, amount *big.Int) error {
	return m.ledgerDebit(bondKey(auctionID, solver), amount)
}

// BondBalance reports the bond held for a solver on an auction.
func (m *Manager) BondBalance(auctionID [32]byte, solver [20]byte) (*big.Int, error) {
	return m.ledgerBalance(bondKey(auctionID, solver))
}

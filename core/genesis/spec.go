package genesis

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"stealthswap/core/state"
	"stealthswap/crypto"
	"stealthswap/native/intent"
)

// AssetSpec registers a settlement asset at genesis.
type AssetSpec struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// Spec is the genesis document. Alloc maps bech32 addresses to per-asset
// starting balances, expressed as decimal strings so large amounts survive
// JSON round-trips intact.
type Spec struct {
	ChainName string                       `json:"chainName" yaml:"chainName"`
	Assets    []AssetSpec                  `json:"assets" yaml:"assets"`
	Alloc     map[string]map[string]string `json:"alloc" yaml:"alloc"`
}

// Validate checks the spec for internal consistency: well-formed symbols,
// known alloc assets, decodable addresses and non-negative amounts.
func (s *Spec) Validate() error {
	if s == nil {
		return fmt.Errorf("genesis: nil spec")
	}
	if len(s.Assets) == 0 {
		return fmt.Errorf("genesis: at least one asset required")
	}
	known := make(map[string]bool, len(s.Assets))
	for _, asset := range s.Assets {
		symbol, err := intent.NormalizeAsset(asset.Symbol)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if known[symbol] {
			return fmt.Errorf("genesis: duplicate asset %s", symbol)
		}
		known[symbol] = true
	}
	for addr, balances := range s.Alloc {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("genesis: alloc address %s: %w", addr, err)
		}
		for symbol, amount := range balances {
			normalized, err := intent.NormalizeAsset(symbol)
			if err != nil {
				return fmt.Errorf("genesis: alloc for %s: %w", addr, err)
			}
			if !known[normalized] {
				return fmt.Errorf("genesis: alloc references unregistered asset %s", normalized)
			}
			if _, err := parseAmount(amount); err != nil {
				return fmt.Errorf("genesis: alloc %s/%s: %w", addr, normalized, err)
			}
		}
	}
	return nil
}

// Apply writes the genesis assets and balances into the state manager.
func (s *Spec) Apply(manager *state.Manager) error {
	if err := s.Validate(); err != nil {
		return err
	}
	for _, asset := range s.Assets {
		symbol, err := intent.NormalizeAsset(asset.Symbol)
		if err != nil {
			return err
		}
		if err := manager.RegisterAsset(state.Asset{
			Symbol:   symbol,
			Name:     asset.Name,
			Decimals: asset.Decimals,
		}); err != nil {
			return err
		}
	}
	// Deterministic application order keeps the genesis root reproducible.
	addrs := make([]string, 0, len(s.Alloc))
	for addr := range s.Alloc {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	for _, addr := range addrs {
		decoded, err := crypto.DecodeAddress(addr)
		if err != nil {
			return err
		}
		account, err := manager.GetAccount(decoded.Bytes())
		if err != nil {
			return err
		}
		symbols := make([]string, 0, len(s.Alloc[addr]))
		for symbol := range s.Alloc[addr] {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			normalized, err := intent.NormalizeAsset(symbol)
			if err != nil {
				return err
			}
			amount, err := parseAmount(s.Alloc[addr][symbol])
			if err != nil {
				return err
			}
			account.SetBalance(normalized, amount)
		}
		if err := manager.PutAccount(decoded.Bytes(), account); err != nil {
			return err
		}
	}
	return nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty amount")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return amount, nil
}

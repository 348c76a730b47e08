package intent

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Intent captures a user's escrowed swap request: the input funds locked in
// the intent's escrow vault and the minimum output the user will accept.
// Active flips to false exactly once, when settlement fills the intent; the
// record itself is never deleted and stays behind as the audit trail.
type Intent struct {
	ID          [32]byte
	Owner       [20]byte
	InputAsset  string
	OutputAsset string
	InputAmount *big.Int
	MinReceive  *big.Int
	Active      bool
	CreatedAt   int64
}

var assetSymbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,16}$`)

// NormalizeAsset canonicalises an asset symbol to its uppercase form and
// rejects symbols outside the supported character set.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if !assetSymbolPattern.MatchString(trimmed) {
		return "", fmt.Errorf("intent: unsupported asset symbol: %q", symbol)
	}
	return trimmed, nil
}

// DeriveID computes the deterministic intent identifier from its definition
// and a caller-supplied nonce, so resubmissions address the same record.
func DeriveID(owner [20]byte, inputAsset, outputAsset string, nonce [32]byte) [32]byte {
	return [32]byte(ethcrypto.Keccak256Hash([]byte("intent"), owner[:], []byte(inputAsset), []byte(outputAsset), nonce[:]))
}

// Clone returns a deep copy of the intent so callers can safely mutate the
// copy without affecting the stored instance.
func (i *Intent) Clone() *Intent {
	if i == nil {
		return nil
	}
	clone := *i
	if i.InputAmount != nil {
		clone.InputAmount = new(big.Int).Set(i.InputAmount)
	} else {
		clone.InputAmount = big.NewInt(0)
	}
	if i.MinReceive != nil {
		clone.MinReceive = new(big.Int).Set(i.MinReceive)
	} else {
		clone.MinReceive = big.NewInt(0)
	}
	return &clone
}

// SanitizeIntent validates and normalises the supplied intent definition,
// returning a cloned instance with canonical asset casing and non-nil amount
// fields. The function does not mutate the original value.
func SanitizeIntent(i *Intent) (*Intent, error) {
	if i == nil {
		return nil, fmt.Errorf("intent: nil intent")
	}
	clone := i.Clone()
	inputAsset, err := NormalizeAsset(clone.InputAsset)
	if err != nil {
		return nil, err
	}
	clone.InputAsset = inputAsset
	outputAsset, err := NormalizeAsset(clone.OutputAsset)
	if err != nil {
		return nil, err
	}
	clone.OutputAsset = outputAsset
	if clone.InputAmount.Sign() < 0 {
		return nil, fmt.Errorf("intent: input amount must be non-negative")
	}
	if clone.MinReceive.Sign() < 0 {
		return nil, fmt.Errorf("intent: min receive must be non-negative")
	}
	return clone, nil
}

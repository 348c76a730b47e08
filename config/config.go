package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"stealthswap/crypto"
	"stealthswap/native/auction"
	"stealthswap/native/common"
)

// Config is the swapd service configuration, loaded from TOML.
type Config struct {
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	Environment string `toml:"Environment"`
	// FeeTreasury receives forfeited solver bonds, bech32 encoded.
	FeeTreasury string `toml:"FeeTreasury"`
	// PausedModules disables the named modules ("intent", "auction",
	// "settlement") for maintenance.
	PausedModules []string `toml:"PausedModules"`

	Log       LogConfig       `toml:"log"`
	Auction   AuctionConfig   `toml:"auction"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
}

// AuctionConfig overrides the auction schedule. Zero values fall back to the
// protocol defaults.
type AuctionConfig struct {
	DurationSecs        int64  `toml:"DurationSecs"`
	ExclusiveWindowSecs int64  `toml:"ExclusiveWindowSecs"`
	PremiumBps          uint64 `toml:"PremiumBps"`
	BondAsset           string `toml:"BondAsset"`
	BondAmount          string `toml:"BondAmount"`
}

// TelemetryConfig controls the OTLP exporters.
type TelemetryConfig struct {
	Enabled  bool              `toml:"Enabled"`
	Endpoint string            `toml:"Endpoint"`
	Insecure bool              `toml:"Insecure"`
	Traces   bool              `toml:"Traces"`
	Metrics  bool              `toml:"Metrics"`
	Headers  map[string]string `toml:"Headers"`
}

// Default returns the baseline configuration.
func Default() *Config {
	params := auction.DefaultParams()
	return &Config{
		DataDir:     "./swapd-data",
		GenesisFile: "./genesis.json",
		Environment: "dev",
		Auction: AuctionConfig{
			DurationSecs:        params.DurationSecs,
			ExclusiveWindowSecs: params.ExclusiveWindowSecs,
			PremiumBps:          params.PremiumBps,
			BondAsset:           params.BondAsset,
			BondAmount:          params.BondAmount.String(),
		},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4318",
			Insecure: true,
			Traces:   true,
			Metrics:  true,
		},
	}
}

// Load reads the configuration at path, writing the default file first when
// none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeDefault(path); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir must be set")
	}
	if c.GenesisFile == "" {
		return fmt.Errorf("config: GenesisFile must be set")
	}
	if c.FeeTreasury != "" {
		if _, err := crypto.DecodeAddress(c.FeeTreasury); err != nil {
			return fmt.Errorf("config: FeeTreasury: %w", err)
		}
	}
	for _, module := range c.PausedModules {
		switch module {
		case "intent", "auction", "settlement":
		default:
			return fmt.Errorf("config: unknown paused module %q", module)
		}
	}
	if _, err := c.AuctionParams(); err != nil {
		return err
	}
	return nil
}

// AuctionParams resolves the configured auction schedule, falling back to
// protocol defaults for unset fields.
func (c *Config) AuctionParams() (auction.Params, error) {
	params := auction.DefaultParams()
	if c.Auction.DurationSecs > 0 {
		params.DurationSecs = c.Auction.DurationSecs
	}
	if c.Auction.ExclusiveWindowSecs > 0 {
		params.ExclusiveWindowSecs = c.Auction.ExclusiveWindowSecs
	}
	if c.Auction.PremiumBps > 0 {
		params.PremiumBps = c.Auction.PremiumBps
	}
	if c.Auction.BondAsset != "" {
		params.BondAsset = c.Auction.BondAsset
	}
	if c.Auction.BondAmount != "" {
		amount, ok := new(big.Int).SetString(c.Auction.BondAmount, 10)
		if !ok || amount.Sign() <= 0 {
			return auction.Params{}, fmt.Errorf("config: invalid auction BondAmount %q", c.Auction.BondAmount)
		}
		params.BondAmount = amount
	}
	if err := params.Validate(); err != nil {
		return auction.Params{}, fmt.Errorf("config: %w", err)
	}
	return params, nil
}

// Pauses converts the configured pause list to a view for the engines.
func (c *Config) Pauses() common.PauseView {
	if len(c.PausedModules) == 0 {
		return nil
	}
	paused := make(common.StaticPauses, len(c.PausedModules))
	for _, module := range c.PausedModules {
		paused[module] = true
	}
	return paused
}

// FeeTreasuryAddress decodes the configured treasury, reporting whether one
// is set.
func (c *Config) FeeTreasuryAddress() ([20]byte, bool, error) {
	if c.FeeTreasury == "" {
		return [20]byte{}, false, nil
	}
	addr, err := crypto.DecodeAddress(c.FeeTreasury)
	if err != nil {
		return [20]byte{}, false, err
	}
	return addr.Array(), true, nil
}

func writeDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory for %s: %w", path, err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(Default()); err != nil {
		return fmt.Errorf("config: write default %s: %w", path, err)
	}
	return nil
}

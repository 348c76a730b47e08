package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, "./swapd-data", cfg.DataDir)

	params, err := cfg.AuctionParams()
	require.NoError(t, err)
	require.Equal(t, int64(120), params.DurationSecs)
	require.Equal(t, int64(30), params.ExclusiveWindowSecs)
	require.Equal(t, uint64(1000), params.PremiumBps)
	require.Zero(t, params.BondAmount.Cmp(big.NewInt(1_000_000)))
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
DataDir = "/var/lib/swapd"
GenesisFile = "/etc/swapd/genesis.yaml"
PausedModules = ["settlement"]

[auction]
DurationSecs = 60
PremiumBps = 500
BondAsset = "USDX"
BondAmount = "250000"

[telemetry]
Enabled = true
Endpoint = "collector:4318"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/swapd", cfg.DataDir)

	params, err := cfg.AuctionParams()
	require.NoError(t, err)
	require.Equal(t, int64(60), params.DurationSecs)
	// Unset fields keep their defaults.
	require.Equal(t, int64(30), params.ExclusiveWindowSecs)
	require.Equal(t, uint64(500), params.PremiumBps)
	require.Equal(t, "USDX", params.BondAsset)
	require.Zero(t, params.BondAmount.Cmp(big.NewInt(250_000)))

	pauses := cfg.Pauses()
	require.NotNil(t, pauses)
	require.True(t, pauses.IsPaused("settlement"))
	require.False(t, pauses.IsPaused("intent"))

	require.True(t, cfg.Telemetry.Enabled)
	require.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"badBondAmount", "[auction]\nBondAmount = \"abc\"\n"},
		{"badPremium", "[auction]\nPremiumBps = 20000\n"},
		{"badPause", "PausedModules = [\"minting\"]\n"},
		{"badTreasury", "FeeTreasury = \"not-bech32\"\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o600))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

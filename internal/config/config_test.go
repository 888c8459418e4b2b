package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".swb"), cfg.Dir)
	assert.Equal(t, DefaultRPCURL, cfg.Network.RPCURL)
	assert.Equal(t, ChainSepolia, cfg.Network.ChainID)
	assert.Equal(t, DefaultVaultAddress, cfg.Contracts.Vault)
	assert.Equal(t, "balance_of", cfg.Entrypoints.VaultBalanceOf)
	assert.Equal(t, 2*time.Second, cfg.Vault.PollInterval)
	assert.Equal(t, 30, cfg.Vault.MaxAttempts)
	assert.Equal(t, filepath.Join(home, ".swb", "sessions.toml"), cfg.Sessions.Path)

	ready := cfg.Profile(domain.WalletReady)
	assert.Equal(t, "readywallet", ready.Schemes[0])
	assert.Equal(t, 30*time.Second, ready.Timeout)
	assert.Equal(t, domain.ConnectDeepLink, ready.Method)
	assert.Equal(t, "swb://ready/callback", cfg.CallbackURL(domain.WalletReady))

	braavos := cfg.Profile(domain.WalletBraavos)
	assert.Equal(t, domain.ConnectWalletConnect, braavos.Method)
	assert.Equal(t, 60*time.Second, braavos.Timeout)
	assert.Equal(t, "wcV2", cfg.Profile(domain.WalletKeplr).WCAction)
	assert.Equal(t, domain.ConnectManualImport, cfg.Profile(domain.WalletGeneric).Method)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".swb"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(home, ".swb", "config.toml"), []byte(`
[network]
chain_id = "sn_main"

[vault]
max_attempts = 5

[wallets.argentx]
schemes = ["argent"]
`), 0o600))
	t.Setenv("SWB_NETWORK_RPC_URL", "http://127.0.0.1:5050")
	t.Setenv("SWB_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ChainMainnet, cfg.Network.ChainID)
	assert.Equal(t, "http://127.0.0.1:5050", cfg.Network.RPCURL)
	assert.Equal(t, 5, cfg.Vault.MaxAttempts)
	assert.Equal(t, []string{"argent"}, cfg.Profile(domain.WalletArgentX).Schemes)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Network:   Network{ChainID: "SN_GOERLI"},
		Contracts: Contracts{Token: "token", Vault: "0x1"},
		Sessions:  Sessions{Backend: BackendRedis},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network.rpc_url")
	assert.Contains(t, err.Error(), "network.chain_id")
	assert.Contains(t, err.Error(), "contracts.token")
	assert.Contains(t, err.Error(), "redis.url")
	assert.Contains(t, err.Error(), "vault.poll_interval")
}

package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultRPCURL       = "https://starknet-sepolia.public.blastapi.io/rpc/v0_7"
	DefaultTokenAddress = "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d"
	DefaultVaultAddress = "0x029961c5af1520f4a4ad57dccc66370b92ff7a0c47fbf00764e354c17156d7db"
	DefaultRelayURL     = "wss://relay.walletconnect.com"
)

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("network.rpc_url", DefaultRPCURL)
	v.SetDefault("network.chain_id", ChainSepolia)

	v.SetDefault("contracts.token", DefaultTokenAddress)
	v.SetDefault("contracts.vault", DefaultVaultAddress)

	v.SetDefault("entrypoints.balance_of", "balanceOf")
	v.SetDefault("entrypoints.allowance", "allowance")
	v.SetDefault("entrypoints.approve", "approve")
	v.SetDefault("entrypoints.vault_balance_of", "balance_of")
	v.SetDefault("entrypoints.deposit", "deposit")
	v.SetDefault("entrypoints.withdraw", "withdraw")
	v.SetDefault("entrypoints.transfer_to_user", "transfer_to_user")

	v.SetDefault("walletconnect.relay_url", DefaultRelayURL)
	v.SetDefault("walletconnect.ttl", 5*time.Minute)

	v.SetDefault("callback.listen", "127.0.0.1:8765")
	v.SetDefault("callback.app_scheme", "swb")
	v.SetDefault("callback.dapp_name", "Starknet Wallet Bridge")

	v.SetDefault("connect.timeout", 60*time.Second)

	v.SetDefault("wallets.argentx.schemes", []string{"argentx", "argent", "argentmobile"})
	v.SetDefault("wallets.argentx.install_url", "https://apps.apple.com/app/argent-starknet-wallet/id1358741926")
	v.SetDefault("wallets.argentx.universal_link", "https://argent.link/app/wc")
	v.SetDefault("wallets.argentx.method", "deeplink")
	v.SetDefault("wallets.argentx.wc_action", "wc")
	v.SetDefault("wallets.argentx.send_action", "send")
	v.SetDefault("wallets.argentx.timeout", 60*time.Second)

	v.SetDefault("wallets.braavos.schemes", []string{"braavos"})
	v.SetDefault("wallets.braavos.install_url", "https://apps.apple.com/app/braavos-starknet-wallet/id6444612175")
	v.SetDefault("wallets.braavos.universal_link", "https://starknet.app.link/wc")
	v.SetDefault("wallets.braavos.method", "walletconnect")
	v.SetDefault("wallets.braavos.wc_action", "wc")

	v.SetDefault("wallets.ready.schemes", []string{"readywallet", "ready", "argent", "argentx", "argentmobile", "ready-wallet", "rwallet"})
	v.SetDefault("wallets.ready.install_url", "https://apps.apple.com/app/ready-wallet/id6504062205")
	v.SetDefault("wallets.ready.universal_link", "https://argent.link/app/wc")
	v.SetDefault("wallets.ready.method", "deeplink")
	v.SetDefault("wallets.ready.wc_action", "wc")
	v.SetDefault("wallets.ready.callback_path", "ready/callback")
	v.SetDefault("wallets.ready.send_action", "send")
	v.SetDefault("wallets.ready.timeout", 30*time.Second)

	v.SetDefault("wallets.keplr.schemes", []string{"keplrwallet"})
	v.SetDefault("wallets.keplr.method", "walletconnect")
	v.SetDefault("wallets.keplr.wc_action", "wcV2")

	v.SetDefault("wallets.generic.method", "manual")

	v.SetDefault("sessions.backend", BackendTOML)
	v.SetDefault("sessions.path", filepath.Join(dir, "sessions.toml"))

	v.SetDefault("redis.key_prefix", "swb")
	v.SetDefault("redis.lock_ttl", 5*time.Minute)

	v.SetDefault("secrets.backend", "chain")
	v.SetDefault("secrets.dir", filepath.Join(dir, "secrets"))

	v.SetDefault("vault.poll_interval", 2*time.Second)
	v.SetDefault("vault.max_attempts", 30)

	v.SetDefault("rpc.requests_per_second", 5)
	v.SetDefault("rpc.timeout", 15*time.Second)
	v.SetDefault("rpc.block_tag", "latest")

	v.SetDefault("invoke.max_fee", "0x2386f26fc10000")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

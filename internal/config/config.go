package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".swb"
	envPrefix  = "SWB"

	ChainSepolia = "SN_SEPOLIA"
	ChainMainnet = "SN_MAIN"

	BackendTOML  = "toml"
	BackendRedis = "redis"
)

type Config struct {
	Dir           string
	Network       Network
	Contracts     Contracts
	Entrypoints   Entrypoints
	WalletConnect WalletConnect
	Callback      Callback
	Connect       Connect
	Wallets       map[domain.WalletKind]WalletProfile
	Sessions      Sessions
	Redis         Redis
	Secrets       Secrets
	Vault         Vault
	RPC           RPC
	Invoke        Invoke
	Log           Log
}

type Network struct {
	RPCURL  string
	ChainID string
}

type Contracts struct {
	Token string
	Vault string
}

// Entrypoints names the contract functions the vault flows call.
type Entrypoints struct {
	BalanceOf      string
	Allowance      string
	Approve        string
	VaultBalanceOf string
	Deposit        string
	Withdraw       string
	TransferToUser string
}

type WalletConnect struct {
	ProjectID string
	RelayURL  string
	AuthToken string
	TTL       time.Duration
}

type Callback struct {
	Listen    string
	AppScheme string
	DappName  string
}

type Connect struct {
	Timeout time.Duration
}

// WalletProfile is the per-wallet catalogue entry. Schemes are tried in order.
type WalletProfile struct {
	Schemes       []string
	InstallURL    string
	UniversalLink string
	Method        domain.ConnectMethod
	WCAction      string
	CallbackPath  string
	SendAction    string
	Timeout       time.Duration
}

type Sessions struct {
	Backend string
	Path    string
}

type Redis struct {
	URL       string
	KeyPrefix string
	LockTTL   time.Duration
}

type Secrets struct {
	Backend string
	Dir     string
}

type Vault struct {
	PollInterval time.Duration
	MaxAttempts  int
}

type RPC struct {
	RequestsPerSecond int
	Timeout           time.Duration
	BlockTag          string
}

type Invoke struct {
	MaxFee string
}

type Log struct {
	Level  string
	Format string
}

// Load reads ~/.swb/config.toml (if present) and SWB_* environment overrides
// on top of the Sepolia defaults.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(homeDir, configDir)

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, dir)

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Dir: dir,
		Network: Network{
			RPCURL:  v.GetString("network.rpc_url"),
			ChainID: strings.ToUpper(v.GetString("network.chain_id")),
		},
		Contracts: Contracts{
			Token: v.GetString("contracts.token"),
			Vault: v.GetString("contracts.vault"),
		},
		Entrypoints: Entrypoints{
			BalanceOf:      v.GetString("entrypoints.balance_of"),
			Allowance:      v.GetString("entrypoints.allowance"),
			Approve:        v.GetString("entrypoints.approve"),
			VaultBalanceOf: v.GetString("entrypoints.vault_balance_of"),
			Deposit:        v.GetString("entrypoints.deposit"),
			Withdraw:       v.GetString("entrypoints.withdraw"),
			TransferToUser: v.GetString("entrypoints.transfer_to_user"),
		},
		WalletConnect: WalletConnect{
			ProjectID: v.GetString("walletconnect.project_id"),
			RelayURL:  v.GetString("walletconnect.relay_url"),
			AuthToken: v.GetString("walletconnect.auth_token"),
			TTL:       v.GetDuration("walletconnect.ttl"),
		},
		Callback: Callback{
			Listen:    v.GetString("callback.listen"),
			AppScheme: v.GetString("callback.app_scheme"),
			DappName:  v.GetString("callback.dapp_name"),
		},
		Connect: Connect{Timeout: v.GetDuration("connect.timeout")},
		Wallets: map[domain.WalletKind]WalletProfile{},
		Sessions: Sessions{
			Backend: strings.ToLower(v.GetString("sessions.backend")),
			Path:    expandHome(v.GetString("sessions.path"), homeDir),
		},
		Redis: Redis{
			URL:       v.GetString("redis.url"),
			KeyPrefix: v.GetString("redis.key_prefix"),
			LockTTL:   v.GetDuration("redis.lock_ttl"),
		},
		Secrets: Secrets{
			Backend: strings.ToLower(v.GetString("secrets.backend")),
			Dir:     expandHome(v.GetString("secrets.dir"), homeDir),
		},
		Vault: Vault{
			PollInterval: v.GetDuration("vault.poll_interval"),
			MaxAttempts:  v.GetInt("vault.max_attempts"),
		},
		RPC: RPC{
			RequestsPerSecond: v.GetInt("rpc.requests_per_second"),
			Timeout:           v.GetDuration("rpc.timeout"),
			BlockTag:          v.GetString("rpc.block_tag"),
		},
		Invoke: Invoke{MaxFee: v.GetString("invoke.max_fee")},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	for _, kind := range domain.WalletKinds() {
		prefix := "wallets." + string(kind) + "."
		method, err := domain.ParseConnectMethod(v.GetString(prefix + "method"))
		if err != nil {
			return Config{}, fmt.Errorf("wallet %s: %w", kind, err)
		}
		cfg.Wallets[kind] = WalletProfile{
			Schemes:       v.GetStringSlice(prefix + "schemes"),
			InstallURL:    v.GetString(prefix + "install_url"),
			UniversalLink: v.GetString(prefix + "universal_link"),
			Method:        method,
			WCAction:      v.GetString(prefix + "wc_action"),
			CallbackPath:  v.GetString(prefix + "callback_path"),
			SendAction:    v.GetString(prefix + "send_action"),
			Timeout:       v.GetDuration(prefix + "timeout"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Network.RPCURL) == "" {
		errs = append(errs, errors.New("network.rpc_url is empty"))
	}
	if c.Network.ChainID != ChainSepolia && c.Network.ChainID != ChainMainnet {
		errs = append(errs, fmt.Errorf("network.chain_id %q is not %s or %s", c.Network.ChainID, ChainSepolia, ChainMainnet))
	}
	if _, err := domain.NormalizeAddress(c.Contracts.Token); err != nil {
		errs = append(errs, fmt.Errorf("contracts.token: %w", err))
	}
	if _, err := domain.NormalizeAddress(c.Contracts.Vault); err != nil {
		errs = append(errs, fmt.Errorf("contracts.vault: %w", err))
	}
	if c.Sessions.Backend != BackendTOML && c.Sessions.Backend != BackendRedis {
		errs = append(errs, fmt.Errorf("sessions.backend %q is not %s or %s", c.Sessions.Backend, BackendTOML, BackendRedis))
	}
	if c.Sessions.Backend == BackendRedis && strings.TrimSpace(c.Redis.URL) == "" {
		errs = append(errs, errors.New("redis.url is required for the redis session backend"))
	}
	if c.Vault.PollInterval <= 0 || c.Vault.MaxAttempts <= 0 {
		errs = append(errs, errors.New("vault.poll_interval and vault.max_attempts must be positive"))
	}

	return errors.Join(errs...)
}

// Profile returns the catalogue entry for kind with the global timeout
// applied when the wallet has none of its own.
func (c Config) Profile(kind domain.WalletKind) WalletProfile {
	profile := c.Wallets[kind]
	if profile.Timeout <= 0 {
		profile.Timeout = c.Connect.Timeout
	}
	return profile
}

// CallbackURL is the URL a wallet is told to return to for kind.
func (c Config) CallbackURL(kind domain.WalletKind) string {
	path := c.Wallets[kind].CallbackPath
	if path == "" {
		path = "wallet-callback"
	}
	return c.Callback.AppScheme + "://" + path
}

func expandHome(path, homeDir string) string {
	if path == "~" {
		return homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

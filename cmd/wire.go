package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/adapters/callback"
	"github.com/bnema/starknet-wallet-bridge/internal/adapters/deeplink"
	"github.com/bnema/starknet-wallet-bridge/internal/adapters/manual"
	"github.com/bnema/starknet-wallet-bridge/internal/adapters/opener"
	statusadapter "github.com/bnema/starknet-wallet-bridge/internal/adapters/render/status"
	redisrepo "github.com/bnema/starknet-wallet-bridge/internal/adapters/repo/redis"
	tomlrepo "github.com/bnema/starknet-wallet-bridge/internal/adapters/repo/toml"
	chainstore "github.com/bnema/starknet-wallet-bridge/internal/adapters/secrets/chain"
	"github.com/bnema/starknet-wallet-bridge/internal/adapters/starknet"
	"github.com/bnema/starknet-wallet-bridge/internal/adapters/walletconnect"
	"github.com/bnema/starknet-wallet-bridge/internal/application"
	"github.com/bnema/starknet-wallet-bridge/internal/config"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const wireTimeout = 10 * time.Second

type app struct {
	cfg         config.Config
	logger      *logrus.Logger
	secrets     ports.SecretStore
	registry    *application.SessionRegistry
	router      *application.CallbackRouter
	connections *application.ConnectionService
	vault       *application.VaultOrchestrator
	wc          *walletconnect.Adapter
	renderer    renderer
	httpClient  *http.Client
	now         func() time.Time
	closers     []func() error
}

type renderer struct {
	sessions func([]application.SessionView, statusadapter.RenderOptions) (string, error)
	balances func(application.BalancesView, statusadapter.RenderOptions) (string, error)
	result   func(domain.VaultResult, statusadapter.RenderOptions) (string, error)
}

func wireApp() (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	secrets, err := chainstore.New(cfg.Secrets.Backend, cfg.Secrets.Dir)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), wireTimeout)
	defer cancel()

	a := &app{
		cfg:     cfg,
		logger:  logger,
		secrets: secrets,
		renderer: renderer{
			sessions: statusadapter.RenderSessions,
			balances: statusadapter.RenderBalances,
			result:   statusadapter.RenderResult,
		},
		httpClient: &http.Client{Timeout: 5 * time.Second},
		now:        time.Now,
	}

	repo, locker, err := a.wireSessionStore(ctx)
	if err != nil {
		return nil, err
	}

	a.registry = application.NewSessionRegistry(repo, ports.SystemClock{}, logger.WithField("component", "registry"))
	if err := a.registry.Load(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.router = application.NewCallbackRouter(a.registry, secrets, logger.WithField("component", "callback"))

	urlOpener := opener.New()
	network := networkName(cfg.Network.ChainID)

	rpc := starknet.NewClient(cfg.Network.RPCURL,
		starknet.WithRateLimit(cfg.RPC.RequestsPerSecond),
		starknet.WithBlockTag(cfg.RPC.BlockTag),
		starknet.WithRequestTimeout(cfg.RPC.Timeout),
		starknet.WithLogger(logger.WithField("component", "rpc")),
	)

	maxFee := new(big.Int)
	if cfg.Invoke.MaxFee != "" {
		if maxFee, err = domain.ParseUint(cfg.Invoke.MaxFee); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("invoke.max_fee: %w", err)
		}
	}
	signer := starknet.NewKeySigner(rpc, secrets, cfg.Network.ChainID, maxFee, logger.WithField("component", "signer"))

	deepLinks := deeplink.NewAdapter(cfg.Wallets, urlOpener, cfg.Callback.DappName, network, logger.WithField("component", "deeplink"))
	walletSend := deeplink.NewSubmitter(cfg.Wallets, urlOpener, a.router, deeplink.SubmitterOptions{
		AppScheme: cfg.Callback.AppScheme,
		DappName:  cfg.Callback.DappName,
		Network:   network,
		Timeout:   cfg.Connect.Timeout,
		Logger:    logger.WithField("component", "deeplink"),
	})

	wcLogger := logger.WithField("component", "walletconnect")
	a.wc = walletconnect.NewAdapter(func(ctx context.Context) (walletconnect.Relay, error) {
		if cfg.WalletConnect.ProjectID == "" {
			return nil, fmt.Errorf("walletconnect.project_id is empty: %w", domain.ErrWalletUnavailable)
		}
		return walletconnect.DialRelay(ctx, cfg.WalletConnect.RelayURL, cfg.WalletConnect.ProjectID, cfg.WalletConnect.AuthToken, wcLogger)
	}, a.router, walletconnect.Options{
		ChainID: cfg.Network.ChainID,
		Metadata: walletconnect.Metadata{
			Name:        cfg.Callback.DappName,
			Description: "Starknet vault deposits from the terminal",
			URL:         "https://github.com/bnema/starknet-wallet-bridge",
		},
		Wallets:     cfg.Wallets,
		Opener:      urlOpener,
		Secrets:     secrets,
		ProposalTTL: cfg.WalletConnect.TTL,
		Logger:      wcLogger,
	})
	a.closers = append(a.closers, a.wc.Close)

	a.connections = application.NewConnectionService(a.registry, application.ConnectionServiceOptions{
		Adapters: []ports.ConnectionAdapter{deepLinks, a.wc},
		Importer: manual.NewAdapter(secrets, starknet.PublicKey, logger.WithField("component", "import")),
		Store:    secrets,
		Policy:   walletPolicy(cfg),
		Logger:   logger.WithField("component", "connect"),
	})

	a.vault = application.NewVaultOrchestrator(rpc, a.registry, application.SubmitterSet{
		domain.ConnectManualImport: signer,
		domain.ConnectDeepLink:     walletSend,
	}, application.VaultOptions{
		Contracts: application.VaultContracts{
			Token:          cfg.Contracts.Token,
			Vault:          cfg.Contracts.Vault,
			BalanceOf:      cfg.Entrypoints.BalanceOf,
			Allowance:      cfg.Entrypoints.Allowance,
			Approve:        cfg.Entrypoints.Approve,
			VaultBalanceOf: cfg.Entrypoints.VaultBalanceOf,
			Deposit:        cfg.Entrypoints.Deposit,
			Withdraw:       cfg.Entrypoints.Withdraw,
			TransferToUser: cfg.Entrypoints.TransferToUser,
		},
		PollInterval: cfg.Vault.PollInterval,
		MaxAttempts:  cfg.Vault.MaxAttempts,
		Selector:     starknet.Selector,
		Locker:       locker,
		Logger:       logger.WithField("component", "vault"),
	})
	a.router.SetBalanceRefresher(a.vault)

	return a, nil
}

// wireSessionStore picks the session repository and the per-address lock.
// The redis backend shares both across processes.
func (a *app) wireSessionStore(ctx context.Context) (ports.SessionRepository, ports.AddressLocker, error) {
	switch a.cfg.Sessions.Backend {
	case config.BackendRedis:
		client, err := redisrepo.NewClient(ctx, a.cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("wire redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return redisrepo.NewSessionRepository(client, a.cfg.Redis.KeyPrefix),
			redisrepo.NewLocker(client, a.cfg.Redis.KeyPrefix, a.cfg.Redis.LockTTL),
			nil
	default:
		repo, err := tomlrepo.NewSessionRepository(a.cfg.Sessions.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("wire session repository: %w", err)
		}
		return repo, application.NewAddressLock(), nil
	}
}

// startCallbackServer listens for wallet callbacks until the returned stop
// function is called.
func (a *app) startCallbackServer() (func(), error) {
	server, err := callback.Start(a.cfg.Callback.Listen, a.cfg.Callback.AppScheme, a.router, a.logger.WithField("component", "callback-server"))
	if err != nil {
		return nil, err
	}
	return func() {
		if err := server.Shutdown(context.Background()); err != nil {
			a.logger.WithError(err).Debug("callback server shutdown")
		}
		a.router.Wait()
	}, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func walletPolicy(cfg config.Config) application.PolicyFunc {
	return func(kind domain.WalletKind) application.WalletPolicy {
		profile := cfg.Profile(kind)
		return application.WalletPolicy{
			Method:      profile.Method,
			Timeout:     profile.Timeout,
			CallbackURL: cfg.CallbackURL(kind),
		}
	}
}

func networkName(chainID string) string {
	if chainID == config.ChainMainnet {
		return "mainnet"
	}
	return "sepolia"
}

package deeplink

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bnema/starknet-wallet-bridge/internal/config"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Adapter opens a wallet app through its custom URL scheme and expects the
// wallet to come back on the callback URL with the same cid.
type Adapter struct {
	wallets  map[domain.WalletKind]config.WalletProfile
	opener   ports.URLOpener
	dappName string
	network  string
	newID    func() string
	logger   logrus.FieldLogger
}

var _ ports.ConnectionAdapter = (*Adapter)(nil)

func NewAdapter(wallets map[domain.WalletKind]config.WalletProfile, opener ports.URLOpener, dappName, network string, logger logrus.FieldLogger) *Adapter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Adapter{
		wallets:  wallets,
		opener:   opener,
		dappName: dappName,
		network:  network,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

func (a *Adapter) Method() domain.ConnectMethod {
	return domain.ConnectDeepLink
}

func (a *Adapter) Initiate(ctx context.Context, req domain.ConnectRequest) (domain.PendingConnection, error) {
	profile, ok := a.wallets[req.Kind]
	if !ok || len(profile.Schemes) == 0 {
		return domain.PendingConnection{}, fmt.Errorf("%s has no url scheme: %w", req.Kind, domain.ErrWalletUnavailable)
	}

	cid := a.newID()
	log := a.logger.WithFields(logrus.Fields{"wallet": req.Kind, "method": domain.ConnectDeepLink, "correlation": cid})

	for _, scheme := range profile.Schemes {
		if err := ctx.Err(); err != nil {
			return domain.PendingConnection{}, err
		}
		if !a.opener.CanOpen(ctx, scheme) {
			log.WithField("scheme", scheme).Debug("scheme not handled")
			continue
		}

		link := ConnectLink(scheme, a.dappName, req.CallbackURL, cid, a.network)
		if err := a.opener.Open(ctx, link); err != nil {
			log.WithField("scheme", scheme).WithError(err).Debug("open wallet failed")
			continue
		}

		log.WithField("scheme", scheme).Info("wallet opened")
		return domain.PendingConnection{
			Kind:        req.Kind,
			Method:      domain.ConnectDeepLink,
			Correlation: cid,
			DeepLink:    link,
			ExpiresAt:   req.ExpiresAt,
			CanSign:     profile.SendAction != "",
		}, nil
	}

	if profile.InstallURL != "" {
		if err := a.opener.Open(ctx, profile.InstallURL); err != nil {
			log.WithError(err).Warn("open install page failed")
		}
	}

	return domain.PendingConnection{}, fmt.Errorf("%s: %w", req.Kind.DisplayName(), domain.ErrWalletUnavailable)
}

// ConnectLink builds <scheme>://connect?callback=..&cid=..&dappName=..&network=..
func ConnectLink(scheme, dappName, callbackURL, cid, network string) string {
	query := url.Values{}
	query.Set("dappName", dappName)
	query.Set("callback", callbackURL)
	query.Set("cid", cid)
	if network != "" {
		query.Set("network", network)
	}
	return scheme + "://connect?" + query.Encode()
}

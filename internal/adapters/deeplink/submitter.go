package deeplink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/config"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultSendTimeout = 2 * time.Minute

// Submitter asks the wallet app to sign and broadcast an invoke and waits for
// the send callback carrying the transaction hash.
type Submitter struct {
	wallets   map[domain.WalletKind]config.WalletProfile
	opener    ports.URLOpener
	waiter    ports.RequestWaiter
	appScheme string
	dappName  string
	network   string
	timeout   time.Duration
	newID     func() string
	logger    logrus.FieldLogger
}

var _ ports.TransactionSubmitter = (*Submitter)(nil)

type SubmitterOptions struct {
	AppScheme string
	DappName  string
	Network   string
	Timeout   time.Duration
	Logger    logrus.FieldLogger
}

func NewSubmitter(wallets map[domain.WalletKind]config.WalletProfile, opener ports.URLOpener, waiter ports.RequestWaiter, opts SubmitterOptions) *Submitter {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSendTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Submitter{
		wallets:   wallets,
		opener:    opener,
		waiter:    waiter,
		appScheme: opts.AppScheme,
		dappName:  opts.DappName,
		network:   opts.Network,
		timeout:   opts.Timeout,
		newID:     uuid.NewString,
		logger:    opts.Logger,
	}
}

type sendRequest struct {
	Address string     `json:"address"`
	Network string     `json:"network,omitempty"`
	Calls   []sendCall `json:"calls"`
}

type sendCall struct {
	ContractAddress string   `json:"contractAddress"`
	Entrypoint      string   `json:"entrypoint"`
	Calldata        []string `json:"calldata"`
}

func (s *Submitter) SubmitInvoke(ctx context.Context, session domain.WalletSession, calls []domain.Call) (string, error) {
	if !session.IsConnected() {
		return "", domain.ErrNotConnected
	}
	profile := s.wallets[session.Kind]
	if !session.CanSign || profile.SendAction == "" {
		return "", domain.ErrSigningUnavailable
	}

	payload := sendRequest{Address: session.Address, Network: s.network}
	for _, call := range calls {
		payload.Calls = append(payload.Calls, sendCall{
			ContractAddress: call.ContractAddress,
			Entrypoint:      call.Entrypoint,
			Calldata:        call.Calldata,
		})
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode send request: %w", err)
	}

	rid := s.newID()
	results, release := s.waiter.ExpectRequest(rid)
	defer release()

	log := s.logger.WithFields(logrus.Fields{"wallet": session.Kind, "request_id": rid})

	opened := false
	for _, scheme := range profile.Schemes {
		if !s.opener.CanOpen(ctx, scheme) {
			continue
		}
		if err := s.opener.Open(ctx, s.sendLink(scheme, profile.SendAction, string(encoded), rid)); err != nil {
			log.WithField("scheme", scheme).WithError(err).Debug("open wallet failed")
			continue
		}
		opened = true
		break
	}
	if !opened {
		return "", fmt.Errorf("%s: %w", session.Kind.DisplayName(), domain.ErrWalletUnavailable)
	}
	log.Info("waiting for wallet to send transaction")

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case result := <-results:
		if result.Err != nil {
			return "", result.Err
		}
		if result.TxHash == "" {
			return "", fmt.Errorf("send callback without transaction hash: %w", domain.ErrInvalidCallback)
		}
		log.WithField("tx_hash", result.TxHash).Info("wallet sent transaction")
		return result.TxHash, nil
	case <-timer.C:
		return "", fmt.Errorf("wallet did not report a transaction hash: %w", domain.ErrStatusUnknown)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Submitter) sendLink(scheme, action, request, rid string) string {
	callback := s.appScheme + "://send?" + url.Values{"rid": {rid}}.Encode()

	query := url.Values{}
	query.Set("request", request)
	query.Set("callback", callback)
	query.Set("rid", rid)
	query.Set("dappName", s.dappName)
	return scheme + "://" + action + "?" + query.Encode()
}

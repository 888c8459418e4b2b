package walletconnect

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/config"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
)

// Relay tags and TTLs for the session lifecycle methods.
const (
	tagSessionPropose       = 1100
	tagSessionSettleResp    = 1103
	tagSessionDelete        = 1112
	tagSessionDeleteResp    = 1113
	tagSessionPingResp      = 1115
	ttlFiveMinutes          = 5 * time.Minute
	ttlOneDay               = 24 * time.Hour
	ttlThirtySeconds        = 30 * time.Second
	userDisconnectedCode    = 6000
	userDisconnectedMessage = "User disconnected."
	namespaceStarknet       = "starknet"
)

var (
	starknetMethods = []string{"starknet_requestAccounts", "starknet_signMessage", "starknet_signTransaction"}
	starknetEvents  = []string{"accountsChanged", "chainChanged"}
)

type DialFunc func(ctx context.Context) (Relay, error)

type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

type Options struct {
	ChainID     string
	Metadata    Metadata
	Wallets     map[domain.WalletKind]config.WalletProfile
	Opener      ports.URLOpener
	Secrets     ports.SecretStore
	ProposalTTL time.Duration
	Logger      logrus.FieldLogger
}

// Adapter pairs with a wallet over the WalletConnect v2 relay. Settled
// sessions are read-only: the wallet reports an account but this side never
// asks it to sign.
type Adapter struct {
	dial     DialFunc
	sink     ports.TransportEventSink
	chainID  string
	metadata Metadata
	wallets  map[domain.WalletKind]config.WalletProfile
	opener   ports.URLOpener
	secrets  ports.SecretStore
	ttl      time.Duration
	logger   logrus.FieldLogger
	now      func() time.Time

	requestID atomic.Int64

	mu           sync.Mutex
	relay        Relay
	stopListen   context.CancelFunc
	listenDone   chan struct{}
	pairings     map[string]*pairing
	peerSessions map[string]*peerSession
}

type pairing struct {
	kind   domain.WalletKind
	symKey []byte
	self   keyPair
}

type peerSession struct {
	kind         domain.WalletKind
	symKey       []byte
	pairingTopic string
}

var (
	_ ports.ConnectionAdapter = (*Adapter)(nil)
	_ ports.PeerDisconnector  = (*Adapter)(nil)
)

func NewAdapter(dial DialFunc, sink ports.TransportEventSink, opts Options) *Adapter {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.ProposalTTL <= 0 {
		opts.ProposalTTL = ttlFiveMinutes
	}
	if opts.ChainID == "" {
		opts.ChainID = config.ChainSepolia
	}

	a := &Adapter{
		dial:         dial,
		sink:         sink,
		chainID:      opts.ChainID,
		metadata:     opts.Metadata,
		wallets:      opts.Wallets,
		opener:       opts.Opener,
		secrets:      opts.Secrets,
		ttl:          opts.ProposalTTL,
		logger:       opts.Logger,
		now:          time.Now,
		pairings:     map[string]*pairing{},
		peerSessions: map[string]*peerSession{},
	}
	a.requestID.Store(time.Now().UnixMilli() * 1000)
	return a
}

func (a *Adapter) Method() domain.ConnectMethod {
	return domain.ConnectWalletConnect
}

func (a *Adapter) Initiate(ctx context.Context, req domain.ConnectRequest) (domain.PendingConnection, error) {
	relay, err := a.connect(ctx)
	if err != nil {
		return domain.PendingConnection{}, fmt.Errorf("%w: %w", domain.ErrWalletUnavailable, err)
	}

	symKey, err := randomBytes(keySize)
	if err != nil {
		return domain.PendingConnection{}, err
	}
	topicBytes, err := randomBytes(keySize)
	if err != nil {
		return domain.PendingConnection{}, err
	}
	self, err := newKeyPair()
	if err != nil {
		return domain.PendingConnection{}, err
	}
	pairingTopic := hex.EncodeToString(topicBytes)

	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = a.now().Add(a.ttl)
	}

	a.mu.Lock()
	a.pairings[pairingTopic] = &pairing{kind: req.Kind, symKey: symKey, self: self}
	a.mu.Unlock()

	if err := a.propose(ctx, relay, pairingTopic, symKey, self, expiresAt); err != nil {
		a.mu.Lock()
		delete(a.pairings, pairingTopic)
		a.mu.Unlock()
		return domain.PendingConnection{}, err
	}

	uri := PairingURI(pairingTopic, symKey, expiresAt)
	link := a.openWallet(ctx, req.Kind, uri)

	a.logger.WithFields(logrus.Fields{
		"wallet":      req.Kind,
		"method":      domain.ConnectWalletConnect,
		"correlation": shortTopic(pairingTopic),
		"opened":      link != "",
	}).Info("session proposal published")

	return domain.PendingConnection{
		Kind:        req.Kind,
		Method:      domain.ConnectWalletConnect,
		Correlation: pairingTopic,
		URI:         uri,
		DeepLink:    link,
		ExpiresAt:   req.ExpiresAt,
		CanSign:     false,
	}, nil
}

// DisconnectPeer tells the wallet the session is over and forgets its key.
func (a *Adapter) DisconnectPeer(ctx context.Context, session domain.WalletSession) error {
	if session.PeerTopic == "" {
		return nil
	}

	symKey := a.sessionKey(ctx, session)
	defer a.forgetSession(ctx, session)
	if symKey == nil {
		return nil
	}

	relay, err := a.connect(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(rpcRequest{
		ID:      a.requestID.Inc(),
		JSONRPC: "2.0",
		Method:  "wc_sessionDelete",
		Params:  deleteParams{Code: userDisconnectedCode, Message: userDisconnectedMessage},
	})
	if err != nil {
		return fmt.Errorf("encode session delete: %w", err)
	}
	envelope, err := seal(symKey, body)
	if err != nil {
		return err
	}

	return relay.Publish(ctx, session.PeerTopic, envelope, ttlOneDay, tagSessionDelete)
}

// Close stops listening and drops the relay connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	relay, stop, done := a.relay, a.stopListen, a.listenDone
	a.relay, a.stopListen, a.listenDone = nil, nil, nil
	a.mu.Unlock()

	if relay == nil {
		return nil
	}
	stop()
	err := relay.Close()
	<-done
	return err
}

// PairingURI formats wc:<topic>@2?relay-protocol=irn&symKey=<hex>&expiryTimestamp=<unix>.
func PairingURI(topic string, symKey []byte, expiresAt time.Time) string {
	return fmt.Sprintf("wc:%s@2?relay-protocol=irn&symKey=%s&expiryTimestamp=%d", topic, hex.EncodeToString(symKey), expiresAt.Unix())
}

type rpcRequest struct {
	ID      int64  `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResult struct {
	ID      int64  `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Result  bool   `json:"result"`
}

type proposeParams struct {
	Relays             []relayProtocol      `json:"relays"`
	RequiredNamespaces map[string]namespace `json:"requiredNamespaces"`
	Proposer           proposer             `json:"proposer"`
	ExpiryTimestamp    int64                `json:"expiryTimestamp"`
}

type relayProtocol struct {
	Protocol string `json:"protocol"`
}

type namespace struct {
	Chains  []string `json:"chains"`
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

type proposer struct {
	PublicKey string   `json:"publicKey"`
	Metadata  Metadata `json:"metadata"`
}

type deleteParams struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (a *Adapter) propose(ctx context.Context, relay Relay, topic string, symKey []byte, self keyPair, expiresAt time.Time) error {
	if err := relay.Subscribe(ctx, topic); err != nil {
		return err
	}

	body, err := json.Marshal(rpcRequest{
		ID:      a.requestID.Inc(),
		JSONRPC: "2.0",
		Method:  "wc_sessionPropose",
		Params: proposeParams{
			Relays: []relayProtocol{{Protocol: "irn"}},
			RequiredNamespaces: map[string]namespace{
				namespaceStarknet: {
					Chains:  []string{namespaceStarknet + ":" + a.chainID},
					Methods: starknetMethods,
					Events:  starknetEvents,
				},
			},
			Proposer: proposer{
				PublicKey: hex.EncodeToString(self.public),
				Metadata:  a.metadata,
			},
			ExpiryTimestamp: expiresAt.Unix(),
		},
	})
	if err != nil {
		return fmt.Errorf("encode session proposal: %w", err)
	}

	envelope, err := seal(symKey, body)
	if err != nil {
		return err
	}
	return relay.Publish(ctx, topic, envelope, ttlFiveMinutes, tagSessionPropose)
}

// openWallet tries the wallet's schemes, then its universal link. An empty
// result means the user has to scan the QR code.
func (a *Adapter) openWallet(ctx context.Context, kind domain.WalletKind, uri string) string {
	if a.opener == nil {
		return ""
	}
	profile := a.wallets[kind]
	action := profile.WCAction
	if action == "" {
		action = "wc"
	}
	escaped := url.QueryEscape(uri)

	for _, scheme := range profile.Schemes {
		if !a.opener.CanOpen(ctx, scheme) {
			continue
		}
		link := scheme + "://" + action + "?uri=" + escaped
		if err := a.opener.Open(ctx, link); err == nil {
			return link
		}
	}

	if profile.UniversalLink != "" {
		link := profile.UniversalLink + "?uri=" + escaped
		if err := a.opener.Open(ctx, link); err == nil {
			return link
		}
	}
	return ""
}

func (a *Adapter) connect(ctx context.Context) (Relay, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.relay != nil {
		return a.relay, nil
	}

	relay, err := a.dial(ctx)
	if err != nil {
		return nil, err
	}

	listenCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.relay, a.stopListen, a.listenDone = relay, stop, done
	go a.listen(listenCtx, relay, done)

	return relay, nil
}

func (a *Adapter) listen(ctx context.Context, relay Relay, done chan struct{}) {
	defer close(done)

	for msg := range relay.Messages() {
		a.handle(ctx, relay, msg)
	}

	a.mu.Lock()
	if a.relay == relay {
		a.relay = nil
		a.stopListen = nil
		a.listenDone = nil
	}
	a.mu.Unlock()
	a.logger.Debug("walletconnect relay closed")
}

func (a *Adapter) handle(ctx context.Context, relay Relay, msg RelayMessage) {
	a.mu.Lock()
	pair, isPairing := a.pairings[msg.Topic]
	session, isSession := a.peerSessions[msg.Topic]
	a.mu.Unlock()

	switch {
	case isPairing:
		a.handlePairing(ctx, relay, msg, pair)
	case isSession:
		a.handleSession(ctx, relay, msg, session)
	default:
		a.logger.WithField("topic", shortTopic(msg.Topic)).Debug("message on unknown topic")
	}
}

func (a *Adapter) handlePairing(ctx context.Context, relay Relay, msg RelayMessage, pair *pairing) {
	plaintext, err := unseal(pair.symKey, msg.Message)
	if err != nil {
		a.logger.WithError(err).Warn("undecryptable pairing message")
		return
	}
	frame := gjson.ParseBytes(plaintext)
	log := a.logger.WithFields(logrus.Fields{"wallet": pair.kind, "correlation": shortTopic(msg.Topic)})

	if errMsg := frame.Get("error.message"); errMsg.Exists() {
		a.dropPairing(msg.Topic)
		log.WithField("reason", errMsg.String()).Info("session proposal rejected")
		a.sink.RouteEvent(ctx, domain.TransportEvent{Kind: domain.EventSessionReject, Topic: msg.Topic, Reason: errMsg.String()})
		return
	}

	responder := frame.Get("result.responderPublicKey").String()
	if responder == "" {
		return
	}

	symKey, err := deriveSymKey(pair.self.private, responder)
	if err != nil {
		log.WithError(err).Warn("session key agreement failed")
		a.dropPairing(msg.Topic)
		a.sink.RouteEvent(ctx, domain.TransportEvent{Kind: domain.EventSessionInvalid, Topic: msg.Topic, Reason: "key agreement failed"})
		return
	}
	sessionTopic := topicFor(symKey)

	a.mu.Lock()
	a.peerSessions[sessionTopic] = &peerSession{kind: pair.kind, symKey: symKey, pairingTopic: msg.Topic}
	a.mu.Unlock()

	if err := relay.Subscribe(ctx, sessionTopic); err != nil {
		log.WithError(err).Warn("subscribe session topic")
		return
	}
	log.Debug("session proposal approved, awaiting settle")
}

func (a *Adapter) handleSession(ctx context.Context, relay Relay, msg RelayMessage, session *peerSession) {
	plaintext, err := unseal(session.symKey, msg.Message)
	if err != nil {
		a.logger.WithError(err).Warn("undecryptable session message")
		return
	}
	frame := gjson.ParseBytes(plaintext)
	id := frame.Get("id").Int()
	log := a.logger.WithFields(logrus.Fields{"wallet": session.kind, "topic": shortTopic(msg.Topic)})

	switch method := frame.Get("method").String(); method {
	case "wc_sessionSettle":
		a.respond(ctx, relay, msg.Topic, session.symKey, id, tagSessionSettleResp, ttlFiveMinutes)
		a.dropPairing(session.pairingTopic)

		address := accountAddress(frame.Get("params.namespaces." + namespaceStarknet + ".accounts.0").String())
		if address == "" {
			log.Warn("settle without starknet account")
			a.mu.Lock()
			delete(a.peerSessions, msg.Topic)
			a.mu.Unlock()
			a.sink.RouteEvent(ctx, domain.TransportEvent{Kind: domain.EventSessionInvalid, Topic: session.pairingTopic, Reason: domain.ErrMissingAddress.Error()})
			return
		}

		log.Info("session settled")
		a.sink.RouteEvent(ctx, domain.TransportEvent{
			Kind:  domain.EventSessionSettle,
			Topic: session.pairingTopic,
			Account: domain.ConnectedAccount{
				Address:   address,
				Name:      frame.Get("params.controller.metadata.name").String(),
				PeerTopic: msg.Topic,
				CanSign:   false,
			},
			SessionKey: hex.EncodeToString(session.symKey),
		})
	case "wc_sessionDelete":
		a.respond(ctx, relay, msg.Topic, session.symKey, id, tagSessionDeleteResp, ttlOneDay)
		a.mu.Lock()
		delete(a.peerSessions, msg.Topic)
		a.mu.Unlock()

		log.Info("wallet ended session")
		a.sink.RouteEvent(ctx, domain.TransportEvent{
			Kind:   domain.EventSessionDelete,
			Topic:  msg.Topic,
			Reason: frame.Get("params.message").String(),
		})
	case "wc_sessionPing":
		a.respond(ctx, relay, msg.Topic, session.symKey, id, tagSessionPingResp, ttlThirtySeconds)
	default:
		log.WithField("rpc_method", method).Debug("ignored session message")
	}
}

func (a *Adapter) respond(ctx context.Context, relay Relay, topic string, symKey []byte, id int64, tag int, ttl time.Duration) {
	body, err := json.Marshal(rpcResult{ID: id, JSONRPC: "2.0", Result: true})
	if err != nil {
		return
	}
	envelope, err := seal(symKey, body)
	if err != nil {
		a.logger.WithError(err).Warn("seal relay response")
		return
	}
	if err := relay.Publish(ctx, topic, envelope, ttl, tag); err != nil {
		a.logger.WithError(err).Warn("publish relay response")
	}
}

func (a *Adapter) dropPairing(topic string) {
	a.mu.Lock()
	delete(a.pairings, topic)
	a.mu.Unlock()
}

func (a *Adapter) sessionKey(ctx context.Context, session domain.WalletSession) []byte {
	a.mu.Lock()
	known, ok := a.peerSessions[session.PeerTopic]
	a.mu.Unlock()
	if ok {
		return known.symKey
	}
	if a.secrets == nil {
		return nil
	}

	stored, err := a.secrets.Get(ctx, domain.SessionKeySecretRef(session.Kind))
	if err != nil {
		return nil
	}
	symKey, err := hex.DecodeString(strings.TrimSpace(stored))
	if err != nil || topicFor(symKey) != session.PeerTopic {
		return nil
	}
	return symKey
}

func (a *Adapter) forgetSession(ctx context.Context, session domain.WalletSession) {
	a.mu.Lock()
	delete(a.peerSessions, session.PeerTopic)
	a.mu.Unlock()

	if a.secrets == nil {
		return
	}
	if err := a.secrets.Delete(ctx, domain.SessionKeySecretRef(session.Kind)); err != nil {
		a.logger.WithError(err).Warn("delete session key")
	}
}

// accountAddress takes the address out of a CAIP-10 id such as
// starknet:SN_SEPOLIA:0xabc.
func accountAddress(caip10 string) string {
	if caip10 == "" {
		return ""
	}
	parts := strings.Split(caip10, ":")
	return parts[len(parts)-1]
}

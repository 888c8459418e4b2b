package walletconnect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"
)

var errRelayClosed = errors.New("relay connection closed")

// Relay is the publish/subscribe transport between dapp and wallet.
type Relay interface {
	Subscribe(ctx context.Context, topic string) error
	Publish(ctx context.Context, topic, message string, ttl time.Duration, tag int) error
	Messages() <-chan RelayMessage
	Close() error
}

type RelayMessage struct {
	Topic   string
	Message string
}

type relayRequest struct {
	ID      int64  `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type publishParams struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
	TTL     int64  `json:"ttl"`
	Tag     int    `json:"tag"`
	Prompt  bool   `json:"prompt"`
}

// wsRelay speaks the irn JSON-RPC protocol over a websocket.
type wsRelay struct {
	conn   *websocket.Conn
	logger logrus.FieldLogger

	writeMu sync.Mutex
	nextID  atomic.Int64
	closed  atomic.Bool

	pendingMu sync.Mutex
	pending   map[int64]chan gjson.Result

	messages chan RelayMessage
	done     chan struct{}
}

// DialRelay connects to relayURL, passing projectID and the auth token as
// query parameters.
func DialRelay(ctx context.Context, relayURL, projectID, authToken string, logger logrus.FieldLogger) (Relay, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	u, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	query := u.Query()
	if projectID != "" {
		query.Set("projectId", projectID)
	}
	if authToken != "" {
		query.Set("auth", authToken)
	}
	u.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial walletconnect relay: %w", err)
	}

	relay := &wsRelay{
		conn:     conn,
		logger:   logger,
		pending:  map[int64]chan gjson.Result{},
		messages: make(chan RelayMessage, 16),
		done:     make(chan struct{}),
	}
	relay.nextID.Store(time.Now().UnixMilli() * 1000)
	go relay.readLoop()

	return relay, nil
}

func (r *wsRelay) Subscribe(ctx context.Context, topic string) error {
	_, err := r.request(ctx, "irn_subscribe", map[string]string{"topic": topic})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", shortTopic(topic), err)
	}
	return nil
}

func (r *wsRelay) Publish(ctx context.Context, topic, message string, ttl time.Duration, tag int) error {
	_, err := r.request(ctx, "irn_publish", publishParams{
		Topic:   topic,
		Message: message,
		TTL:     int64(ttl / time.Second),
		Tag:     tag,
		Prompt:  true,
	})
	if err != nil {
		return fmt.Errorf("publish %s tag %d: %w", shortTopic(topic), tag, err)
	}
	return nil
}

func (r *wsRelay) Messages() <-chan RelayMessage {
	return r.messages
}

func (r *wsRelay) Close() error {
	if !r.closed.CAS(false, true) {
		return nil
	}
	r.writeMu.Lock()
	_ = r.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	r.writeMu.Unlock()
	err := r.conn.Close()
	<-r.done
	return err
}

func (r *wsRelay) request(ctx context.Context, method string, params any) (gjson.Result, error) {
	if r.closed.Load() {
		return gjson.Result{}, errRelayClosed
	}

	id := r.nextID.Inc()
	reply := make(chan gjson.Result, 1)
	r.pendingMu.Lock()
	r.pending[id] = reply
	r.pendingMu.Unlock()
	defer func() {
		r.pendingMu.Lock()
		delete(r.pending, id)
		r.pendingMu.Unlock()
	}()

	if err := r.write(relayRequest{ID: id, JSONRPC: "2.0", Method: method, Params: params}); err != nil {
		return gjson.Result{}, err
	}

	select {
	case frame := <-reply:
		if errMsg := frame.Get("error.message"); errMsg.Exists() {
			return gjson.Result{}, fmt.Errorf("relay %s: %s", method, errMsg.String())
		}
		return frame.Get("result"), nil
	case <-r.done:
		return gjson.Result{}, errRelayClosed
	case <-ctx.Done():
		return gjson.Result{}, ctx.Err()
	}
}

func (r *wsRelay) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode relay frame: %w", err)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write relay frame: %w", err)
	}
	return nil
}

func (r *wsRelay) readLoop() {
	defer close(r.done)
	defer close(r.messages)

	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			if !r.closed.Load() {
				r.logger.WithError(err).Warn("walletconnect relay read failed")
			}
			return
		}
		if msgType != websocket.TextMessage || !gjson.ValidBytes(data) {
			continue
		}

		frame := gjson.ParseBytes(data)
		if frame.Get("method").String() == "irn_subscription" {
			r.handleSubscription(frame)
			continue
		}

		id := frame.Get("id").Int()
		r.pendingMu.Lock()
		reply, ok := r.pending[id]
		r.pendingMu.Unlock()
		if ok {
			reply <- frame
		}
	}
}

func (r *wsRelay) handleSubscription(frame gjson.Result) {
	ack := map[string]any{"id": frame.Get("id").Int(), "jsonrpc": "2.0", "result": true}
	if err := r.write(ack); err != nil {
		r.logger.WithError(err).Warn("ack relay subscription")
	}

	msg := RelayMessage{
		Topic:   frame.Get("params.data.topic").String(),
		Message: frame.Get("params.data.message").String(),
	}
	if msg.Topic == "" || msg.Message == "" {
		return
	}

	select {
	case r.messages <- msg:
	default:
		r.logger.WithField("topic", shortTopic(msg.Topic)).Warn("relay message dropped, consumer is behind")
	}
}

func shortTopic(topic string) string {
	if len(topic) > 8 {
		return topic[:8]
	}
	return topic
}

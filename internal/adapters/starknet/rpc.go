package starknet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/NethermindEth/starknet.go/utils"
	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

const (
	defaultBlockTag       = "latest"
	defaultRequestTimeout = 15 * time.Second

	// codeTxnHashNotFound is returned while a submitted transaction has not
	// reached the node yet.
	codeTxnHashNotFound = 29
)

var _ ports.ChainReader = (*Client)(nil)

// Client is a minimal Starknet JSON-RPC client.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    ratelimit.Limiter
	blockTag   string
	timeout    time.Duration
	logger     logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithRateLimit paces outgoing requests. Zero or negative disables pacing.
func WithRateLimit(perSecond int) Option {
	return func(client *Client) {
		if perSecond > 0 {
			client.limiter = ratelimit.New(perSecond)
		} else {
			client.limiter = ratelimit.NewUnlimited()
		}
	}
}

func WithBlockTag(tag string) Option {
	return func(client *Client) {
		if strings.TrimSpace(tag) != "" {
			client.blockTag = tag
		}
	}
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(client *Client) {
		if timeout > 0 {
			client.timeout = timeout
		}
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

func NewClient(endpoint string, opts ...Option) *Client {
	client := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		limiter:    ratelimit.NewUnlimited(),
		blockTag:   defaultBlockTag,
		timeout:    defaultRequestTimeout,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Unwrap() error {
	return domain.ErrRPCServer
}

type functionCall struct {
	ContractAddress    string   `json:"contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	Calldata           []string `json:"calldata"`
}

// Selector returns the starknet_keccak selector of an entrypoint name.
func Selector(entrypoint string) string {
	return utils.GetSelectorFromNameFelt(entrypoint).String()
}

func (c *Client) Call(ctx context.Context, call domain.Call) ([]string, error) {
	calldata := call.Calldata
	if calldata == nil {
		calldata = []string{}
	}

	raw, err := c.callRPC(ctx, "starknet_call", []any{
		functionCall{
			ContractAddress:    call.ContractAddress,
			EntryPointSelector: Selector(call.Entrypoint),
			Calldata:           calldata,
		},
		c.blockTag,
	})
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", call.Entrypoint, err)
	}

	var result []string
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("call %s: decode result: %w: %w", call.Entrypoint, domain.ErrMalformedResponse, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("call %s: empty result: %w", call.Entrypoint, domain.ErrMalformedResponse)
	}

	return result, nil
}

// CallU256 calls a view returning a u256 as [low, high].
func (c *Client) CallU256(ctx context.Context, call domain.Call) (*big.Int, error) {
	result, err := c.Call(ctx, call)
	if err != nil {
		return nil, err
	}

	low, err := domain.ParseUint(result[0])
	if err != nil {
		return nil, fmt.Errorf("call %s: low word: %w", call.Entrypoint, domain.ErrMalformedResponse)
	}
	high := new(big.Int)
	if len(result) > 1 {
		high, err = domain.ParseUint(result[1])
		if err != nil {
			return nil, fmt.Errorf("call %s: high word: %w", call.Entrypoint, domain.ErrMalformedResponse)
		}
	}

	return domain.JoinU256(low, high), nil
}

type transactionStatus struct {
	FinalityStatus  string `json:"finality_status"`
	ExecutionStatus string `json:"execution_status"`
}

// TransactionStatus maps starknet_getTransactionStatus onto TxStatus. A hash
// the node does not know yet is reported as received.
func (c *Client) TransactionStatus(ctx context.Context, txHash string) (domain.TxStatus, error) {
	raw, err := c.callRPC(ctx, "starknet_getTransactionStatus", []any{txHash})
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == codeTxnHashNotFound {
			return domain.TxStatusReceived, nil
		}
		return domain.TxStatusUnknown, fmt.Errorf("transaction status %s: %w", txHash, err)
	}

	var status transactionStatus
	if err := json.Unmarshal(raw, &status); err != nil || status.FinalityStatus == "" {
		return domain.TxStatusUnknown, fmt.Errorf("transaction status %s: %w", txHash, domain.ErrMalformedResponse)
	}

	switch {
	case status.FinalityStatus == "REJECTED":
		return domain.TxStatusRejected, nil
	case status.ExecutionStatus == "REVERTED":
		return domain.TxStatusReverted, nil
	case status.FinalityStatus == "ACCEPTED_ON_L2", status.FinalityStatus == "ACCEPTED_ON_L1":
		return domain.TxStatusSucceeded, nil
	default:
		return domain.TxStatusReceived, nil
	}
}

func (c *Client) Nonce(ctx context.Context, address string) (*big.Int, error) {
	raw, err := c.callRPC(ctx, "starknet_getNonce", []any{c.blockTag, address})
	if err != nil {
		return nil, fmt.Errorf("nonce %s: %w", address, err)
	}

	var nonceHex string
	if err := json.Unmarshal(raw, &nonceHex); err != nil {
		return nil, fmt.Errorf("nonce %s: %w", address, domain.ErrMalformedResponse)
	}
	nonce, err := domain.ParseUint(nonceHex)
	if err != nil {
		return nil, fmt.Errorf("nonce %s: %w", address, domain.ErrMalformedResponse)
	}

	return nonce, nil
}

func (c *Client) ChainID(ctx context.Context) (string, error) {
	raw, err := c.callRPC(ctx, "starknet_chainId", []any{})
	if err != nil {
		return "", fmt.Errorf("chain id: %w", err)
	}

	var chainID string
	if err := json.Unmarshal(raw, &chainID); err != nil || chainID == "" {
		return "", fmt.Errorf("chain id: %w", domain.ErrMalformedResponse)
	}
	return chainID, nil
}

// InvokeTransaction is a signed INVOKE v1 transaction.
type InvokeTransaction struct {
	SenderAddress string
	Calldata      []string
	MaxFee        *big.Int
	Nonce         *big.Int
	Signature     []string
}

func (c *Client) AddInvokeTransaction(ctx context.Context, tx InvokeTransaction) (string, error) {
	payload := map[string]any{
		"type":           "INVOKE",
		"sender_address": tx.SenderAddress,
		"calldata":       tx.Calldata,
		"max_fee":        domain.HexFelt(tx.MaxFee),
		"version":        "0x1",
		"signature":      tx.Signature,
		"nonce":          domain.HexFelt(tx.Nonce),
	}

	raw, err := c.callRPC(ctx, "starknet_addInvokeTransaction", []any{payload})
	if err != nil {
		return "", fmt.Errorf("add invoke transaction: %w", err)
	}

	var result struct {
		TransactionHash string `json:"transaction_hash"`
	}
	if err := json.Unmarshal(raw, &result); err != nil || result.TransactionHash == "" {
		return "", fmt.Errorf("add invoke transaction: %w", domain.ErrMalformedResponse)
	}

	return result.TransactionHash, nil
}

func (c *Client) callRPC(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(&jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}

	c.limiter.Take()

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w: %w", method, domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w: %w", method, domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w: %w", method, domain.ErrTransport, err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"status":   resp.StatusCode,
		"duration": time.Since(started).Round(time.Millisecond),
	}).Debug("starknet rpc")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: http status %d: %w", method, resp.StatusCode, domain.ErrRPCServer)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("%s: decode envelope: %w: %w", method, domain.ErrMalformedResponse, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil, fmt.Errorf("%s: missing result: %w", method, domain.ErrMalformedResponse)
	}

	return rpcResp.Result, nil
}

package starknet

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      int               `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func newRPCServer(t *testing.T, handler func(t *testing.T, req recordedRequest) (int, string)) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := handler(t, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientCallSendsFunctionCall(t *testing.T) {
	t.Parallel()

	server := newRPCServer(t, func(t *testing.T, req recordedRequest) (int, string) {
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, 1, req.ID)
		assert.Equal(t, "starknet_call", req.Method)
		require.Len(t, req.Params, 2)

		var call functionCall
		require.NoError(t, json.Unmarshal(req.Params[0], &call))
		assert.Equal(t, "0xtoken", call.ContractAddress)
		assert.Equal(t, Selector("balanceOf"), call.EntryPointSelector)
		assert.Equal(t, []string{"0xabc"}, call.Calldata)
		assert.JSONEq(t, `"latest"`, string(req.Params[1]))

		return http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":["0x8ac7230489e80000","0x0"]}`
	})

	client := NewClient(server.URL)
	value, err := client.CallU256(context.Background(), domain.Call{
		ContractAddress: "0xtoken",
		Entrypoint:      "balanceOf",
		Calldata:        []string{"0xabc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000000", value.String())
}

func TestSelectorMatchesKnownValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0x2e4263afad30923c891518314c3c95dbe830a16874e8abc5777a9a20b54c76e", Selector("balanceOf"))
}

func TestClientErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "http error", status: http.StatusBadGateway, body: `bad gateway`, wantErr: domain.ErrRPCServer},
		{name: "rpc error", status: http.StatusOK, body: `{"jsonrpc":"2.0","id":1,"error":{"code":21,"message":"Invalid message selector"}}`, wantErr: domain.ErrRPCServer},
		{name: "missing result", status: http.StatusOK, body: `{"jsonrpc":"2.0","id":1}`, wantErr: domain.ErrMalformedResponse},
		{name: "empty result", status: http.StatusOK, body: `{"jsonrpc":"2.0","id":1,"result":[]}`, wantErr: domain.ErrMalformedResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: domain.ErrMalformedResponse},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := newRPCServer(t, func(*testing.T, recordedRequest) (int, string) {
				return tc.status, tc.body
			})

			_, err := NewClient(server.URL).Call(context.Background(), domain.Call{ContractAddress: "0x1", Entrypoint: "balance_of"})
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestClientTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url).Call(context.Background(), domain.Call{ContractAddress: "0x1", Entrypoint: "balance_of"})
	require.ErrorIs(t, err, domain.ErrTransport)
}

func TestClientTransactionStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want domain.TxStatus
	}{
		{name: "received", body: `{"result":{"finality_status":"RECEIVED"}}`, want: domain.TxStatusReceived},
		{name: "accepted", body: `{"result":{"finality_status":"ACCEPTED_ON_L2","execution_status":"SUCCEEDED"}}`, want: domain.TxStatusSucceeded},
		{name: "l1", body: `{"result":{"finality_status":"ACCEPTED_ON_L1","execution_status":"SUCCEEDED"}}`, want: domain.TxStatusSucceeded},
		{name: "reverted", body: `{"result":{"finality_status":"ACCEPTED_ON_L2","execution_status":"REVERTED"}}`, want: domain.TxStatusReverted},
		{name: "rejected", body: `{"result":{"finality_status":"REJECTED"}}`, want: domain.TxStatusRejected},
		{name: "not found yet", body: `{"error":{"code":29,"message":"Transaction hash not found"}}`, want: domain.TxStatusReceived},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := newRPCServer(t, func(t *testing.T, req recordedRequest) (int, string) {
				assert.Equal(t, "starknet_getTransactionStatus", req.Method)
				return http.StatusOK, tc.body
			})

			status, err := NewClient(server.URL).TransactionStatus(context.Background(), "0xfeed")
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestClientNonceAndInvoke(t *testing.T) {
	t.Parallel()

	server := newRPCServer(t, func(t *testing.T, req recordedRequest) (int, string) {
		switch req.Method {
		case "starknet_getNonce":
			assert.JSONEq(t, `"latest"`, string(req.Params[0]))
			assert.JSONEq(t, `"0xabc"`, string(req.Params[1]))
			return http.StatusOK, `{"result":"0x7"}`
		case "starknet_addInvokeTransaction":
			var tx map[string]any
			require.NoError(t, json.Unmarshal(req.Params[0], &tx))
			assert.Equal(t, "INVOKE", tx["type"])
			assert.Equal(t, "0x1", tx["version"])
			assert.Equal(t, "0x7", tx["nonce"])
			assert.Equal(t, "0x64", tx["max_fee"])
			return http.StatusOK, `{"result":{"transaction_hash":"0xfeed"}}`
		case "starknet_chainId":
			return http.StatusOK, `{"result":"0x534e5f5345504f4c4941"}`
		default:
			assert.Failf(t, "unexpected method", "%s", req.Method)
			return http.StatusInternalServerError, ""
		}
	})

	client := NewClient(server.URL, WithRateLimit(100))
	ctx := context.Background()

	nonce, err := client.Nonce(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(7), nonce.Int64())

	txHash, err := client.AddInvokeTransaction(ctx, InvokeTransaction{
		SenderAddress: "0xabc",
		Calldata:      []string{"0x0"},
		MaxFee:        big.NewInt(100),
		Nonce:         nonce,
		Signature:     []string{"0x1", "0x2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0xfeed", txHash)

	chainID, err := client.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.HexFelt(ShortString("SN_SEPOLIA")), chainID)
}

package domain

import (
	"context"
	"errors"
	"fmt"
)

// Connection errors.
var (
	ErrWalletUnavailable = errors.New("wallet unavailable")
	ErrUserRejected      = errors.New("user rejected request")
	ErrConnectTimeout    = errors.New("timed out waiting for wallet")
	ErrAlreadyConnecting = errors.New("connection already in progress")
	ErrInvalidCallback   = errors.New("invalid wallet callback")
	ErrMissingAddress    = errors.New("callback carries no address")
	ErrAlreadyConnected  = errors.New("wallet already connected")
)

// RPC errors.
var (
	ErrTransport         = errors.New("rpc transport error")
	ErrRPCServer         = errors.New("rpc server error")
	ErrMalformedResponse = errors.New("malformed rpc response")
)

// Vault operation errors.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrApprovalFailed      = errors.New("approval failed")
	ErrInvokeFailed        = errors.New("invoke failed")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrStatusUnknown       = errors.New("transaction status unknown")
	ErrNotConnected        = errors.New("wallet not connected")
	ErrSigningUnavailable  = errors.New("session cannot sign transactions")
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrNoPendingSession   = errors.New("no pending session for correlation")
	ErrInvalidTransition  = errors.New("invalid session transition")
	ErrSecretNotFound     = errors.New("secret not found")
	ErrInvalidPrivateKey  = errors.New("invalid private key")
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrRequestNotFound    = errors.New("no pending wallet request")
	ErrUnsupportedAdapter = errors.New("no adapter for connect method")
)

// OperationError reports which vault step failed and the transaction it was
// waiting on, if any.
type OperationError struct {
	Step   VaultStep
	TxHash string
	Err    error
}

func (e *OperationError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s (tx %s): %v", e.Step, e.TxHash, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// UserMessage maps an error to the reason shown to a person. It never returns
// an empty string for a non-nil error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrConfirmationTimeout), errors.Is(err, ErrStatusUnknown):
		return "transaction status unknown, check explorer" + txSuffix(err)
	case errors.Is(err, ErrWalletUnavailable):
		return "wallet app is not installed or cannot be opened"
	case errors.Is(err, ErrUserRejected):
		return "request was rejected in the wallet"
	case errors.Is(err, ErrConnectTimeout):
		return "wallet did not respond in time, approve the request in the wallet and try again"
	case errors.Is(err, ErrAlreadyConnecting):
		return "a connection to this wallet is already in progress"
	case errors.Is(err, ErrAlreadyConnected):
		return "this wallet is already connected, disconnect it first"
	case errors.Is(err, ErrMissingAddress), errors.Is(err, ErrInvalidCallback):
		return "wallet response did not include an account address"
	case errors.Is(err, ErrInsufficientBalance):
		return "not enough funds for this amount"
	case errors.Is(err, ErrApprovalFailed):
		return "token approval was not accepted on chain" + txSuffix(err)
	case errors.Is(err, ErrInvokeFailed):
		return "transaction was not accepted on chain" + txSuffix(err)
	case errors.Is(err, ErrNotConnected):
		return "no wallet connected"
	case errors.Is(err, ErrSigningUnavailable):
		return "the connected wallet is read-only, import a key or connect with a signing wallet"
	case errors.Is(err, ErrTransport):
		return "could not reach the Starknet node"
	case errors.Is(err, ErrRPCServer), errors.Is(err, ErrMalformedResponse):
		return "the Starknet node returned an unexpected response"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}

func txSuffix(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) && opErr.TxHash != "" {
		return " (tx " + opErr.TxHash + ")"
	}
	return ""
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type VaultOperation string

const (
	OperationDeposit  VaultOperation = "deposit"
	OperationWithdraw VaultOperation = "withdraw"
	OperationTransfer VaultOperation = "transfer"
)

type VaultStep string

const (
	StepCheckBalance      VaultStep = "check_balance"
	StepCheckAllowance    VaultStep = "check_allowance"
	StepApprove           VaultStep = "approve"
	StepInvoke            VaultStep = "invoke"
	StepAwaitConfirmation VaultStep = "await_confirmation"
	StepReloadBalances    VaultStep = "reload_balances"
)

type CallKind string

const (
	CallKindApprove CallKind = "approve"
	CallKindInvoke  CallKind = "invoke"
	CallKindCall    CallKind = "call"
)

// Call is one contract entrypoint invocation with hex-felt calldata.
type Call struct {
	ContractAddress string
	Entrypoint      string
	Calldata        []string
}

// PendingCall tracks one on-chain step from submission to confirmation.
type PendingCall struct {
	Kind                 CallKind
	Call                 Call
	Selector             string
	SubmittedTxHash      string
	ConfirmationAttempts int
	Status               TxStatus
}

type TxStatus string

const (
	TxStatusUnknown   TxStatus = "unknown"
	TxStatusReceived  TxStatus = "received"
	TxStatusSucceeded TxStatus = "succeeded"
	TxStatusReverted  TxStatus = "reverted"
	TxStatusRejected  TxStatus = "rejected"
)

func (s TxStatus) IsFinal() bool {
	return s == TxStatusSucceeded || s == TxStatusReverted || s == TxStatusRejected
}

// Balances is always derived from chain reads and never cached as truth.
type Balances struct {
	Address       string
	WalletBalance decimal.Decimal
	VaultBalance  decimal.Decimal
	FetchedAt     time.Time
}

type VaultResult struct {
	Operation VaultOperation
	Amount    decimal.Decimal
	Calls     []PendingCall
	Approved  bool
	Balances  Balances
}

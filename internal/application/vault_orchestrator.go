package application

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/bnema/starknet-wallet-bridge/internal/domain"
	"github.com/bnema/starknet-wallet-bridge/internal/logging"
	"github.com/bnema/starknet-wallet-bridge/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 30
)

// VaultContracts names the token and vault contracts and the entrypoints the
// flows call on them.
type VaultContracts struct {
	Token          string
	Vault          string
	BalanceOf      string
	Allowance      string
	Approve        string
	VaultBalanceOf string
	Deposit        string
	Withdraw       string
	TransferToUser string
}

type ActiveSessionSource interface {
	Active() (domain.WalletSession, bool)
}

type VaultOptions struct {
	Contracts    VaultContracts
	PollInterval time.Duration
	MaxAttempts  int
	Selector     func(entrypoint string) string
	Locker       ports.AddressLocker
	Clock        ports.Clock
	Logger       logrus.FieldLogger
}

// VaultOrchestrator runs deposit, withdraw and transfer for the active
// session: balance check, approval when the allowance is short, invoke,
// confirmation polling, balance reload. Steps never overlap and a failed step
// ends the flow without undoing earlier ones.
type VaultOrchestrator struct {
	chain        ports.ChainReader
	sessions     ActiveSessionSource
	submitter    ports.TransactionSubmitter
	contracts    VaultContracts
	pollInterval time.Duration
	maxAttempts  int
	selector     func(string) string
	locker       ports.AddressLocker
	clock        ports.Clock
	logger       logrus.FieldLogger
	wait         func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	latest domain.Balances
}

var _ ports.BalanceRefresher = (*VaultOrchestrator)(nil)

func NewVaultOrchestrator(chain ports.ChainReader, sessions ActiveSessionSource, submitter ports.TransactionSubmitter, opts VaultOptions) *VaultOrchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Locker == nil {
		opts.Locker = NewAddressLock()
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Selector == nil {
		opts.Selector = func(string) string { return "" }
	}

	return &VaultOrchestrator{
		chain:        chain,
		sessions:     sessions,
		submitter:    submitter,
		contracts:    opts.Contracts,
		pollInterval: opts.PollInterval,
		maxAttempts:  opts.MaxAttempts,
		selector:     opts.Selector,
		locker:       opts.Locker,
		clock:        opts.Clock,
		logger:       opts.Logger,
		wait:         sleep,
	}
}

func (o *VaultOrchestrator) Deposit(ctx context.Context, cmd DepositCommand) (domain.VaultResult, error) {
	return o.run(ctx, domain.OperationDeposit, cmd.Amount, func(ctx context.Context, flow *vaultFlow) error {
		balance, err := o.tokenBalance(ctx, flow.session.Address)
		if err != nil {
			return &domain.OperationError{Step: domain.StepCheckBalance, Err: err}
		}
		if balance.Cmp(flow.units) < 0 {
			return insufficient(balance, flow.amount)
		}

		allowance, err := o.chain.CallU256(ctx, domain.Call{
			ContractAddress: o.contracts.Token,
			Entrypoint:      o.contracts.Allowance,
			Calldata:        []string{flow.session.Address, o.contracts.Vault},
		})
		if err != nil {
			return &domain.OperationError{Step: domain.StepCheckAllowance, Err: err}
		}

		if allowance.Cmp(flow.units) < 0 {
			flow.log.WithField("allowance", domain.FormatAmount(domain.FromChainInt(allowance))).Info("approving vault")
			approve := domain.Call{
				ContractAddress: o.contracts.Token,
				Entrypoint:      o.contracts.Approve,
				Calldata:        append([]string{o.contracts.Vault}, flow.u256...),
			}
			if err := o.step(ctx, flow, domain.CallKindApprove, domain.StepApprove, approve); err != nil {
				return err
			}
			flow.result.Approved = true
		}

		return o.step(ctx, flow, domain.CallKindInvoke, domain.StepInvoke, domain.Call{
			ContractAddress: o.contracts.Vault,
			Entrypoint:      o.contracts.Deposit,
			Calldata:        flow.u256,
		})
	})
}

func (o *VaultOrchestrator) Withdraw(ctx context.Context, cmd WithdrawCommand) (domain.VaultResult, error) {
	return o.run(ctx, domain.OperationWithdraw, cmd.Amount, func(ctx context.Context, flow *vaultFlow) error {
		if err := o.requireVaultBalance(ctx, flow); err != nil {
			return err
		}
		return o.step(ctx, flow, domain.CallKindInvoke, domain.StepInvoke, domain.Call{
			ContractAddress: o.contracts.Vault,
			Entrypoint:      o.contracts.Withdraw,
			Calldata:        flow.u256,
		})
	})
}

// Transfer moves vault balance to another user's vault balance.
func (o *VaultOrchestrator) Transfer(ctx context.Context, cmd TransferCommand) (domain.VaultResult, error) {
	recipient, err := domain.NormalizeAddress(cmd.Recipient)
	if err != nil {
		return domain.VaultResult{}, err
	}

	return o.run(ctx, domain.OperationTransfer, cmd.Amount, func(ctx context.Context, flow *vaultFlow) error {
		if err := o.requireVaultBalance(ctx, flow); err != nil {
			return err
		}
		return o.step(ctx, flow, domain.CallKindInvoke, domain.StepInvoke, domain.Call{
			ContractAddress: o.contracts.Vault,
			Entrypoint:      o.contracts.TransferToUser,
			Calldata:        append([]string{recipient}, flow.u256...),
		})
	})
}

// Balances reads both balances of the active session.
func (o *VaultOrchestrator) Balances(ctx context.Context) (BalancesView, error) {
	session, err := o.activeSession()
	if err != nil {
		return BalancesView{}, err
	}
	balances, err := o.RefreshBalances(ctx, session.Address)
	if err != nil {
		return BalancesView{}, err
	}
	return newBalancesView(balances), nil
}

// RefreshBalances reads the token and vault balances of address concurrently
// and records them as the latest snapshot.
func (o *VaultOrchestrator) RefreshBalances(ctx context.Context, address string) (domain.Balances, error) {
	var (
		wg                  sync.WaitGroup
		wallet, vault       *big.Int
		walletErr, vaultErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		wallet, walletErr = o.tokenBalance(ctx, address)
	}()
	go func() {
		defer wg.Done()
		vault, vaultErr = o.vaultBalance(ctx, address)
	}()
	wg.Wait()

	if err := errors.Join(walletErr, vaultErr); err != nil {
		return domain.Balances{}, fmt.Errorf("balances of %s: %w", address, err)
	}

	balances := domain.Balances{
		Address:       address,
		WalletBalance: domain.FromChainInt(wallet),
		VaultBalance:  domain.FromChainInt(vault),
		FetchedAt:     o.clock.Now(),
	}

	o.mu.Lock()
	o.latest = balances
	o.mu.Unlock()

	o.logger.WithFields(logrus.Fields{
		"address": address,
		"wallet":  domain.FormatAmount(balances.WalletBalance),
		"vault":   domain.FormatAmount(balances.VaultBalance),
	}).Debug("balances refreshed")

	return balances, nil
}

// Latest returns the most recent balance snapshot, if any.
func (o *VaultOrchestrator) Latest() (domain.Balances, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest, o.latest.Address != ""
}

// AwaitConfirmation polls the status of a submitted call every poll interval
// until it is final or attempts run out. Running out, or ctx ending, leaves
// the outcome unknown rather than failed.
func (o *VaultOrchestrator) AwaitConfirmation(ctx context.Context, call domain.PendingCall) (domain.PendingCall, error) {
	log := o.logger.WithFields(logrus.Fields{"tx_hash": call.SubmittedTxHash, "kind": call.Kind})

	for call.ConfirmationAttempts < o.maxAttempts {
		if err := o.wait(ctx, o.pollInterval); err != nil {
			return call, fmt.Errorf("%w: %w", domain.ErrStatusUnknown, err)
		}
		call.ConfirmationAttempts++

		status, err := o.chain.TransactionStatus(ctx, call.SubmittedTxHash)
		if err != nil {
			log.WithError(err).WithField("attempt", call.ConfirmationAttempts).Debug("status poll failed")
			continue
		}
		call.Status = status

		switch status {
		case domain.TxStatusSucceeded:
			return call, nil
		case domain.TxStatusReverted, domain.TxStatusRejected:
			return call, fmt.Errorf("transaction %s: %w", status, failureFor(call.Kind))
		}
	}

	return call, fmt.Errorf("no final status after %d polls: %w", call.ConfirmationAttempts, domain.ErrConfirmationTimeout)
}

type vaultFlow struct {
	session domain.WalletSession
	amount  decimal.Decimal
	units   *big.Int
	u256    []string
	result  domain.VaultResult
	log     logrus.FieldLogger
}

func (o *VaultOrchestrator) run(ctx context.Context, op domain.VaultOperation, amount decimal.Decimal, body func(context.Context, *vaultFlow) error) (domain.VaultResult, error) {
	session, err := o.activeSession()
	if err != nil {
		return domain.VaultResult{}, err
	}

	units, err := domain.ChainUnitsInt(amount)
	if err != nil {
		return domain.VaultResult{}, err
	}
	if units.Sign() == 0 {
		return domain.VaultResult{}, fmt.Errorf("amount %s is zero: %w", amount, domain.ErrInvalidAmount)
	}
	u256, err := domain.U256Calldata(units)
	if err != nil {
		return domain.VaultResult{}, err
	}

	unlock, err := o.locker.Lock(ctx, session.Address)
	if err != nil {
		return domain.VaultResult{}, err
	}
	defer unlock()

	flow := &vaultFlow{
		session: session,
		amount:  amount,
		units:   units,
		u256:    u256,
		result:  domain.VaultResult{Operation: op, Amount: amount},
		log: o.logger.WithFields(logrus.Fields{
			"operation": op,
			"wallet":    session.Kind,
			"amount":    domain.FormatAmount(amount),
		}),
	}
	flow.log.Info("vault operation started")

	if err := body(ctx, flow); err != nil {
		flow.log.WithError(err).Warn("vault operation failed")
		return flow.result, err
	}

	balances, err := o.RefreshBalances(ctx, session.Address)
	if err != nil {
		return flow.result, &domain.OperationError{Step: domain.StepReloadBalances, Err: err}
	}
	flow.result.Balances = balances

	flow.log.Info("vault operation confirmed")
	return flow.result, nil
}

// step submits one call and waits for it to be final.
func (o *VaultOrchestrator) step(ctx context.Context, flow *vaultFlow, kind domain.CallKind, step domain.VaultStep, call domain.Call) error {
	pending := domain.PendingCall{
		Kind:     kind,
		Call:     call,
		Selector: o.selector(call.Entrypoint),
		Status:   domain.TxStatusUnknown,
	}

	txHash, err := o.submitter.SubmitInvoke(ctx, flow.session, []domain.Call{call})
	if err != nil {
		if errors.Is(err, domain.ErrStatusUnknown) {
			return &domain.OperationError{Step: step, Err: err}
		}
		return &domain.OperationError{Step: step, Err: fmt.Errorf("%w: %w", failureFor(kind), err)}
	}
	pending.SubmittedTxHash = txHash
	flow.log.WithFields(logrus.Fields{"step": step, "tx_hash": txHash}).Info("transaction submitted")

	confirmed, err := o.AwaitConfirmation(ctx, pending)
	flow.result.Calls = append(flow.result.Calls, confirmed)
	if err != nil {
		failedStep := step
		if errors.Is(err, domain.ErrConfirmationTimeout) || errors.Is(err, domain.ErrStatusUnknown) {
			failedStep = domain.StepAwaitConfirmation
		}
		return &domain.OperationError{Step: failedStep, TxHash: txHash, Err: err}
	}

	return nil
}

func (o *VaultOrchestrator) requireVaultBalance(ctx context.Context, flow *vaultFlow) error {
	balance, err := o.vaultBalance(ctx, flow.session.Address)
	if err != nil {
		return &domain.OperationError{Step: domain.StepCheckBalance, Err: err}
	}
	if balance.Cmp(flow.units) < 0 {
		return insufficient(balance, flow.amount)
	}
	return nil
}

func (o *VaultOrchestrator) tokenBalance(ctx context.Context, address string) (*big.Int, error) {
	return o.chain.CallU256(ctx, domain.Call{
		ContractAddress: o.contracts.Token,
		Entrypoint:      o.contracts.BalanceOf,
		Calldata:        []string{address},
	})
}

func (o *VaultOrchestrator) vaultBalance(ctx context.Context, address string) (*big.Int, error) {
	return o.chain.CallU256(ctx, domain.Call{
		ContractAddress: o.contracts.Vault,
		Entrypoint:      o.contracts.VaultBalanceOf,
		Calldata:        []string{address},
	})
}

func (o *VaultOrchestrator) activeSession() (domain.WalletSession, error) {
	session, ok := o.sessions.Active()
	if !ok || !session.IsConnected() {
		return domain.WalletSession{}, domain.ErrNotConnected
	}
	if session.Address == "" {
		return domain.WalletSession{}, fmt.Errorf("%s session: %w", session.Kind, domain.ErrMissingAddress)
	}
	return session, nil
}

func insufficient(have *big.Int, want decimal.Decimal) error {
	return &domain.OperationError{
		Step: domain.StepCheckBalance,
		Err: fmt.Errorf("have %s, need %s: %w",
			domain.FormatAmount(domain.FromChainInt(have)), domain.FormatAmount(want), domain.ErrInsufficientBalance),
	}
}

func failureFor(kind domain.CallKind) error {
	if kind == domain.CallKindApprove {
		return domain.ErrApprovalFailed
	}
	return domain.ErrInvokeFailed
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

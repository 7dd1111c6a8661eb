// Package txflow drives multi-transaction user actions through a fixed set of
// states and flattens their outcome into a Result.
package txflow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/dex"
	"dexPortal/internal/model"
	"dexPortal/internal/storage"
)

// State is a step of an orchestrated action.
type State string

const (
	Idle       State = "idle"
	Validating State = "validating"
	Approving  State = "approving"
	Submitting State = "submitting"
	Confirming State = "confirming"
	Settled    State = "settled"
	Failed     State = "failed"
)

var (
	// ErrValidation marks input rejected before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrReverted marks a mined transaction with status 0.
	ErrReverted = errors.New("transaction reverted")
)

// RevertError carries the hash and, when recoverable, the revert reason.
type RevertError struct {
	Step   string
	TxHash common.Hash
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s reverted (%s): %s", e.Step, e.TxHash.Hex(), e.Reason)
	}
	return fmt.Sprintf("%s reverted (%s)", e.Step, e.TxHash.Hex())
}

func (e *RevertError) Is(target error) bool { return target == ErrReverted }

// Invalid builds a validation error.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Step is one confirmed transaction inside a flow.
type Step struct {
	Name        string `json:"name"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Result is the flattened outcome of an action.
type Result struct {
	Success  bool     `json:"success"`
	TxHash   string   `json:"txHash,omitempty"`
	Error    string   `json:"error,omitempty"`
	Info     string   `json:"info,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Steps    []Step   `json:"steps,omitempty"`
}

// Observer is notified on every state change.
type Observer func(flow string, from, to State)

// Runner creates flows sharing one transactor.
type Runner struct {
	Tx       chain.Transactor
	Journal  storage.TxSink
	Logger   *zap.Logger
	Observer Observer
}

// Flow tracks a single action. It is not safe for concurrent use.
type Flow struct {
	name     string
	runner   *Runner
	logger   *zap.Logger
	state    State
	steps    []Step
	warnings []string
}

// Start begins a flow in the Idle state.
func (r *Runner) Start(name string) *Flow {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flow{
		name:   name,
		runner: r,
		logger: logger.With(zap.String("flow", name)),
		state:  Idle,
	}
}

// State returns the current state.
func (f *Flow) State() State { return f.state }

// Steps returns the confirmed steps so far.
func (f *Flow) Steps() []Step {
	out := make([]Step, len(f.steps))
	copy(out, f.steps)
	return out
}

// Transition moves the flow to state to.
func (f *Flow) Transition(to State) {
	from := f.state
	if from == to {
		return
	}
	f.state = to
	f.logger.Info("flow transition", zap.String("from", string(from)), zap.String("to", string(to)))
	if f.runner.Observer != nil {
		f.runner.Observer(f.name, from, to)
	}
}

// Warn records a non-fatal problem that is still reported to the caller.
func (f *Flow) Warn(msg string, fields ...zap.Field) {
	f.warnings = append(f.warnings, msg)
	f.logger.Warn(msg, fields...)
}

// Fail moves to Failed and returns the flattened failure.
func (f *Flow) Fail(err error) Result {
	f.Transition(Failed)
	f.logger.Warn("flow failed", zap.Error(err))
	return Result{Success: false, Error: err.Error(), Warnings: f.warnings, Steps: f.Steps()}
}

// Succeed moves to Settled and returns the flattened success.
func (f *Flow) Succeed(txHash, info string) Result {
	f.Transition(Settled)
	return Result{Success: true, TxHash: txHash, Info: info, Warnings: f.warnings, Steps: f.Steps()}
}

// EnsureAllowance approves spender for amount when the current allowance is short.
// It returns the approve hash, or the zero hash when no approval was needed.
func (f *Flow) EnsureAllowance(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	f.Transition(Approving)
	tx := f.runner.Tx

	need, overflow := uint256.FromBig(amount)
	if overflow || amount.Sign() < 0 {
		return common.Hash{}, Invalid("amount out of range: %s", amount)
	}
	current, err := dex.Allowance(ctx, tx, token, tx.From(), spender)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read allowance: %w", err)
	}
	have, overflow := uint256.FromBig(current)
	if !overflow && !have.Lt(need) {
		f.logger.Debug("allowance sufficient", zap.String("token", token.Hex()), zap.String("allowance", current.String()))
		return common.Hash{}, nil
	}

	data, err := dex.PackApprove(spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	receipt, err := f.SubmitAndConfirm(ctx, "approve "+token.Hex(), chain.TxRequest{To: token, Data: data})
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// SubmitAndConfirm sends req and waits for one confirmation.
func (f *Flow) SubmitAndConfirm(ctx context.Context, step string, req chain.TxRequest) (*types.Receipt, error) {
	f.Transition(Submitting)
	tx := f.runner.Tx

	hash, err := tx.Send(ctx, req)
	if err != nil {
		if reason, ok := chain.RevertReason(err); ok {
			return nil, fmt.Errorf("%s: %w", step, &RevertError{Step: step, Reason: reason})
		}
		return nil, fmt.Errorf("%s: %w", step, err)
	}
	f.logger.Info("tx submitted", zap.String("step", step), zap.String("hash", hash.Hex()))

	f.Transition(Confirming)
	receipt, err := tx.WaitReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		revertErr := &RevertError{Step: step, TxHash: hash, Reason: f.replayReason(ctx, req, receipt)}
		f.journal(step, req, receipt, revertErr)
		return nil, revertErr
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	f.steps = append(f.steps, Step{Name: step, TxHash: hash.Hex(), BlockNumber: block})
	f.journal(step, req, receipt, nil)
	f.logger.Info("tx confirmed", zap.String("step", step), zap.String("hash", hash.Hex()), zap.Uint64("block", block))
	return receipt, nil
}

func (f *Flow) replayReason(ctx context.Context, req chain.TxRequest, receipt *types.Receipt) string {
	tx := f.runner.Tx
	_, err := tx.CallContract(ctx, ethereum.CallMsg{
		From:  tx.From(),
		To:    &req.To,
		Value: req.Value,
		Data:  req.Data,
	}, receipt.BlockNumber)
	if reason, ok := chain.RevertReason(err); ok {
		return reason
	}
	return ""
}

func (f *Flow) journal(step string, req chain.TxRequest, receipt *types.Receipt, stepErr error) {
	if f.runner.Journal == nil {
		return
	}
	record := model.TxRecord{
		Flow:       f.name,
		Step:       step,
		From:       f.runner.Tx.From().Hex(),
		To:         req.To.Hex(),
		TxHash:     receipt.TxHash.Hex(),
		Status:     string(Settled),
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if receipt.BlockNumber != nil {
		record.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if stepErr != nil {
		record.Status = "reverted"
		record.Error = stepErr.Error()
	}
	if err := f.runner.Journal.PutTxRecords([]model.TxRecord{record}); err != nil {
		f.logger.Warn("journal write failed", zap.String("step", step), zap.Error(err))
	}
}

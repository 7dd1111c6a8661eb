// Package faucet dispenses testnet tokens and records who received what.
package faucet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/dex"
	"dexPortal/internal/model"
	"dexPortal/internal/txflow"
	"dexPortal/internal/units"
)

const DefaultCooldown = 24 * time.Hour

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrUnknownToken   = errors.New("unknown faucet token")
	ErrNotConfigured  = errors.New("faucet is not configured")
)

// Status is the per-token outcome.
type Status string

const (
	StatusSuccess       Status = "success"
	StatusError         Status = "error"
	StatusAlreadyMinted Status = "already_minted"
	StatusCooldown      Status = "cooldown"
	StatusSystemError   Status = "system_error"
)

// Informational reports whether the status is a deliberate skip rather than a failure.
func (s Status) Informational() bool {
	return s == StatusAlreadyMinted || s == StatusCooldown
}

// TokenResult is one entry of a Report.
type TokenResult struct {
	Token       string `json:"token"`
	Status      Status `json:"status"`
	TxHash      string `json:"txHash,omitempty"`
	Recipient   string `json:"recipient,omitempty"`
	Amount      string `json:"amount,omitempty"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	Error       string `json:"error,omitempty"`
	RetryAfter  string `json:"retryAfter,omitempty"`
}

// Report is the response body of a faucet request.
type Report struct {
	Message                 string        `json:"message"`
	AllOperationsSuccessful bool          `json:"allOperationsSuccessful"`
	Results                 []TokenResult `json:"results"`
}

// Ledger persists users and dispensations.
type Ledger interface {
	GetUser(ctx context.Context, wallet string) (model.User, bool, error)
	// UpsertUser is idempotent and reports whether the user was created.
	UpsertUser(ctx context.Context, wallet string) (bool, error)
	LastMint(ctx context.Context, wallet, symbol string) (model.MintRecord, bool, error)
	RecordMint(ctx context.Context, record model.MintRecord) error
}

// Config tunes the faucet.
type Config struct {
	Tokens   []Token
	Cooldown time.Duration
}

// Service dispenses tokens from one funded account.
type Service struct {
	tokens   []Token
	cooldown time.Duration
	runner   *txflow.Runner
	ledger   Ledger
	locker   Locker
	logger   *zap.Logger
	now      func() time.Time
}

// NewService builds a faucet. runner may be nil when only user
// registration is needed; Dispense then returns ErrNotConfigured.
func NewService(cfg Config, runner *txflow.Runner, ledger Ledger, locker Locker, logger *zap.Logger) (*Service, error) {
	if ledger == nil {
		return nil, fmt.Errorf("faucet ledger is nil")
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if len(cfg.Tokens) == 0 {
		cfg.Tokens = DefaultTokens()
	}
	return &Service{
		tokens:   cfg.Tokens,
		cooldown: cfg.Cooldown,
		runner:   runner,
		ledger:   ledger,
		locker:   locker,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// ParseWallet validates a wallet address and returns it checksummed.
func ParseWallet(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return common.Address{}, fmt.Errorf("%w: wallet address is required", ErrInvalidAddress)
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, input)
	}
	return common.HexToAddress(input), nil
}

// RegisterUser records a wallet and reports whether it was new.
func (s *Service) RegisterUser(ctx context.Context, wallet string) (bool, model.User, error) {
	addr, err := ParseWallet(wallet)
	if err != nil {
		return false, model.User{}, err
	}
	created, err := s.ledger.UpsertUser(ctx, addr.Hex())
	if err != nil {
		return false, model.User{}, fmt.Errorf("upsert user: %w", err)
	}
	user, ok, err := s.ledger.GetUser(ctx, addr.Hex())
	if err != nil {
		return created, model.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		user = model.User{WalletAddress: addr.Hex()}
	}
	return created, user, nil
}

// Dispense sends every catalogue token, or only symbol when it is not empty.
func (s *Service) Dispense(ctx context.Context, wallet, symbol string) (Report, error) {
	addr, err := ParseWallet(wallet)
	if err != nil {
		return Report{}, err
	}
	tokens, err := s.selectTokens(symbol)
	if err != nil {
		return Report{}, err
	}
	if s.runner == nil || s.runner.Tx == nil {
		return Report{}, ErrNotConfigured
	}

	results := make([]TokenResult, 0, len(tokens))
	for _, token := range tokens {
		result := s.dispenseOne(ctx, addr, token)
		s.logger.Info("faucet token processed",
			zap.String("wallet", addr.Hex()),
			zap.String("token", token.Symbol),
			zap.String("status", string(result.Status)),
			zap.String("tx_hash", result.TxHash),
		)
		results = append(results, result)
	}

	report := Report{AllOperationsSuccessful: true, Results: results}
	for _, r := range results {
		if r.Status != StatusSuccess && !r.Status.Informational() {
			report.AllOperationsSuccessful = false
		}
	}
	if report.AllOperationsSuccessful {
		report.Message = "All token operations successful."
	} else {
		report.Message = "Token processing completed, some operations may have failed."
	}
	return report, nil
}

func (s *Service) selectTokens(symbol string) ([]Token, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return s.tokens, nil
	}
	for _, token := range s.tokens {
		if strings.EqualFold(token.Symbol, symbol) {
			return []Token{token}, nil
		}
	}
	return nil, fmt.Errorf("%w: token symbol '%s' not found", ErrUnknownToken, symbol)
}

func (s *Service) dispenseOne(ctx context.Context, wallet common.Address, token Token) TokenResult {
	result := TokenResult{Token: token.Symbol, Recipient: wallet.Hex()}
	fail := func(err error) TokenResult {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	last, minted, err := s.ledger.LastMint(ctx, wallet.Hex(), token.Symbol)
	if err != nil {
		return fail(fmt.Errorf("read ledger: %w", err))
	}
	if minted && token.Once {
		result.Status = StatusAlreadyMinted
		return result
	}
	if minted {
		if next := last.MintedAt.Add(s.cooldown); s.now().Before(next) {
			result.Status = StatusCooldown
			result.RetryAfter = next.UTC().Format(time.RFC3339)
			return result
		}
	}

	unlock, ok, err := s.locker.TryLock(ctx, wallet.Hex()+":"+strings.ToUpper(token.Symbol), s.cooldown)
	if err != nil {
		return fail(fmt.Errorf("acquire lock: %w", err))
	}
	if !ok {
		result.Status = StatusCooldown
		return result
	}
	release := func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("faucet lock release failed", zap.String("token", token.Symbol), zap.Error(err))
		}
	}

	amount, req, err := s.buildRequest(ctx, wallet, token)
	if err != nil {
		release()
		return fail(err)
	}
	result.Amount = amount.String()

	flow := s.runner.Start("faucet " + token.Symbol)
	receipt, err := flow.SubmitAndConfirm(ctx, "dispense "+token.Symbol, req)
	if err != nil {
		flow.Fail(err)
		release()
		return fail(err)
	}
	flow.Succeed(receipt.TxHash.Hex(), "")

	result.Status = StatusSuccess
	result.TxHash = receipt.TxHash.Hex()
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}

	// The lock stays held for the cooldown so other replicas see it.
	if err := s.record(ctx, wallet, token, result); err != nil {
		s.logger.Error("faucet ledger write failed", zap.String("wallet", wallet.Hex()), zap.Error(err))
		result.Status = StatusSystemError
		result.Error = "failed to save token operation status: " + err.Error()
	}
	return result
}

func (s *Service) buildRequest(ctx context.Context, wallet common.Address, token Token) (*big.Int, chain.TxRequest, error) {
	decimals := token.Decimals
	if !token.Native() {
		meta, err := dex.FetchTokenMeta(ctx, s.runner.Tx, token.Address, s.logger)
		switch {
		case err != nil:
			s.logger.Warn("could not read token decimals, using configured value",
				zap.String("token", token.Symbol), zap.Uint8("decimals", decimals), zap.Error(err))
		case meta.Decimals != decimals:
			s.logger.Warn("contract decimals differ from configuration, using contract value",
				zap.String("token", token.Symbol), zap.Uint8("configured", decimals), zap.Uint8("contract", meta.Decimals))
			decimals = meta.Decimals
		}
	}

	amount, err := units.ParsePositiveUnits(token.Amount, decimals)
	if err != nil {
		return nil, chain.TxRequest{}, fmt.Errorf("amount for %s: %w", token.Symbol, err)
	}
	if token.Native() {
		return amount, chain.TxRequest{To: wallet, Value: amount}, nil
	}
	data, err := dex.PackTokenMint(wallet, amount)
	if err != nil {
		return nil, chain.TxRequest{}, fmt.Errorf("pack mint: %w", err)
	}
	return amount, chain.TxRequest{To: token.Address, Data: data}, nil
}

func (s *Service) record(ctx context.Context, wallet common.Address, token Token, result TokenResult) error {
	if _, err := s.ledger.UpsertUser(ctx, wallet.Hex()); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return s.ledger.RecordMint(ctx, model.MintRecord{
		WalletAddress: wallet.Hex(),
		Symbol:        token.Symbol,
		Token:         token.Address.Hex(),
		Amount:        result.Amount,
		TxHash:        result.TxHash,
		BlockNumber:   result.BlockNumber,
		MintedAt:      s.now().UTC(),
	})
}

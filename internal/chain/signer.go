package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// DefaultGasLimit is used when estimation is disabled.
const DefaultGasLimit uint64 = 250000

// TxRequest describes a contract call to be signed and sent.
type TxRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
}

// SignerOptions tunes gas and receipt polling.
type SignerOptions struct {
	// GasLimit fixes the gas limit; zero means estimate with headroom.
	GasLimit uint64
	// GasPrice fixes the legacy gas price; nil means ask the node.
	GasPrice    *big.Int
	ReceiptPoll time.Duration
	MaxRetries  int
}

// Signer signs legacy transactions with a single local key.
type Signer struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	opts    SignerOptions
	logger  *zap.Logger

	// mu serializes Send from nonce selection to broadcast.
	mu sync.Mutex
	// next is the nonce after the last broadcast, zero until the first one.
	next uint64
}

// ParsePrivateKey decodes a hex private key with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// NewSigner binds key to backend.
func NewSigner(backend Backend, key *ecdsa.PrivateKey, opts SignerOptions, logger *zap.Logger) (*Signer, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if key == nil {
		return nil, fmt.Errorf("private key is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReceiptPoll <= 0 {
		opts.ReceiptPoll = 2 * time.Second
	}
	return &Signer{
		backend: backend,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		opts:    opts,
		logger:  logger,
	}, nil
}

// From returns the signing address.
func (s *Signer) From() common.Address {
	return s.from
}

// CallContract forwards read calls to the backend.
func (s *Signer) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return s.backend.CallContract(ctx, msg, blockNumber)
}

// Send signs req as a legacy transaction and broadcasts it.
func (s *Signer) Send(ctx context.Context, req TxRequest) (common.Hash, error) {
	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	// The node's pending count can lag a transaction we just broadcast.
	if nonce < s.next {
		nonce = s.next
	}

	gasPrice := s.opts.GasPrice
	if gasPrice == nil {
		gasPrice, err = s.backend.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
		}
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit = s.opts.GasLimit
	}
	if gasLimit == 0 {
		estimated, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  s.from,
			To:    &req.To,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
		gasLimit = estimated + estimated/5
	}

	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		// Resync from the node next time.
		s.next = 0
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	s.next = nonce + 1

	s.logger.Debug("tx sent",
		zap.String("hash", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", gasLimit),
	)
	return signed.Hash(), nil
}

// WaitReceipt polls until the receipt is available or ctx is done.
func (s *Signer) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(s.opts.ReceiptPoll)
	defer ticker.Stop()

	failures := 0
	for {
		receipt, err := s.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
			failures = 0
		default:
			failures++
			if failures > s.opts.MaxRetries {
				return nil, fmt.Errorf("fetch receipt %s: %w", hash.Hex(), err)
			}
			s.logger.Warn("receipt fetch failed", zap.String("hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

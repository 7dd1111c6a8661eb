// Package chaintest provides an in-memory contract backend for tests.
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"dexPortal/internal/chain"
)

// CallFunc answers a view call with output values.
type CallFunc func(from common.Address, args []interface{}) ([]interface{}, error)

// TxFunc executes a transaction. A non-empty revert reason fails the receipt.
type TxFunc func(from common.Address, value *big.Int, args []interface{}) (logs []*types.Log, revert string)

// SentTx records one transaction seen by the backend.
type SentTx struct {
	To     common.Address
	Method string
	Args   []interface{}
	Value  *big.Int
	Hash   common.Hash
}

type contract struct {
	parsed abi.ABI
	calls  map[string]CallFunc
	txs    map[string]TxFunc
}

// Backend is a chain.Transactor answering from registered handlers.
type Backend struct {
	mu        sync.Mutex
	from      common.Address
	contracts map[common.Address]*contract
	native    TxFunc
	receipts  map[common.Hash]*types.Receipt
	reverts   map[string]string
	sent      []SentTx
	calls     int
	block     uint64

	// SendErr, when set, fails Send for that method name before broadcast.
	SendErr map[string]error
}

var _ chain.Transactor = (*Backend)(nil)

// New returns a backend whose transactions come from from.
func New(from common.Address) *Backend {
	return &Backend{
		from:      from,
		contracts: make(map[common.Address]*contract),
		receipts:  make(map[common.Hash]*types.Receipt),
		reverts:   make(map[string]string),
		SendErr:   make(map[string]error),
		block:     100,
	}
}

func (b *Backend) contract(addr common.Address, parsed abi.ABI) *contract {
	c, ok := b.contracts[addr]
	if !ok {
		c = &contract{parsed: parsed, calls: make(map[string]CallFunc), txs: make(map[string]TxFunc)}
		b.contracts[addr] = c
	}
	return c
}

// HandleCall registers a view handler for method on addr.
func (b *Backend) HandleCall(addr common.Address, parsed abi.ABI, method string, fn CallFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contract(addr, parsed).calls[method] = fn
}

// HandleTx registers a transaction handler for method on addr.
func (b *Backend) HandleTx(addr common.Address, parsed abi.ABI, method string, fn TxFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contract(addr, parsed).txs[method] = fn
}

// HandleNative registers the handler for plain value transfers.
func (b *Backend) HandleNative(fn TxFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.native = fn
}

// From returns the sending account.
func (b *Backend) From() common.Address { return b.from }

// Sent returns the transactions broadcast so far.
func (b *Backend) Sent() []SentTx {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SentTx, len(b.sent))
	copy(out, b.sent)
	return out
}

// Calls returns how many eth_call requests reached the backend.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// SentMethods returns the method names of broadcast transactions in order.
func (b *Backend) SentMethods() []string {
	sent := b.Sent()
	out := make([]string, 0, len(sent))
	for _, tx := range sent {
		out = append(out, tx.Method)
	}
	return out
}

func (b *Backend) decode(to common.Address, data []byte) (*contract, *abi.Method, []interface{}, error) {
	c, ok := b.contracts[to]
	if !ok {
		return nil, nil, nil, fmt.Errorf("no contract at %s", to.Hex())
	}
	if len(data) < 4 {
		return nil, nil, nil, fmt.Errorf("short calldata for %s", to.Hex())
	}
	method, err := c.parsed.MethodById(data[:4])
	if err != nil {
		return nil, nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("unpack %s args: %w", method.Name, err)
	}
	return c, method, args, nil
}

// CallContract answers eth_call from view handlers or replays a stored revert.
func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if msg.To == nil {
		return nil, errors.New("contract creation not supported")
	}
	if reason, ok := b.reverts[string(msg.Data)]; ok {
		return nil, fmt.Errorf("execution reverted: %s", reason)
	}
	c, method, args, err := b.decode(*msg.To, msg.Data)
	if err != nil {
		return nil, err
	}
	fn, ok := c.calls[method.Name]
	if !ok {
		return nil, fmt.Errorf("no call handler for %s", method.Name)
	}
	out, err := fn(msg.From, args)
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

// Send executes the registered handler and stores a receipt.
func (b *Backend) Send(_ context.Context, req chain.TxRequest) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	var (
		fn     TxFunc
		name   string
		args   []interface{}
		handle bool
	)
	if len(req.Data) == 0 {
		fn, handle = b.native, b.native != nil
	} else {
		c, method, decoded, err := b.decode(req.To, req.Data)
		if err != nil {
			return common.Hash{}, err
		}
		name, args = method.Name, decoded
		fn, handle = c.txs[method.Name]
	}
	if err := b.SendErr[name]; err != nil {
		return common.Hash{}, err
	}
	if !handle {
		return common.Hash{}, fmt.Errorf("no tx handler for %q", name)
	}

	hash := crypto.Keccak256Hash(req.To.Bytes(), req.Data, big.NewInt(int64(len(b.sent))).Bytes())
	b.sent = append(b.sent, SentTx{To: req.To, Method: name, Args: args, Value: value, Hash: hash})

	logs, revert := fn(b.from, value, args)
	b.block++
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(b.block),
		Logs:        logs,
	}
	if revert != "" {
		receipt.Status = types.ReceiptStatusFailed
		receipt.Logs = nil
		b.reverts[string(req.Data)] = revert
	}
	b.receipts[hash] = receipt
	return hash, nil
}

// WaitReceipt returns the stored receipt.
func (b *Backend) WaitReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// Must fails fast on ABI parse errors in test setup.
func Must(parsed abi.ABI, err error) abi.ABI {
	if err != nil {
		panic(err)
	}
	return parsed
}

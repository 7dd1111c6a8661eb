package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReadOnly is returned by a read-only transactor asked to send.
var ErrReadOnly = errors.New("no signing key configured")

type readOnly struct {
	Reader
	from common.Address
}

// ReadOnly wraps reader as a Transactor for view-only commands. Calls are
// made from the given account; Send always fails with ErrReadOnly.
func ReadOnly(reader Reader, from common.Address) Transactor {
	return readOnly{Reader: reader, from: from}
}

func (r readOnly) From() common.Address { return r.from }

func (r readOnly) Send(context.Context, TxRequest) (common.Hash, error) {
	return common.Hash{}, ErrReadOnly
}

func (r readOnly) WaitReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ErrReadOnly
}

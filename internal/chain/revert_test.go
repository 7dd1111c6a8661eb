package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dataError struct {
	msg  string
	data interface{}
}

func (e dataError) Error() string          { return e.msg }
func (e dataError) ErrorData() interface{} { return e.data }

func encodeRevert(t *testing.T, reason string) string {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

func TestRevertReasonFromErrorData(t *testing.T) {
	err := dataError{msg: "execution reverted", data: encodeRevert(t, "Price slippage check")}
	reason, ok := RevertReason(err)
	require.True(t, ok)
	assert.Equal(t, "Price slippage check", reason)
	assert.True(t, IsRevert(err))
}

func TestRevertReasonFromMessage(t *testing.T) {
	reason, ok := RevertReason(errors.New("estimate gas: execution reverted: Not approved"))
	require.True(t, ok)
	assert.Equal(t, "Not approved", reason)
}

func TestRevertReasonAbsent(t *testing.T) {
	_, ok := RevertReason(errors.New("connection refused"))
	assert.False(t, ok)
	_, ok = RevertReason(nil)
	assert.False(t, ok)
	assert.False(t, IsRevert(errors.New("connection refused")))
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	sentinel := errors.New("reverted")
	err := withRetry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return permanent(sentinel)
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestWithRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhausts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

package txflow

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexPortal/internal/chain"
	"dexPortal/internal/chain/chaintest"
	"dexPortal/internal/dex"
	"dexPortal/internal/storage"
)

var (
	owner   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	token   = common.HexToAddress("0x9C102a3953f7605bd59e02A9FEF515523058dE00")
	spender = common.HexToAddress("0xA5ae22A0364c461Ee83868F12fc09616295925aA")
)

type tokenState struct {
	allowance *big.Int
}

func tokenBackend(state *tokenState) *chaintest.Backend {
	b := chaintest.New(owner)
	erc20 := chaintest.Must(dex.ERC20ABI())
	b.HandleCall(token, erc20, "allowance", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{new(big.Int).Set(state.allowance)}, nil
	})
	b.HandleTx(token, erc20, "approve", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, string) {
		state.allowance = new(big.Int).Set(args[1].(*big.Int))
		return nil, ""
	})
	return b
}

func TestEnsureAllowanceApprovesWhenShort(t *testing.T) {
	state := &tokenState{allowance: big.NewInt(10)}
	b := tokenBackend(state)

	var transitions []State
	runner := &Runner{Tx: b, Observer: func(_ string, _, to State) { transitions = append(transitions, to) }}
	flow := runner.Start("add-liquidity")

	hash, err := flow.EnsureAllowance(context.Background(), token, spender, big.NewInt(1000))
	require.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)
	assert.Equal(t, int64(1000), state.allowance.Int64())
	assert.Equal(t, []string{"approve"}, b.SentMethods())
	assert.Equal(t, []State{Approving, Submitting, Confirming}, transitions)
	require.Len(t, flow.Steps(), 1)

	res := flow.Succeed(hash.Hex(), "")
	assert.True(t, res.Success)
	assert.Equal(t, Settled, flow.State())
}

func TestEnsureAllowanceSkipsWhenSufficient(t *testing.T) {
	b := tokenBackend(&tokenState{allowance: big.NewInt(5000)})
	flow := (&Runner{Tx: b}).Start("swap")

	hash, err := flow.EnsureAllowance(context.Background(), token, spender, big.NewInt(5000))
	require.NoError(t, err)
	assert.Equal(t, common.Hash{}, hash)
	assert.Empty(t, b.SentMethods())
}

func TestEnsureAllowanceRejectsNegative(t *testing.T) {
	b := tokenBackend(&tokenState{allowance: big.NewInt(0)})
	flow := (&Runner{Tx: b}).Start("swap")

	_, err := flow.EnsureAllowance(context.Background(), token, spender, big.NewInt(-1))
	require.ErrorIs(t, err, ErrValidation)
}

func TestSubmitAndConfirmRecoversRevertReason(t *testing.T) {
	b := chaintest.New(owner)
	erc20 := chaintest.Must(dex.ERC20ABI())
	b.HandleTx(token, erc20, "transfer", func(common.Address, *big.Int, []interface{}) ([]*types.Log, string) {
		return nil, "ERC20: transfer amount exceeds balance"
	})

	journal := storage.NewJsonlStorage(filepath.Join(t.TempDir(), "tx.jsonl"))
	flow := (&Runner{Tx: b, Journal: journal}).Start("faucet")

	data, err := dex.PackTransfer(owner, big.NewInt(1))
	require.NoError(t, err)
	_, err = flow.SubmitAndConfirm(context.Background(), "transfer", chain.TxRequest{To: token, Data: data})
	require.ErrorIs(t, err, ErrReverted)

	var revertErr *RevertError
	require.True(t, errors.As(err, &revertErr))
	assert.Equal(t, "ERC20: transfer amount exceeds balance", revertErr.Reason)

	res := flow.Fail(err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "exceeds balance")
	assert.Equal(t, Failed, flow.State())

	records, err := journal.ReadTxRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "reverted", records[0].Status)
}

func TestSubmitAndConfirmSendFailure(t *testing.T) {
	b := chaintest.New(owner)
	erc20 := chaintest.Must(dex.ERC20ABI())
	b.HandleTx(token, erc20, "approve", func(common.Address, *big.Int, []interface{}) ([]*types.Log, string) { return nil, "" })
	b.SendErr["approve"] = errors.New("estimate gas: execution reverted: paused")

	flow := (&Runner{Tx: b}).Start("swap")
	data, err := dex.PackApprove(spender, big.NewInt(1))
	require.NoError(t, err)

	_, err = flow.SubmitAndConfirm(context.Background(), "approve", chain.TxRequest{To: token, Data: data})
	require.ErrorIs(t, err, ErrReverted)
	assert.Contains(t, err.Error(), "paused")
}

func TestSubmitAndConfirmJournalsSettledSteps(t *testing.T) {
	state := &tokenState{allowance: big.NewInt(0)}
	b := tokenBackend(state)
	journal := storage.NewJsonlStorage(filepath.Join(t.TempDir(), "tx.jsonl"))
	flow := (&Runner{Tx: b, Journal: journal}).Start("add-liquidity")

	_, err := flow.EnsureAllowance(context.Background(), token, spender, big.NewInt(7))
	require.NoError(t, err)

	records, err := journal.ReadTxRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "add-liquidity", records[0].Flow)
	assert.Equal(t, "settled", records[0].Status)
	assert.Equal(t, owner.Hex(), records[0].From)
	assert.NotZero(t, records[0].BlockNumber)
}

func TestWarningsAreReported(t *testing.T) {
	flow := (&Runner{Tx: chaintest.New(owner)}).Start("remove-liquidity")
	flow.Warn("burn failed")
	res := flow.Succeed("0xabc", "")
	assert.Equal(t, []string{"burn failed"}, res.Warnings)
}

package swap

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexPortal/internal/chain/chaintest"
	"dexPortal/internal/dex"
	"dexPortal/internal/txflow"
)

var (
	routerAddr = common.HexToAddress("0x4444444444444444444444444444444444444444")
	adapter    = common.HexToAddress("0x5555555555555555555555555555555555555555")
	tokenIn    = common.HexToAddress("0x9C102a3953f7605bd59e02A9FEF515523058dE00")
	tokenOut   = common.HexToAddress("0xc4D6fC137A14CAEd1e51D9D83f9606c72a32dD30")
	trader     = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type fakeRouter struct {
	backend   *chaintest.Backend
	allowance *big.Int
	rate      int64
	noRoute   bool
	trades    []dex.RouterTrade
	quotes    int
}

func newFakeRouter(t *testing.T) *fakeRouter {
	t.Helper()
	f := &fakeRouter{backend: chaintest.New(trader), allowance: new(big.Int), rate: 37}
	b := f.backend

	erc20 := chaintest.Must(dex.ERC20ABI())
	for _, token := range []common.Address{tokenIn, tokenOut} {
		b.HandleCall(token, erc20, "decimals", func(common.Address, []interface{}) ([]interface{}, error) {
			return []interface{}{uint8(18)}, nil
		})
	}
	b.HandleCall(tokenIn, erc20, "allowance", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{new(big.Int).Set(f.allowance)}, nil
	})
	b.HandleTx(tokenIn, erc20, "approve", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, string) {
		f.allowance = new(big.Int).Set(args[1].(*big.Int))
		return nil, ""
	})

	routerABI := chaintest.Must(dex.RouterABI())
	b.HandleCall(routerAddr, routerABI, "findBestPathWithGas", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		f.quotes++
		if f.noRoute {
			return []interface{}{dex.FormattedOffer{Amounts: []*big.Int{}, Adapters: []common.Address{}, Path: []common.Address{}, GasEstimate: new(big.Int)}}, nil
		}
		amountIn := args[0].(*big.Int)
		out := new(big.Int).Mul(amountIn, big.NewInt(f.rate))
		out.Div(out, big.NewInt(10))
		return []interface{}{dex.FormattedOffer{
			Amounts:     []*big.Int{amountIn, out},
			Adapters:    []common.Address{adapter},
			Path:        []common.Address{args[1].(common.Address), args[2].(common.Address)},
			GasEstimate: big.NewInt(150000),
		}}, nil
	})
	b.HandleTx(routerAddr, routerABI, "swapNoSplit", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, string) {
		trade := *abi.ConvertType(args[0], new(dex.RouterTrade)).(*dex.RouterTrade)
		if f.allowance.Cmp(trade.AmountIn) < 0 {
			return nil, "STF"
		}
		f.trades = append(f.trades, trade)
		return nil, ""
	})
	return f
}

func newTestExecutor(f *fakeRouter) *Executor {
	quoter := NewQuoter(f.backend, routerAddr, nil)
	return NewExecutor(quoter, &txflow.Runner{Tx: f.backend}, nil)
}

func TestSwapApprovesAndAppliesSlippage(t *testing.T) {
	f := newFakeRouter(t)
	exec := newTestExecutor(f)

	res := exec.Swap(context.Background(), Params{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: "1000", SlippagePercent: 2.5})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"approve", "swapNoSplit"}, f.backend.SentMethods())

	require.Len(t, f.trades, 1)
	trade := f.trades[0]
	// 1000 in at 3.7 -> 3700 expected, 2.5% slippage -> 3607.5 floored in base units.
	assert.Equal(t, "1000000000000000000000", trade.AmountIn.String())
	assert.Equal(t, "3607500000000000000000", trade.AmountOut.String())
	assert.Equal(t, []common.Address{adapter}, trade.Adapters)
	assert.Equal(t, "3700.000000000000000000", res.ExpectedOut)
	assert.Equal(t, "3607.500000000000000000", res.MinimumOut)
	assert.Len(t, res.Path, 2)
}

func TestSwapSkipsApprovalWhenAllowed(t *testing.T) {
	f := newFakeRouter(t)
	f.allowance = new(big.Int).Lsh(big.NewInt(1), 200)
	exec := newTestExecutor(f)

	res := exec.Swap(context.Background(), Params{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: "1", SlippagePercent: 0.5})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"swapNoSplit"}, f.backend.SentMethods())
}

func TestSwapRejectsBadInputWithoutQuoting(t *testing.T) {
	f := newFakeRouter(t)
	exec := newTestExecutor(f)

	cases := []Params{
		{TokenIn: tokenIn, TokenOut: tokenIn, AmountIn: "1", SlippagePercent: 1},
		{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: "1", SlippagePercent: 150},
		{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: "1", SlippagePercent: -1},
		{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: "0", SlippagePercent: 1},
		{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: "", SlippagePercent: 1},
		{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: "-3", SlippagePercent: 1},
		{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: "1.2.3", SlippagePercent: 1},
	}
	for _, params := range cases {
		res := exec.Swap(context.Background(), params)
		assert.False(t, res.Success, "%+v", params)
		_, err := exec.Preview(context.Background(), params)
		assert.ErrorIs(t, err, txflow.ErrValidation, "%+v", params)
	}
	assert.Zero(t, f.backend.Calls())
	assert.Zero(t, f.quotes)
	assert.Empty(t, f.backend.SentMethods())
}

func TestSwapFailsWithoutRoute(t *testing.T) {
	f := newFakeRouter(t)
	f.noRoute = true
	exec := newTestExecutor(f)

	res := exec.Swap(context.Background(), Params{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: "1", SlippagePercent: 1})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, ErrNoRoute.Error())
	assert.Empty(t, f.backend.SentMethods())
}

func TestQuoterRequiresRouter(t *testing.T) {
	q := NewQuoter(chaintest.New(trader), common.Address{}, nil)
	_, err := q.Quote(context.Background(), big.NewInt(1), tokenIn, tokenOut)
	assert.Error(t, err)
}

func TestQuoteSessionDeliversLatestOnly(t *testing.T) {
	f := newFakeRouter(t)
	exec := newTestExecutor(f)

	updates := make(chan QuoteUpdate, 4)
	session := exec.NewQuoteSession(context.Background(), 20*time.Millisecond, func(u QuoteUpdate) { updates <- u })
	defer session.Close()

	for _, amount := range []string{"1", "10", "100"} {
		session.Update(Params{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: amount, SlippagePercent: 1})
	}

	select {
	case u := <-updates:
		require.NoError(t, u.Err)
		assert.Equal(t, "100", u.Params.AmountIn)
		assert.Equal(t, "370000000000000000000", u.Preview.ExpectedOut.ToBig().String())
	case <-time.After(time.Second):
		t.Fatal("no quote delivered")
	}
	select {
	case u := <-updates:
		t.Fatalf("unexpected extra update: %+v", u.Params)
	case <-time.After(60 * time.Millisecond):
	}
	assert.Equal(t, 1, f.quotes)
}

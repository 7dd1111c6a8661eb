package dex

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexPortal/internal/chain/chaintest"
	"dexPortal/internal/pricemath"
)

var (
	testFactory = common.HexToAddress("0x5f37a6Ea51351BBBED8bD7Ed78EBa923B8D60897")
	testPM      = common.HexToAddress("0xA5ae22A0364c461Ee83868F12fc09616295925aA")
	testPool    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testToken0  = common.HexToAddress("0x9C102a3953f7605bd59e02A9FEF515523058dE00")
	testToken1  = common.HexToAddress("0xc4D6fC137A14CAEd1e51D9D83f9606c72a32dD30")
	testOwner   = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func poolBackend(t *testing.T) *chaintest.Backend {
	t.Helper()
	b := chaintest.New(testOwner)
	poolABI := chaintest.Must(V3PoolABI())
	answer := func(v ...interface{}) chaintest.CallFunc {
		return func(common.Address, []interface{}) ([]interface{}, error) { return v, nil }
	}
	b.HandleCall(testPool, poolABI, "token0", answer(testToken0))
	b.HandleCall(testPool, poolABI, "token1", answer(testToken1))
	b.HandleCall(testPool, poolABI, "fee", answer(big.NewInt(3000)))
	b.HandleCall(testPool, poolABI, "tickSpacing", answer(big.NewInt(60)))
	b.HandleCall(testPool, poolABI, "liquidity", answer(big.NewInt(123456)))
	b.HandleCall(testPool, poolABI, "slot0", answer(
		pricemath.SqrtPriceOneX96(), big.NewInt(0), uint16(0), uint16(1), uint16(1), uint8(0), true,
	))
	return b
}

func TestFetchPoolStateDecodesSlot0(t *testing.T) {
	b := poolBackend(t)
	cache := NewPoolMetaCache()

	meta, err := FetchPoolState(context.Background(), b, testPool, cache, nil)
	if err != nil {
		t.Fatalf("fetch pool state: %v", err)
	}
	if meta.Token0 != testToken0.Hex() || meta.Token1 != testToken1.Hex() {
		t.Fatalf("tokens mismatch: %+v", meta)
	}
	if meta.Fee != 3000 || meta.TickSpacing != 60 || meta.Liquidity != "123456" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if !meta.Slot0.Initialized() || meta.Slot0.Tick != 0 {
		t.Fatalf("slot0 mismatch: %+v", meta.Slot0)
	}
	if meta.Price != 1 || meta.SqrtPrice != 1 {
		t.Fatalf("price mismatch: %v %v", meta.Price, meta.SqrtPrice)
	}
	if _, ok := cache.Get(testPool); !ok {
		t.Fatalf("pool meta not cached")
	}
}

func TestGetPoolPassesFee(t *testing.T) {
	b := chaintest.New(testOwner)
	var gotFee *big.Int
	b.HandleCall(testFactory, chaintest.Must(FactoryABI()), "getPool", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		gotFee = args[2].(*big.Int)
		return []interface{}{testPool}, nil
	})

	pool, err := GetPool(context.Background(), b, testFactory, testToken0, testToken1, 500)
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if pool != testPool || gotFee.Int64() != 500 {
		t.Fatalf("unexpected pool %s fee %v", pool.Hex(), gotFee)
	}
}

func TestSortTokens(t *testing.T) {
	a, b := SortTokens(testToken1, testToken0)
	if a != testToken0 || b != testToken1 {
		t.Fatalf("sort mismatch: %s %s", a.Hex(), b.Hex())
	}
}

func TestFetchPositionAndOwnerEnumeration(t *testing.T) {
	b := chaintest.New(testOwner)
	pmABI := chaintest.Must(PositionManagerABI())
	b.HandleCall(testPM, pmABI, "balanceOf", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{big.NewInt(2)}, nil
	})
	b.HandleCall(testPM, pmABI, "tokenOfOwnerByIndex", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		idx := args[1].(*big.Int)
		return []interface{}{new(big.Int).Add(idx, big.NewInt(10))}, nil
	})
	b.HandleCall(testPM, pmABI, "positions", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		return []interface{}{
			big.NewInt(0), common.Address{}, testToken0, testToken1, big.NewInt(3000),
			big.NewInt(-600), big.NewInt(600), big.NewInt(999),
			big.NewInt(0), big.NewInt(0), big.NewInt(5), big.NewInt(7),
		}, nil
	})

	ids, err := PositionTokenIDs(context.Background(), b, testPM, testOwner)
	if err != nil {
		t.Fatalf("token ids: %v", err)
	}
	if len(ids) != 2 || ids[0].Int64() != 10 || ids[1].Int64() != 11 {
		t.Fatalf("ids mismatch: %v", ids)
	}

	pos, err := FetchPosition(context.Background(), b, testPM, ids[0])
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.TickLower != -600 || pos.TickUpper != 600 || pos.Liquidity != "999" || pos.TokensOwed1 != "7" || pos.Fee != 3000 {
		t.Fatalf("position mismatch: %+v", pos)
	}
}

func TestStaticCollectUsesOwnerAsCaller(t *testing.T) {
	b := chaintest.New(testOwner)
	var caller common.Address
	b.HandleCall(testPM, chaintest.Must(PositionManagerABI()), "collect", func(from common.Address, args []interface{}) ([]interface{}, error) {
		caller = from
		params := *abi.ConvertType(args[0], new(CollectParams)).(*CollectParams)
		if params.Amount0Max.Cmp(MaxUint128) != 0 {
			t.Errorf("amount0Max = %s", params.Amount0Max)
		}
		return []interface{}{big.NewInt(11), big.NewInt(22)}, nil
	})

	a0, a1, err := StaticCollect(context.Background(), b, testPM, testOwner, big.NewInt(1))
	if err != nil {
		t.Fatalf("static collect: %v", err)
	}
	if a0.Int64() != 11 || a1.Int64() != 22 || caller != testOwner {
		t.Fatalf("unexpected %v %v %s", a0, a1, caller.Hex())
	}
}

func TestFindBestPathWithGas(t *testing.T) {
	router := common.HexToAddress("0x4444444444444444444444444444444444444444")
	adapter := common.HexToAddress("0x5555555555555555555555555555555555555555")
	b := chaintest.New(testOwner)
	b.HandleCall(router, chaintest.Must(RouterABI()), "findBestPathWithGas", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		if args[3].(*big.Int).Int64() != 3 {
			t.Errorf("max steps = %v", args[3])
		}
		return []interface{}{FormattedOffer{
			Amounts:     []*big.Int{big.NewInt(1000), big.NewInt(3700)},
			Adapters:    []common.Address{adapter},
			Path:        []common.Address{testToken0, testToken1},
			GasEstimate: big.NewInt(120000),
		}}, nil
	})

	offer, err := FindBestPathWithGas(context.Background(), b, router, big.NewInt(1000), testToken0, testToken1, 3, big.NewInt(225e9))
	if err != nil {
		t.Fatalf("find best path: %v", err)
	}
	if len(offer.Amounts) != 2 || offer.Amounts[1].Int64() != 3700 || offer.Adapters[0] != adapter || offer.GasEstimate.Int64() != 120000 {
		t.Fatalf("offer mismatch: %+v", offer)
	}
}

func TestPackSwapNoSplitRoundTrip(t *testing.T) {
	trade := RouterTrade{
		AmountIn:  big.NewInt(1000),
		AmountOut: big.NewInt(3607),
		Path:      []common.Address{testToken0, testToken1},
		Adapters:  []common.Address{testPool},
	}
	data, err := PackSwapNoSplit(trade, testOwner, nil)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	parsed := chaintest.Must(RouterABI())
	method, err := parsed.MethodById(data[:4])
	if err != nil || method.Name != "swapNoSplit" {
		t.Fatalf("selector mismatch: %v", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	got := *abi.ConvertType(args[0], new(RouterTrade)).(*RouterTrade)
	if got.AmountOut.Int64() != 3607 || len(got.Path) != 2 || args[1].(common.Address) != testOwner {
		t.Fatalf("decoded trade mismatch: %+v", got)
	}
}

func TestDecodeIncreaseLiquidity(t *testing.T) {
	pmABI := chaintest.Must(PositionManagerABI())
	event := pmABI.Events["IncreaseLiquidity"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(5000), big.NewInt(100), big.NewInt(200))
	if err != nil {
		t.Fatalf("pack event: %v", err)
	}
	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: testPool, Topics: []common.Hash{event.ID}},
		{Address: testPM, Topics: []common.Hash{event.ID, common.BigToHash(big.NewInt(42))}, Data: data},
	}}

	got, err := DecodeIncreaseLiquidity(receipt, testPM)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TokenID.Int64() != 42 || got.Liquidity.Int64() != 5000 || got.Amount1.Int64() != 200 {
		t.Fatalf("event mismatch: %+v", got)
	}

	if _, err := DecodeIncreaseLiquidity(&types.Receipt{}, testPM); err != ErrEventNotFound {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestCachedTokenMetaToleratesMissingName(t *testing.T) {
	b := chaintest.New(testOwner)
	b.HandleCall(testToken0, chaintest.Must(ERC20ABI()), "decimals", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{uint8(18)}, nil
	})
	b.HandleCall(testToken0, chaintest.Must(ERC20ABI()), "symbol", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{"GOCTO"}, nil
	})

	cache := NewTokenMetaCache()
	meta, err := CachedTokenMeta(context.Background(), b, testToken0, cache, nil)
	if err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if meta.Decimals != 18 || meta.Symbol != "GOCTO" || meta.Name != "" {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if cached, ok := cache.Get(testToken0); !ok || cached.Symbol != "GOCTO" {
		t.Fatalf("token meta not cached")
	}
}

func TestInt24Bounds(t *testing.T) {
	if _, err := int24FromBig(big.NewInt(1 << 23)); err == nil {
		t.Fatalf("expected overflow")
	}
	if v, err := int24FromBig(big.NewInt(-887272)); err != nil || v != -887272 {
		t.Fatalf("unexpected %d %v", v, err)
	}
}

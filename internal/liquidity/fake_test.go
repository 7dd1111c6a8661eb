package liquidity

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexPortal/internal/chain/chaintest"
	"dexPortal/internal/dex"
	"dexPortal/internal/pricemath"
	"dexPortal/internal/txflow"
)

var (
	factoryAddr = common.HexToAddress("0x5f37a6Ea51351BBBED8bD7Ed78EBa923B8D60897")
	pmAddr      = common.HexToAddress("0xA5ae22A0364c461Ee83868F12fc09616295925aA")
	tokenLow    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenHigh   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	poolAddr    = common.HexToAddress("0x7777777777777777777777777777777777777777")
	trader      = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

type fakePosition struct {
	liquidity *big.Int
	owed0     *big.Int
	owed1     *big.Int
}

// fakeDex simulates one pool, two 18-decimal tokens and a position manager.
type fakeDex struct {
	backend      *chaintest.Backend
	poolExists   bool
	sqrtPrice    *big.Int
	tick         int64
	allowances   map[common.Address]*big.Int
	mints        []dex.MintParams
	positions    map[int64]*fakePosition
	nextTokenID  int64
	burnRevert   string
	mintRevert   string
	lastDecrease *dex.DecreaseLiquidityParams
}

func newFakeDex(t *testing.T) *fakeDex {
	t.Helper()
	f := &fakeDex{
		backend:     chaintest.New(trader),
		allowances:  map[common.Address]*big.Int{tokenLow: new(big.Int), tokenHigh: new(big.Int)},
		positions:   map[int64]*fakePosition{},
		nextTokenID: 1,
	}
	b := f.backend

	b.HandleCall(factoryAddr, chaintest.Must(dex.FactoryABI()), "getPool", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		if !f.poolExists || args[0].(common.Address) != tokenLow || args[1].(common.Address) != tokenHigh || args[2].(*big.Int).Int64() != 3000 {
			return []interface{}{common.Address{}}, nil
		}
		return []interface{}{poolAddr}, nil
	})

	poolABI := chaintest.Must(dex.V3PoolABI())
	value := func(v interface{}) chaintest.CallFunc {
		return func(common.Address, []interface{}) ([]interface{}, error) { return []interface{}{v}, nil }
	}
	b.HandleCall(poolAddr, poolABI, "token0", value(tokenLow))
	b.HandleCall(poolAddr, poolABI, "token1", value(tokenHigh))
	b.HandleCall(poolAddr, poolABI, "fee", value(big.NewInt(3000)))
	b.HandleCall(poolAddr, poolABI, "tickSpacing", value(big.NewInt(60)))
	b.HandleCall(poolAddr, poolABI, "liquidity", value(big.NewInt(0)))
	b.HandleCall(poolAddr, poolABI, "slot0", func(common.Address, []interface{}) ([]interface{}, error) {
		sqrt := f.sqrtPrice
		if sqrt == nil {
			sqrt = new(big.Int)
		}
		return []interface{}{sqrt, big.NewInt(f.tick), uint16(0), uint16(1), uint16(1), uint8(0), true}, nil
	})

	erc20 := chaintest.Must(dex.ERC20ABI())
	for _, token := range []common.Address{tokenLow, tokenHigh} {
		token := token
		b.HandleCall(token, erc20, "decimals", value(uint8(18)))
		b.HandleCall(token, erc20, "allowance", func(common.Address, []interface{}) ([]interface{}, error) {
			return []interface{}{new(big.Int).Set(f.allowances[token])}, nil
		})
		b.HandleTx(token, erc20, "approve", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, string) {
			f.allowances[token] = new(big.Int).Set(args[1].(*big.Int))
			return nil, ""
		})
	}

	pmABI := chaintest.Must(dex.PositionManagerABI())
	b.HandleTx(pmAddr, pmABI, "createAndInitializePoolIfNecessary", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, string) {
		f.poolExists = true
		f.sqrtPrice = new(big.Int).Set(args[3].(*big.Int))
		return nil, ""
	})
	b.HandleTx(pmAddr, pmABI, "mint", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, string) {
		if f.mintRevert != "" {
			return nil, f.mintRevert
		}
		params := *abi.ConvertType(args[0], new(dex.MintParams)).(*dex.MintParams)
		if f.allowances[params.Token0].Cmp(params.Amount0Desired) < 0 || f.allowances[params.Token1].Cmp(params.Amount1Desired) < 0 {
			return nil, "STF"
		}
		f.mints = append(f.mints, params)
		id := f.nextTokenID
		f.nextTokenID++
		f.positions[id] = &fakePosition{liquidity: big.NewInt(5000), owed0: new(big.Int), owed1: new(big.Int)}

		event := pmABI.Events["IncreaseLiquidity"]
		data, err := event.Inputs.NonIndexed().Pack(big.NewInt(5000), params.Amount0Desired, params.Amount1Desired)
		if err != nil {
			return nil, err.Error()
		}
		return []*types.Log{{Address: pmAddr, Topics: []common.Hash{event.ID, common.BigToHash(big.NewInt(id))}, Data: data}}, ""
	})
	b.HandleCall(pmAddr, pmABI, "positions", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		id := args[0].(*big.Int).Int64()
		pos, ok := f.positions[id]
		if !ok {
			return nil, errInvalidToken
		}
		return []interface{}{
			big.NewInt(0), common.Address{}, tokenLow, tokenHigh, big.NewInt(3000),
			big.NewInt(-600), big.NewInt(600), new(big.Int).Set(pos.liquidity),
			big.NewInt(0), big.NewInt(0), new(big.Int).Set(pos.owed0), new(big.Int).Set(pos.owed1),
		}, nil
	})
	b.HandleTx(pmAddr, pmABI, "decreaseLiquidity", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, string) {
		params := *abi.ConvertType(args[0], new(dex.DecreaseLiquidityParams)).(*dex.DecreaseLiquidityParams)
		f.lastDecrease = &params
		pos := f.positions[params.TokenId.Int64()]
		pos.liquidity = new(big.Int).Sub(pos.liquidity, params.Liquidity)
		pos.owed0.Add(pos.owed0, big.NewInt(100))
		pos.owed1.Add(pos.owed1, big.NewInt(200))
		return nil, ""
	})
	b.HandleTx(pmAddr, pmABI, "collect", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, string) {
		params := *abi.ConvertType(args[0], new(dex.CollectParams)).(*dex.CollectParams)
		pos := f.positions[params.TokenId.Int64()]
		pos.owed0, pos.owed1 = new(big.Int), new(big.Int)
		return nil, ""
	})
	b.HandleCall(pmAddr, pmABI, "collect", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		params := *abi.ConvertType(args[0], new(dex.CollectParams)).(*dex.CollectParams)
		pos := f.positions[params.TokenId.Int64()]
		return []interface{}{new(big.Int).Set(pos.owed0), new(big.Int).Set(pos.owed1)}, nil
	})
	b.HandleTx(pmAddr, pmABI, "burn", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, string) {
		if f.burnRevert != "" {
			return nil, f.burnRevert
		}
		delete(f.positions, args[0].(*big.Int).Int64())
		return nil, ""
	})
	b.HandleCall(pmAddr, pmABI, "balanceOf", func(common.Address, []interface{}) ([]interface{}, error) {
		return []interface{}{big.NewInt(int64(len(f.positions)))}, nil
	})
	b.HandleCall(pmAddr, pmABI, "tokenOfOwnerByIndex", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		idx := args[1].(*big.Int).Int64()
		var n int64
		for id := int64(1); id < f.nextTokenID; id++ {
			if _, ok := f.positions[id]; !ok {
				continue
			}
			if n == idx {
				return []interface{}{big.NewInt(id)}, nil
			}
			n++
		}
		return nil, errInvalidToken
	})
	return f
}

func (f *fakeDex) initPool(price float64) {
	f.poolExists = true
	f.sqrtPrice, _ = pricemath.EncodeSqrtPriceX96(price)
	tick, _ := pricemath.PriceToTick(price)
	f.tick = int64(tick)
}

type staticErr string

func (e staticErr) Error() string { return string(e) }

const errInvalidToken = staticErr("Invalid token ID")

func newTestService(t *testing.T, f *fakeDex) *Service {
	t.Helper()
	svc, err := NewService(Config{Factory: factoryAddr, PositionManager: pmAddr}, &txflow.Runner{Tx: f.backend}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return svc
}

package liquidity

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexPortal/internal/chain"
	"dexPortal/internal/dex"
	"dexPortal/internal/model"
	"dexPortal/internal/txflow"
)

// RemoveResult reports the collect transaction and what was withdrawn.
type RemoveResult struct {
	txflow.Result
	DecreaseTxHash string `json:"decreaseTxHash,omitempty"`
	Burned         bool   `json:"burned"`
}

// Fees is the amount owed to a position.
type Fees struct {
	TokenID string `json:"tokenId"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// RemoveLiquidity withdraws all liquidity, collects everything owed and tries
// to burn the NFT. A failed burn only produces a warning.
func (s *Service) RemoveLiquidity(ctx context.Context, tokenID *big.Int, recipient common.Address) RemoveResult {
	flow := s.runner.Start("remove-liquidity")
	flow.Transition(txflow.Validating)
	if tokenID == nil || tokenID.Sign() <= 0 {
		return RemoveResult{Result: flow.Fail(txflow.Invalid("token id must be positive"))}
	}
	if recipient == (common.Address{}) {
		recipient = s.tx.From()
	}

	position, err := dex.FetchPosition(ctx, s.tx, s.cfg.PositionManager, tokenID)
	if err != nil {
		return RemoveResult{Result: flow.Fail(fmt.Errorf("read position: %w", err))}
	}

	var res RemoveResult
	if !position.Closed() {
		liquidity, ok := new(big.Int).SetString(position.Liquidity, 10)
		if !ok {
			return RemoveResult{Result: flow.Fail(fmt.Errorf("position liquidity %q", position.Liquidity))}
		}
		data, err := dex.PackDecreaseLiquidity(dex.DecreaseLiquidityParams{
			TokenId:    tokenID,
			Liquidity:  liquidity,
			Amount0Min: new(big.Int),
			Amount1Min: new(big.Int),
			Deadline:   s.deadline(s.cfg.DecreaseDeadline),
		})
		if err != nil {
			return RemoveResult{Result: flow.Fail(fmt.Errorf("pack decrease liquidity: %w", err))}
		}
		receipt, err := flow.SubmitAndConfirm(ctx, "decreaseLiquidity", chain.TxRequest{To: s.cfg.PositionManager, Data: data})
		if err != nil {
			return RemoveResult{Result: flow.Fail(err)}
		}
		res.DecreaseTxHash = receipt.TxHash.Hex()
	} else {
		s.logger.Info("position has no liquidity, skipping decrease", zap.String("token_id", tokenID.String()))
	}

	collectHash, err := s.collect(ctx, flow, tokenID, recipient)
	if err != nil {
		return RemoveResult{Result: flow.Fail(err), DecreaseTxHash: res.DecreaseTxHash}
	}

	data, err := dex.PackBurn(tokenID)
	if err == nil {
		_, err = flow.SubmitAndConfirm(ctx, "burn", chain.TxRequest{To: s.cfg.PositionManager, Data: data})
	}
	if err != nil {
		flow.Warn("burn failed, position NFT kept", zap.String("token_id", tokenID.String()), zap.Error(err))
	} else {
		res.Burned = true
	}

	res.Result = flow.Succeed(collectHash.Hex(), "liquidity removed")
	return res
}

// CollectFees collects everything owed to a position without touching liquidity.
func (s *Service) CollectFees(ctx context.Context, tokenID *big.Int, recipient common.Address) txflow.Result {
	flow := s.runner.Start("collect-fees")
	flow.Transition(txflow.Validating)
	if tokenID == nil || tokenID.Sign() <= 0 {
		return flow.Fail(txflow.Invalid("token id must be positive"))
	}
	if recipient == (common.Address{}) {
		recipient = s.tx.From()
	}
	hash, err := s.collect(ctx, flow, tokenID, recipient)
	if err != nil {
		return flow.Fail(err)
	}
	return flow.Succeed(hash.Hex(), "fees collected")
}

func (s *Service) collect(ctx context.Context, flow *txflow.Flow, tokenID *big.Int, recipient common.Address) (common.Hash, error) {
	data, err := dex.PackCollect(dex.CollectParams{
		TokenId:    tokenID,
		Recipient:  recipient,
		Amount0Max: dex.MaxUint128,
		Amount1Max: dex.MaxUint128,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack collect: %w", err)
	}
	receipt, err := flow.SubmitAndConfirm(ctx, "collect", chain.TxRequest{To: s.cfg.PositionManager, Data: data})
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// UnclaimedFees simulates a collect from owner to read fees owed right now.
func (s *Service) UnclaimedFees(ctx context.Context, tokenID *big.Int, owner common.Address) (Fees, error) {
	if tokenID == nil || tokenID.Sign() <= 0 {
		return Fees{}, txflow.Invalid("token id must be positive")
	}
	if owner == (common.Address{}) {
		owner = s.tx.From()
	}
	position, err := dex.FetchPosition(ctx, s.tx, s.cfg.PositionManager, tokenID)
	if err != nil {
		return Fees{}, fmt.Errorf("read position: %w", err)
	}
	amount0, amount1, err := dex.StaticCollect(ctx, s.tx, s.cfg.PositionManager, owner, tokenID)
	if err != nil {
		return Fees{}, fmt.Errorf("simulate collect: %w", err)
	}
	return Fees{
		TokenID: tokenID.String(),
		Token0:  position.Token0,
		Token1:  position.Token1,
		Amount0: amount0.String(),
		Amount1: amount1.String(),
	}, nil
}

// UserPositions lists every position NFT owned by owner.
func (s *Service) UserPositions(ctx context.Context, owner common.Address) ([]model.Position, error) {
	if owner == (common.Address{}) {
		owner = s.tx.From()
	}
	ids, err := dex.PositionTokenIDs(ctx, s.tx, s.cfg.PositionManager, owner)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	positions := make([]model.Position, 0, len(ids))
	for _, id := range ids {
		position, err := dex.FetchPosition(ctx, s.tx, s.cfg.PositionManager, id)
		if err != nil {
			return nil, fmt.Errorf("position %s: %w", id, err)
		}
		positions = append(positions, position)
	}
	return positions, nil
}

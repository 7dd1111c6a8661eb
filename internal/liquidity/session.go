package liquidity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexPortal/internal/debounce"
)

// PoolLookupDelay is the quiet period before a pool lookup fires.
const PoolLookupDelay = 750 * time.Millisecond

// PoolLookupUpdate is delivered for the latest completed lookup only.
type PoolLookupUpdate struct {
	TokenA common.Address
	TokenB common.Address
	Fee    uint32
	Lookup PoolLookup
	Err    error
}

// PoolLookupSession debounces pool existence checks while a pair is edited.
type PoolLookupSession struct {
	svc      *Service
	debounce *debounce.Debouncer
	deliver  func(PoolLookupUpdate)
}

// NewPoolLookupSession starts a session; deliver runs for fresh results only.
func (s *Service) NewPoolLookupSession(ctx context.Context, delay time.Duration, deliver func(PoolLookupUpdate)) *PoolLookupSession {
	if delay <= 0 {
		delay = PoolLookupDelay
	}
	return &PoolLookupSession{svc: s, debounce: debounce.New(ctx, delay), deliver: deliver}
}

// Update schedules a lookup for the pair, superseding earlier ones.
func (p *PoolLookupSession) Update(tokenA, tokenB common.Address, fee uint32) {
	p.debounce.Trigger(func(ctx context.Context, gen uint64) {
		lookup, err := p.svc.FindPool(ctx, tokenA, tokenB, fee)
		if ctx.Err() != nil {
			return
		}
		update := PoolLookupUpdate{TokenA: tokenA, TokenB: tokenB, Fee: fee, Lookup: lookup, Err: err}
		if !p.debounce.Deliver(gen, func() { p.deliver(update) }) {
			p.svc.logger.Debug("dropping stale pool lookup", zap.Uint64("generation", gen))
		}
	})
}

// Close cancels any pending lookup.
func (p *PoolLookupSession) Close() {
	p.debounce.Stop()
}

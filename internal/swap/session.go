package swap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dexPortal/internal/debounce"
)

// QuoteRefreshDelay is the quiet period before a quote refresh fires.
const QuoteRefreshDelay = 500 * time.Millisecond

// QuoteUpdate is delivered for the latest completed quote only.
type QuoteUpdate struct {
	Params  Params
	Preview Preview
	Err     error
}

// QuoteSession refreshes quotes while the user edits a swap form.
type QuoteSession struct {
	executor *Executor
	debounce *debounce.Debouncer
	deliver  func(QuoteUpdate)
}

// NewQuoteSession starts a session; deliver runs for fresh results only.
func (e *Executor) NewQuoteSession(ctx context.Context, delay time.Duration, deliver func(QuoteUpdate)) *QuoteSession {
	if delay <= 0 {
		delay = QuoteRefreshDelay
	}
	return &QuoteSession{executor: e, debounce: debounce.New(ctx, delay), deliver: deliver}
}

// Update schedules a quote for params, superseding earlier ones.
func (s *QuoteSession) Update(params Params) {
	s.debounce.Trigger(func(ctx context.Context, gen uint64) {
		preview, err := s.executor.Preview(ctx, params)
		if ctx.Err() != nil {
			return
		}
		update := QuoteUpdate{Params: params, Preview: preview, Err: err}
		if !s.debounce.Deliver(gen, func() { s.deliver(update) }) {
			s.executor.logger.Debug("dropping stale quote", zap.Uint64("generation", gen))
		}
	})
}

// Close cancels any pending refresh.
func (s *QuoteSession) Close() {
	s.debounce.Stop()
}

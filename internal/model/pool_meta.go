package model

// PoolMeta captures immutable pool metadata with optional live fields.
type PoolMeta struct {
	Address     string     `json:"address"`
	Token0      string     `json:"token0"`
	Token1      string     `json:"token1"`
	Fee         uint32     `json:"fee"`
	TickSpacing int32      `json:"tick_spacing"`
	Liquidity   string     `json:"liquidity,omitempty"`
	Slot0       *PoolSlot0 `json:"slot0,omitempty"`
	// Price is token1 per token0 derived from the current tick.
	Price float64 `json:"price,omitempty"`
	// SqrtPrice is the decoded slot0 sqrt price (price itself, not its root).
	SqrtPrice float64 `json:"sqrt_price,omitempty"`
}

// PoolSlot0 includes select slot0 fields.
type PoolSlot0 struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// Initialized reports whether slot0 carries a non-zero sqrt price.
func (s *PoolSlot0) Initialized() bool {
	return s != nil && s.SqrtPriceX96 != "" && s.SqrtPriceX96 != "0"
}

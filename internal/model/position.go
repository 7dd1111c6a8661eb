package model

// Position is a position-manager NFT as read from positions(tokenId).
type Position struct {
	TokenID     string `json:"token_id"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickLower   int32  `json:"tick_lower"`
	TickUpper   int32  `json:"tick_upper"`
	Liquidity   string `json:"liquidity"`
	TokensOwed0 string `json:"tokens_owed0"`
	TokensOwed1 string `json:"tokens_owed1"`
}

// Closed reports whether the position holds no liquidity.
func (p Position) Closed() bool {
	return p.Liquidity == "" || p.Liquidity == "0"
}

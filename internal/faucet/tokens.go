package faucet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"dexPortal/internal/units"
)

// Token is one faucet catalogue entry. A zero Address means native currency.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
	Amount   string
	// Once limits the token to a single dispensation per wallet.
	Once bool
}

// Native reports whether the token is sent as a plain value transfer.
func (t Token) Native() bool {
	return t.Address == (common.Address{})
}

// DefaultTokens is the testnet catalogue.
func DefaultTokens() []Token {
	return []Token{
		{Symbol: "GOCTO", Address: common.HexToAddress("0x9C102a3953f7605bd59e02A9FEF515523058dE00"), Decimals: 18, Amount: "100"},
		{Symbol: "INFI", Address: common.HexToAddress("0xc4D6fC137A14CAEd1e51D9D83f9606c72a32dD30"), Decimals: 18, Amount: "100"},
		{Symbol: "PHRS", Decimals: 18, Amount: "0.1"},
	}
}

// TokenConfig is the string form read from configuration files.
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
	Amount   string `mapstructure:"amount"`
	Once     bool   `mapstructure:"once"`
}

// ParseTokens validates configured tokens. An empty list yields DefaultTokens.
func ParseTokens(configs []TokenConfig) ([]Token, error) {
	if len(configs) == 0 {
		return DefaultTokens(), nil
	}
	seen := make(map[string]bool, len(configs))
	tokens := make([]Token, 0, len(configs))
	for _, cfg := range configs {
		symbol := strings.TrimSpace(cfg.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("faucet token symbol is required")
		}
		key := strings.ToLower(symbol)
		if seen[key] {
			return nil, fmt.Errorf("duplicate faucet token %s", symbol)
		}
		seen[key] = true

		token := Token{Symbol: symbol, Decimals: cfg.Decimals, Amount: strings.TrimSpace(cfg.Amount), Once: cfg.Once}
		if addr := strings.TrimSpace(cfg.Address); addr != "" {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("faucet token %s: invalid address %q", symbol, addr)
			}
			token.Address = common.HexToAddress(addr)
		}
		if _, err := units.ParsePositiveUnits(token.Amount, token.Decimals); err != nil {
			return nil, fmt.Errorf("faucet token %s: %w", symbol, err)
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"dexPortal/internal/faucet"
)

// Ledger backends accepted by the serve command.
const (
	LedgerBolt     = "bolt"
	LedgerPostgres = "postgres"
)

// ServeConfig configures the HTTP portal.
type ServeConfig struct {
	Chain        ChainConfig
	Listen       string
	UpstreamRPC  string
	Ledger       string
	PGDSN        string
	BoltPath     string
	RedisAddr    string
	Cooldown     time.Duration
	RateLimit    float64
	RateBurst    int
	FaucetTokens []faucet.TokenConfig
}

// LoadServe loads ServeConfig. faucet.tokens is only read from a config file.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ServeConfig{}, err
	}

	cfg := ServeConfig{
		Chain:       chainFrom(v),
		Listen:      v.GetString("listen"),
		UpstreamRPC: v.GetString("upstream-rpc"),
		Ledger:      v.GetString("ledger"),
		PGDSN:       v.GetString("pg-dsn"),
		BoltPath:    v.GetString("bolt-path"),
		RedisAddr:   v.GetString("redis-addr"),
		Cooldown:    v.GetDuration("cooldown"),
		RateLimit:   v.GetFloat64("rate-limit"),
		RateBurst:   v.GetInt("rate-burst"),
	}
	if err := v.UnmarshalKey("faucet.tokens", &cfg.FaucetTokens); err != nil {
		return ServeConfig{}, fmt.Errorf("decode faucet.tokens: %w", err)
	}

	switch cfg.Ledger {
	case LedgerBolt:
		if cfg.BoltPath == "" {
			return ServeConfig{}, fmt.Errorf("bolt-path is required for the bolt ledger")
		}
	case LedgerPostgres:
		if cfg.PGDSN == "" {
			return ServeConfig{}, fmt.Errorf("pg-dsn is required for the postgres ledger")
		}
	default:
		return ServeConfig{}, fmt.Errorf("unknown ledger %q (want %s or %s)", cfg.Ledger, LedgerBolt, LedgerPostgres)
	}
	if cfg.UpstreamRPC == "" {
		cfg.UpstreamRPC = cfg.Chain.RPCURL
	}
	return cfg, nil
}

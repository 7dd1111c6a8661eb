package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Deployed testnet contracts used when nothing else is configured.
const (
	DefaultRPC             = "https://devnet.dplabs-internal.com/"
	DefaultFactory         = "0x5f37a6Ea51351BBBED8bD7Ed78EBa923B8D60897"
	DefaultPositionManager = "0xA5ae22A0364c461Ee83868F12fc09616295925aA"
)

// ChainConfig holds what every on-chain command needs.
type ChainConfig struct {
	RPCURL          string
	PrivateKey      string
	Factory         string
	PositionManager string
	Router          string
	GasLimit        uint64
	GasPriceGwei    string
	MaxRetries      int
	RetryBackoff    time.Duration
	ReceiptPoll     time.Duration
	Journal         string
	LogLevel        string
}

// LoadChain merges .env, config file, environment variables, and flags into ChainConfig.
func LoadChain(cfgFile string, flags *pflag.FlagSet) (ChainConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ChainConfig{}, err
	}
	return chainFrom(v), nil
}

func chainFrom(v *viper.Viper) ChainConfig {
	return ChainConfig{
		RPCURL:          v.GetString("rpc"),
		PrivateKey:      v.GetString("private-key"),
		Factory:         v.GetString("factory"),
		PositionManager: v.GetString("position-manager"),
		Router:          v.GetString("router"),
		GasLimit:        v.GetUint64("gas-limit"),
		GasPriceGwei:    v.GetString("gas-price-gwei"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		ReceiptPoll:     v.GetDuration("receipt-poll"),
		Journal:         v.GetString("journal"),
		LogLevel:        v.GetString("log-level"),
	}
}

// envFiles are read before the environment; missing files are ignored.
var envFiles = []string{".env"}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("DEX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", DefaultRPC)
	v.SetDefault("factory", DefaultFactory)
	v.SetDefault("position-manager", DefaultPositionManager)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("receipt-poll", 2*time.Second)
	v.SetDefault("log-level", "info")

	v.SetDefault("listen", ":8080")
	v.SetDefault("upstream-rpc", DefaultRPC)
	v.SetDefault("ledger", "bolt")
	v.SetDefault("bolt-path", "./data/ledger.db")
	v.SetDefault("cooldown", 24*time.Hour)
	v.SetDefault("rate-limit", 20.0)
	v.SetDefault("rate-burst", 40)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

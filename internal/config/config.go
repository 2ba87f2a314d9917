// Package config loads client configuration from environment variables and
// an optional config file.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds everything the CLI needs to construct a client.
type Config struct {
	// ClearnodeURL is the live counterparty endpoint.
	ClearnodeURL string `mapstructure:"clearnode_url"`
	// Simulated switches to the in-process counterparty. The default: live
	// infrastructure should be opted into, not tripped over.
	Simulated bool `mapstructure:"simulated"`
	// Application is the identity presented during authentication.
	Application string `mapstructure:"application"`
	// ChainID is the settlement chain.
	ChainID uint64 `mapstructure:"chain_id"`
	// SettlementAsset is the deposit asset symbol.
	SettlementAsset string `mapstructure:"settlement_asset"`
	// WalletKey is a hex private key for the demo wallet. Empty generates
	// a throwaway key.
	WalletKey string `mapstructure:"wallet_key"`
	// HermesURL overrides the price feed endpoint.
	HermesURL string `mapstructure:"hermes_url"`
	// PriceInterval is the feed refresh period.
	PriceInterval time.Duration `mapstructure:"price_interval"`
	// RequestTimeout bounds each protocol exchange.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// Debug enables development logging.
	Debug bool `mapstructure:"debug"`
}

// Load reads configuration with precedence env > file > defaults. The file
// (flowdesk.yaml in the working directory or ~/.flowdesk) is optional.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("clearnode_url", "wss://clearnet-sandbox.yellow.com/ws")
	v.SetDefault("simulated", true)
	v.SetDefault("application", "flowdesk")
	v.SetDefault("chain_id", 42161)
	v.SetDefault("settlement_asset", "usdc")
	v.SetDefault("hermes_url", "")
	v.SetDefault("price_interval", 10*time.Second)
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("debug", false)

	v.SetConfigName("flowdesk")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.flowdesk")

	v.SetEnvPrefix("FLOWDESK")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	return &cfg, nil
}

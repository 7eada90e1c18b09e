package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"farmScope/internal/model"
	"farmScope/internal/price"
)

// ErrMissingNetwork is returned when a network lacks its RPC endpoint or
// pool list, or when no network is configured at all.
var ErrMissingNetwork = errors.New("missing network configuration")

// ErrMissingToken is returned by ValidateServe when no bot token is set.
var ErrMissingToken = errors.New("missing telegram bot token")

// legacyNetworks are read from <NAME>_RPC / <NAME>_POOLS when the config file
// has no networks list.
var legacyNetworks = []string{"matic", "bsc"}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Networks []model.NetworkConfig

	TelegramToken   string
	TelegramAPIBase string
	HTTPAddr        string

	CacheTTL               time.Duration
	CallTimeout            time.Duration
	AggregateTimeout       time.Duration
	NotifyWaitersOnFailure bool

	PriceBaseURL      string
	PriceAPIKey       string
	PriceTimeout      time.Duration
	PriceRetries      int
	PriceRetryBackoff time.Duration

	LogLevel string
}

type networkEntry struct {
	Name     string   `mapstructure:"name"`
	RPC      string   `mapstructure:"rpc"`
	Pools    []string `mapstructure:"pools"`
	Platform string   `mapstructure:"platform"`
}

// Load merges the env file, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FARMSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("env-file", ".env")
	v.SetDefault("http-addr", ":8080")
	v.SetDefault("telegram-api", "https://api.telegram.org")
	v.SetDefault("cache-ttl", 300*time.Second)
	v.SetDefault("call-timeout", 15*time.Second)
	v.SetDefault("aggregate-timeout", 2*time.Minute)
	v.SetDefault("notify-waiters-on-failure", true)
	v.SetDefault("price-base-url", price.DefaultBaseURL)
	v.SetDefault("price-timeout", price.DefaultTimeout)
	v.SetDefault("price-retries", 2)
	v.SetDefault("price-retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := loadEnvFile(v.GetString("env-file")); err != nil {
		return Config{}, err
	}

	_ = v.BindEnv("telegram-token", "FARMSCOPE_TELEGRAM_TOKEN", "TELEGRAM_BOT_API", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("price-api-key", "FARMSCOPE_PRICE_API_KEY", "COINGECKO_API_KEY")
	for _, name := range legacyNetworks {
		upper := strings.ToUpper(name)
		_ = v.BindEnv(name+"-rpc", upper+"_RPC")
		_ = v.BindEnv(name+"-pools", upper+"_POOLS")
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	networks, err := loadNetworks(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Networks:               networks,
		TelegramToken:          v.GetString("telegram-token"),
		TelegramAPIBase:        v.GetString("telegram-api"),
		HTTPAddr:               v.GetString("http-addr"),
		CacheTTL:               v.GetDuration("cache-ttl"),
		CallTimeout:            v.GetDuration("call-timeout"),
		AggregateTimeout:       v.GetDuration("aggregate-timeout"),
		NotifyWaitersOnFailure: v.GetBool("notify-waiters-on-failure"),
		PriceBaseURL:           v.GetString("price-base-url"),
		PriceAPIKey:            v.GetString("price-api-key"),
		PriceTimeout:           v.GetDuration("price-timeout"),
		PriceRetries:           v.GetInt("price-retries"),
		PriceRetryBackoff:      v.GetDuration("price-retry-backoff"),
		LogLevel:               v.GetString("log-level"),
	}

	return cfg, nil
}

// ValidateServe checks the settings only the bot needs.
func (c Config) ValidateServe() error {
	if strings.TrimSpace(c.TelegramToken) == "" {
		return ErrMissingToken
	}
	return nil
}

// Platforms returns the price platform id of every configured network.
func (c Config) Platforms() map[string]string {
	out := make(map[string]string, len(c.Networks))
	for _, n := range c.Networks {
		out[n.Network] = n.PricePlatform
	}
	return out
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func loadNetworks(v *viper.Viper) ([]model.NetworkConfig, error) {
	var entries []networkEntry
	if v.IsSet("networks") {
		if err := v.UnmarshalKey("networks", &entries); err != nil {
			return nil, fmt.Errorf("decode networks: %w", err)
		}
	} else {
		for _, name := range legacyNetworks {
			rpc := strings.TrimSpace(v.GetString(name + "-rpc"))
			pools := getStringSlice(v, name+"-pools")
			if rpc == "" && len(pools) == 0 {
				continue
			}
			entries = append(entries, networkEntry{Name: name, RPC: rpc, Pools: pools})
		}
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no networks configured", ErrMissingNetwork)
	}

	networks := make([]model.NetworkConfig, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: network without a name", ErrMissingNetwork)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate network %q", name)
		}
		seen[name] = struct{}{}

		rpc := strings.TrimSpace(e.RPC)
		if rpc == "" {
			return nil, fmt.Errorf("%w: %s rpc is empty", ErrMissingNetwork, name)
		}
		pools, err := ParseAddresses(splitAll(e.Pools))
		if err != nil {
			return nil, fmt.Errorf("%s pools: %w", name, err)
		}
		if len(pools) == 0 {
			return nil, fmt.Errorf("%w: %s pools are empty", ErrMissingNetwork, name)
		}

		platform := strings.TrimSpace(e.Platform)
		if platform == "" {
			platform = price.DefaultPlatforms[name]
		}

		networks = append(networks, model.NetworkConfig{
			Network:       name,
			RPCURL:        rpc,
			PricePlatform: platform,
			Pools:         pools,
		})
	}
	return networks, nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

// splitAll flattens entries that themselves hold comma-separated values.
func splitAll(items []string) []string {
	var out []string
	for _, item := range items {
		out = append(out, splitAndClean(item)...)
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

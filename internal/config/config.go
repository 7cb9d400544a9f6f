package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"eventScope/internal/network"
)

const envPrefix = "EVENTSCOPE"

// Common holds the settings shared by every command.
type Common struct {
	APIKey         string
	ExplorerURLs   map[network.Network]string
	RPCURLs        map[network.Network]string
	FromBlock      uint64
	BatchSize      uint64
	MaxRetries     int
	RetryBackoff   time.Duration
	Concurrency    int
	Timestamps     bool
	Names          bool
	RequestTimeout time.Duration
	LogLevel       string
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Common
	Listen      string
	CORSOrigins []string
}

// RolesConfig configures a one-shot roles run.
type RolesConfig struct {
	Common
	Address string
	Network string
	Events  []string
	Order   string
	Out     string
	PGDSN   string
}

// ExploreConfig configures an interactive session.
type ExploreConfig struct {
	Common
	Network string
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("listen", ":8080")
		v.SetDefault("cors-origins", []string{"*"})
	})
	if err != nil {
		return ServeConfig{}, err
	}

	return ServeConfig{
		Common:      loadCommon(v),
		Listen:      v.GetString("listen"),
		CORSOrigins: getStringSlice(v, "cors-origins"),
	}, nil
}

// LoadRoles merges config file, environment variables, and flags into RolesConfig.
func LoadRoles(cfgFile string, flags *pflag.FlagSet) (RolesConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("network", string(network.Default))
		v.SetDefault("order", "desc")
	})
	if err != nil {
		return RolesConfig{}, err
	}

	return RolesConfig{
		Common:  loadCommon(v),
		Address: strings.TrimSpace(v.GetString("address")),
		Network: v.GetString("network"),
		Events:  getStringSlice(v, "event"),
		Order:   v.GetString("order"),
		Out:     v.GetString("out"),
		PGDSN:   v.GetString("pg-dsn"),
	}, nil
}

// LoadExplore merges config file, environment variables, and flags into ExploreConfig.
func LoadExplore(cfgFile string, flags *pflag.FlagSet) (ExploreConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("network", string(network.Default))
	})
	if err != nil {
		return ExploreConfig{}, err
	}

	return ExploreConfig{
		Common:  loadCommon(v),
		Network: v.GetString("network"),
	}, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults func(*viper.Viper)) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("from-block", uint64(0))
	v.SetDefault("batch-size", uint64(0))
	v.SetDefault("max-retries", 0)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("concurrency", 8)
	v.SetDefault("timestamps", true)
	v.SetDefault("names", true)
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("log-level", "info")
	for _, net := range network.All() {
		v.SetDefault(explorerKey(net), net.Info().ExplorerURL)
	}
	if defaults != nil {
		defaults(v)
	}

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

func loadCommon(v *viper.Viper) Common {
	cfg := Common{
		APIKey:         v.GetString("etherscan-api-key"),
		ExplorerURLs:   make(map[network.Network]string),
		RPCURLs:        make(map[network.Network]string),
		FromBlock:      v.GetUint64("from-block"),
		BatchSize:      v.GetUint64("batch-size"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		Concurrency:    v.GetInt("concurrency"),
		Timestamps:     v.GetBool("timestamps"),
		Names:          v.GetBool("names"),
		RequestTimeout: v.GetDuration("request-timeout"),
		LogLevel:       v.GetString("log-level"),
	}
	for _, net := range network.All() {
		if url := strings.TrimSpace(v.GetString(explorerKey(net))); url != "" {
			cfg.ExplorerURLs[net] = url
		}
		if url := strings.TrimSpace(v.GetString(rpcKey(net))); url != "" {
			cfg.RPCURLs[net] = url
		}
	}
	return cfg
}

func explorerKey(net network.Network) string {
	return "explorer-url-" + net.String()
}

func rpcKey(net network.Network) string {
	return "rpc-" + net.String()
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case []string:
		return splitAll(typed)
	case string:
		return splitAll([]string{typed})
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return splitAll(items)
	default:
		return nil
	}
}

// splitAll flattens comma separated entries and drops blanks.
func splitAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

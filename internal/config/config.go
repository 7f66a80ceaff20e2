package config

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stellar/go/network"
)

// Network is the explicit per-request network configuration. It is threaded
// through every client and resolver constructor; nothing in this codebase
// consults a process-wide "current network".
type Network struct {
	Name          string
	Passphrase    string
	HorizonURL    string
	SorobanRPCURL string
}

var knownNetworks = map[string]Network{
	"mainnet": {
		Name:          "mainnet",
		Passphrase:    network.PublicNetworkPassphrase,
		HorizonURL:    "https://horizon.stellar.org",
		SorobanRPCURL: "https://mainnet.sorobanrpc.com",
	},
	"testnet": {
		Name:          "testnet",
		Passphrase:    network.TestNetworkPassphrase,
		HorizonURL:    "https://horizon-testnet.stellar.org",
		SorobanRPCURL: "https://soroban-testnet.stellar.org",
	},
}

func LookupNetwork(name string) (Network, error) {
	n, ok := knownNetworks[strings.ToLower(name)]
	if !ok {
		return Network{}, errors.Errorf("unknown network %q", name)
	}
	return n, nil
}

type CacheConfig struct {
	// Backend is "none", "sqlite" or "redis".
	Backend   string
	Path      string
	RedisAddr string
}

type Config struct {
	Network  Network
	LogLevel string
	Cache    CacheConfig

	// ListenAddr is the serve-mode bind address.
	ListenAddr string
	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string
	// MinRPCVersion gates decode against Soroban RPC servers that are too
	// old to return the execution report shape we expect.
	MinRPCVersion string
}

// Load resolves configuration from an optional file, SOROGRAPH_* env vars
// and defaults. networkName and overrides from CLI flags win afterwards.
func Load(file, networkName string) (Config, error) {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("listen_addr", ":8087")
	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.path", "sorograph-cache.db")
	v.SetDefault("min_rpc_version", "21.0.0")

	v.SetEnvPrefix("sorograph")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "reading config file")
		}
	}

	net, err := LookupNetwork(networkName)
	if err != nil {
		return Config{}, err
	}
	if u := v.GetString("horizon_url"); u != "" {
		net.HorizonURL = u
	}
	if u := v.GetString("soroban_rpc_url"); u != "" {
		net.SorobanRPCURL = u
	}

	cfg := Config{
		Network:  net,
		LogLevel: v.GetString("log_level"),
		Cache: CacheConfig{
			Backend:   v.GetString("cache.backend"),
			Path:      v.GetString("cache.path"),
			RedisAddr: v.GetString("cache.redis_addr"),
		},
		ListenAddr:    v.GetString("listen_addr"),
		OTLPEndpoint:  v.GetString("otlp_endpoint"),
		MinRPCVersion: v.GetString("min_rpc_version"),
	}
	return cfg, nil
}

// ApplyLogLevel configures the process logger from cfg.
func (c Config) ApplyLogLevel() {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

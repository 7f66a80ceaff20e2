// Package cmd holds the sorograph command tree.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dotandev/sorograph/internal/cache"
	"github.com/dotandev/sorograph/internal/config"
	"github.com/dotandev/sorograph/internal/horizon"
	"github.com/dotandev/sorograph/internal/pipeline"
	"github.com/dotandev/sorograph/internal/sorobanrpc"
)

var (
	cfgFile     string
	networkName string
	logLevel    string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sorograph",
	Short: "Decode Stellar transaction execution traces",
	Long: `sorograph fetches a transaction by hash, decodes its XDR envelopes
(arguments, events, state changes, resource usage), resolves which contract
and function each operation invoked, and renders the result as JSON or as a
node/edge graph.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile, networkName)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		c.ApplyLogLevel()
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file")
	rootCmd.PersistentFlags().StringVar(&networkName, "network", "mainnet", "network to query (mainnet or testnet)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func Execute() error {
	return rootCmd.Execute()
}

// buildPipeline wires the transport clients and cache from the loaded
// config. The returned closer is nil when no cache backend is configured.
func buildPipeline() (*pipeline.Pipeline, func() error, error) {
	store, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, nil, err
	}

	hz := horizon.NewClient(cfg.Network, store)
	rpc := sorobanrpc.NewClient(cfg.Network, store)
	p := pipeline.New(cfg.Network, hz, rpc)

	closer := func() error { return nil }
	if store != nil {
		closer = store.Close
	}
	return p, closer, nil
}

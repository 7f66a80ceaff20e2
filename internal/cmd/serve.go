package cmd

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dotandev/sorograph/internal/server"
	"github.com/dotandev/sorograph/internal/sorobanrpc"
	"github.com/dotandev/sorograph/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the decoder over JSON-RPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdown, err := tracing.Init(ctx, cfg.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()

		p, closer, err := buildPipeline()
		if err != nil {
			return err
		}
		defer func() { _ = closer() }()

		// The RPC node only retains recent transactions; an old node also
		// predates the meta versions we decode. Warn but keep serving, the
		// transport still works for everything Horizon retains.
		rpc := sorobanrpc.NewClient(cfg.Network, nil)
		if err := rpc.CheckVersion(ctx, cfg.MinRPCVersion); err != nil {
			log.WithError(err).Warn("soroban rpc version check failed")
		}

		return server.ListenAndServe(ctx, cfg.ListenAddr, p)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/effectai/engine-sub003/pkg/config"
	"github.com/effectai/engine-sub003/pkg/node"
)

func newWorkerCmd(v *viper.Viper) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker node",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(v, cmd)
			return runWorker(cmd, config.Load(v))
		},
	}

	workerCmd.Flags().String(config.KeyManagerAddr, v.GetString(config.KeyManagerAddr),
		"Multiaddr of the manager to register with, including the /p2p/ component.")
	workerCmd.Flags().String(config.KeyRecipient, v.GetString(config.KeyRecipient),
		"Account payments to this worker are addressed to.")
	workerCmd.Flags().String(config.KeyAccessCode, v.GetString(config.KeyAccessCode),
		"Single-use access code for first-time registration.")
	return workerCmd
}

func runWorker(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()

	workerNode, err := node.NewWorkerNode(ctx, node.WorkerNodeParams{Config: cfg})
	if err != nil {
		return err
	}
	if err := workerNode.Connect(ctx); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-signals:
		log.Ctx(ctx).Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return workerNode.Close(shutdownCtx)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/effectai/engine-sub003/pkg/config"
	"github.com/effectai/engine-sub003/pkg/node"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a manager node",
		RunE: func(cmd *cobra.Command, args []string) error {
			bindFlags(v, cmd)
			return runServe(cmd, config.Load(v))
		},
	}

	serveCmd.Flags().String(config.KeyAPIHost, v.GetString(config.KeyAPIHost),
		"Host for the public HTTP API.")
	serveCmd.Flags().Int(config.KeyAPIPort, v.GetInt(config.KeyAPIPort),
		"Port for the public HTTP API.")
	serveCmd.Flags().Bool(config.KeyRequireAccessCodes, v.GetBool(config.KeyRequireAccessCodes),
		"Require a single-use access code for first-time worker registration.")
	serveCmd.Flags().Duration(config.KeyManageInterval, v.GetDuration(config.KeyManageInterval),
		"Interval of the task housekeeping pass.")
	serveCmd.Flags().Uint64(config.KeyPayoutRatePerSecond, v.GetUint64(config.KeyPayoutRatePerSecond),
		"Payout amount accrued per connected second.")
	serveCmd.Flags().String(config.KeyPaymentAccount, v.GetString(config.KeyPaymentAccount),
		"Account minted payments draw from.")
	return serveCmd
}

func runServe(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()

	managerNode, err := node.NewManagerNode(ctx, node.ManagerNodeParams{Config: cfg})
	if err != nil {
		return err
	}
	if err := managerNode.Start(ctx); err != nil {
		return err
	}

	for _, addr := range managerNode.Host.Addrs() {
		p2pAddr, err := multiaddr.NewMultiaddr("/p2p/" + managerNode.Host.ID().String())
		if err == nil {
			log.Ctx(ctx).Info().Stringer("address", addr.Encapsulate(p2pAddr)).Msg("dial address")
		}
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
	return managerNode.Close(shutdownCtx)
}

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/effectai/engine-sub003/pkg/config"
)

// NewRootCmd builds the effect CLI: `effect serve` runs a manager node and
// `effect worker` runs a worker node.
func NewRootCmd() *cobra.Command {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:          "effect",
		Short:        "Effect task distribution and payment engine",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String(config.KeyDataDir, v.GetString(config.KeyDataDir),
		"Directory for persistent state. Empty runs in-memory.")
	rootCmd.PersistentFlags().Int(config.KeyLibp2pPort, v.GetInt(config.KeyLibp2pPort),
		"TCP port for the libp2p host.")
	bindFlags(v, rootCmd)

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newWorkerCmd(v))
	return rootCmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	_ = v.BindPFlags(cmd.PersistentFlags())
	_ = v.BindPFlags(cmd.Flags())
}

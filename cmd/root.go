package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "senderwatch",
		Short:         "senderwatch: track sender accounts on the remote dashboard",
		Long:          "senderwatch polls the sender dashboard with an adaptive cache, tracks newly submitted accounts through their status transitions, and notifies on changes.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.senderwatch/config.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newWatchCmd(&configPath),
		newAddCmd(&configPath),
		newStatusCmd(&configPath),
	)

	return rootCmd
}

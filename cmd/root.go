package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/parkfan/waitwatch-go/cmd/compare"
	"github.com/parkfan/waitwatch-go/cmd/monitor"
	"github.com/parkfan/waitwatch-go/cmd/stats"
	"github.com/parkfan/waitwatch-go/cmd/sweep"
	"github.com/parkfan/waitwatch-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "waitwatch",
		Short: "WaitWatch - wait-time prediction accuracy tracking",
		Long:  `WaitWatch compares issued wait-time forecasts against observed queue data, tracks accuracy statistics per attraction and watches for model drift.`,
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		monitor.Command(settings),
		compare.Command(settings),
		sweep.Command(settings),
		stats.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines global flags shared by all subcommands
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}

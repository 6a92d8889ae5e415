package main

import (
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"lookupkv"
	"lookupkv/utils"
)

var (
	configPath string
	verbose    bool
	metrics    bool

	stats    = lookupkv.NewStats()
	registry = prometheus.NewRegistry()
	register sync.Once
)

var rootCmd = &cobra.Command{
	Use:   "lookupkv [command] (flags)",
	Short: "build and query word -> value feature tables",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := utils.NewLogger(verbose)
		if err != nil {
			return err
		}
		utils.SetLogger(l)
		register.Do(func() { err = stats.Register(registry) })
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		_ = utils.Logger().Sync()
		if !metrics {
			return nil
		}
		return writeMetrics(cmd)
	},
	SilenceUsage: true,
}

func init() {
	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(buildCmd, queryCmd, dumpCmd, inspectCmd)

	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "", "TOML options file (defaults are used when empty)")
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable development logging")
	rootCmd.PersistentFlags().BoolVar(
		&metrics, "metrics", false, "print the collected metrics when the command ends")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}

func loadOptions() (*utils.Options, error) {
	if configPath == "" {
		return utils.DefaultOptions(), nil
	}
	return utils.LoadOptions(configPath)
}

func writeMetrics(cmd *cobra.Command) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(cmd.OutOrStdout(), expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

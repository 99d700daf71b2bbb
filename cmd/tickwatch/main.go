package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tickwatch",
	Short: "Real-time market structure monitor",
	Long: `tickwatch pulls one market tick per cycle, tracks volatility, swing
structure and regime for a single asset, and raises breakout, breakdown,
volatility expansion and liquidity sweep alerts.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "Path to configuration file (empty for defaults and environment only)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

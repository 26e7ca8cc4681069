package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "tokex",
	Short: "Order book and escrow settlement engine for tokenized company shares",
	Long: `tokex runs the share exchange: a persistent ledger of portfolios and
escrows, per-company order books with price-time priority and a matching
engine that settles every fill atomically.

Instructions are served over gRPC, read-only views and metrics over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml, toml or json)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(journalCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

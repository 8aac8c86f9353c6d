package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "1.0.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "cotizador",
	Short: "Product quotation service",
	Long: `Cotizador answers product quotation requests by fuzzy matching
queries against a CSV product catalog.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: config.yaml in ., ./config or /etc/cotizador)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

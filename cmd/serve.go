package cmd

import (
	"github.com/spf13/cobra"

	"sonora/config"
	"sonora/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the library server",
	Long:  "Scans the configured music root and serves the library over HTTP and WebSocket.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		initLogger(cfg)

		if err := StartWebServer(cfg); err != nil {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

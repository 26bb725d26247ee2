package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sonora/config"
	"sonora/logger"
)

var rootCmd = &cobra.Command{
	Use:   "sonora",
	Short: "Sonora indexes a local music collection and serves it to remote clients.",
	Run: func(cmd *cobra.Command, args []string) {
		// Serving is the default action.
		serveCmd.Run(cmd, args)
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogger sets up the global logger from config.
func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	})
}

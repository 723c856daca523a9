package cmd

import (
	"context"
	"fmt"
	"os"

	"FragFM/config"
	"FragFM/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fragfm",
	Short: "FragFM is a music library that streams songs as signed fragments.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
	SilenceUsage: true,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and starts the global logger from it.
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
	return cfg
}

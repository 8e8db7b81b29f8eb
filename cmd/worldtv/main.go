package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voyagen/worldtv/internal/config"
)

var configPath string

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "worldtv",
		Short: "IPTV channel directory and player service",
		Long: `WorldTV aggregates public M3U playlists into one deduplicated channel
catalog, serves it over a JSON API with per-user favorites and watch
history, and drives server-side player sessions.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML config file (default: environment variables and .env)")

	root.AddCommand(newServeCmd(), newCatalogCmd(), newProbeCmd())
	return root
}

// loadConfig reads the YAML file when --config is set, else the environment.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(cfg.Level())
	logger.SetOutput(os.Stderr)
	return logger
}

// Package cli implements the tako command line: the market server, the
// owner console and one-off account, order and market commands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kumanofoo/tako/internal/daemon"
	"github.com/kumanofoo/tako/internal/infra/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tako",
	Short: "A daily takoyaki market",
	Long: `tako runs a daily takoyaki market: one market a day somewhere in
Japan, orders before opening, weather-driven sales at closing, and a new
season whenever someone reaches the target balance.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the TOML config file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and the environment secrets.
func loadConfig() (daemon.Config, daemon.Secrets, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return cfg, daemon.Secrets{}, err
	}
	secrets, err := daemon.LoadSecrets()
	if err != nil {
		return cfg, secrets, err
	}
	return cfg, secrets, nil
}

// openStore opens the configured store for a one-off command.
func openStore(ctx context.Context) (*sqlite.DB, error) {
	cfg, secrets, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.DB.Path
	if secrets.DBPath != "" {
		path = secrets.DBPath
	}
	db, err := sqlite.Open(path, cfg.Params(), sqlite.DefaultRetryPolicy())
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if err := db.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

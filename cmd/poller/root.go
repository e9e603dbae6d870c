package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/connector-poller/pkg/config"
	"github.com/Sternrassler/connector-poller/pkg/logging"
)

var (
	configPath string
	envFile    string
	logLevel   string

	// cfg and logger are set by the root command before any subcommand runs
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "poller",
	Short: "Poll SaaS APIs and emit new items",
	Long: `Polls Calendly, Vercel and Front for newly created items and emits each
item exactly once per watermark advance. Configuration comes from a YAML
file, a .env file and POLLER_* environment variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default ./configs/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(loaded.Log.Level)
	logCfg.Pretty = loaded.Log.Pretty
	logCfg.Output = cmd.ErrOrStderr()
	logger = logging.Setup(logCfg)

	cfg = loaded
	return nil
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"dollhouse/pkg/config"
	"dollhouse/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dollhouse",
	Short: "A shared room of avatars, speech bubbles and the occasional bot swarm",
	Long: "Dollhouse keeps a room of user-made characters in a SQLite database. " +
		"Viewers see everyone who spoke recently with their latest line above their head; " +
		"a chaos event floods the room with bots until it falls over.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadDotEnv)
}

func loadDotEnv() {
	_ = godotenv.Load()
}

// setup loads configuration and the logger for one command. Commands that
// own the terminal pass quiet so logs only go to logging.file.
func setup(component string, quiet bool) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	if quiet && strings.TrimSpace(cfg.Logging.File) == "" {
		log := logger.Discard()
		slog.SetDefault(log)
		return cfg, log.With("component", component), func() {}, nil
	}

	appLogger, closeLog, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)
	return cfg, appLogger.With("component", component), func() { _ = closeLog() }, nil
}

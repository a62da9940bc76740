package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dollhouse/pkg/bot"
	"dollhouse/pkg/channel"
	"dollhouse/pkg/channel/telegram"
	"dollhouse/pkg/config"
	"dollhouse/pkg/gateway"
	"dollhouse/pkg/store/sqlite"

	"github.com/spf13/cobra"
)

const telegramChannelName = "telegram"

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge chat channels into the room",
	Long:  "Runs the enabled chat channels so their senders appear in the room as characters, with health and readiness endpoints.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closeLog, err := setup("cmd.bridge", false)
		if err != nil {
			return err
		}
		defer closeLog()

		adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			return fmt.Errorf("bridge configuration invalid: %w", err)
		}

		st, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		catalog, err := bot.DefaultCatalog()
		if err != nil {
			return err
		}
		bridge := channel.NewBridge(st, catalog, log)

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg.Gateway, st, bridge.Handle, adapters, log)
		if err != nil {
			return fmt.Errorf("initialize bridge service: %w", err)
		}

		log.Info("Bridge started", "channels", enabledChannelNames(adapters), "store", cfg.Store.Path, "address", cfg.Gateway.Addr())
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}

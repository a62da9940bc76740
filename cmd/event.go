package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"dollhouse/pkg/bubble"
	"dollhouse/pkg/chaos"
	"dollhouse/pkg/room"
	"dollhouse/pkg/schedule"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var eventDeadline time.Duration

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Run a chaos event with bots only",
	Long:  "Runs a chaos event without a database, logging what the bots say until the room falls over, then prints a summary.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closeLog, err := setup("cmd.event", false)
		if err != nil {
			return err
		}
		defer closeLog()

		if eventDeadline > 0 {
			cfg.Event.DeadlineSeconds = max(1, int(eventDeadline/time.Second))
		}

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		schedCtx, cancelSched := context.WithCancel(runCtx)
		defer cancelSched()

		sched := schedule.New(schedule.WithLogger(log))
		bubbles := bubble.NewManager(bubble.WithClock(sched.Now), bubble.WithDisplayDuration(cfg.Room.BubbleDuration()))
		event, err := newChaosEvent(cfg.Event, chatterLog{next: bubbles, log: log}, sched, log)
		if err != nil {
			return err
		}

		terminal := make(chan struct{})
		event.OnTerminal(func() { close(terminal) })

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sched.Run(schedCtx)
		}()

		if err := event.Start(); err != nil {
			return err
		}
		log.Info("Chaos event started", "deadline", event.Config().Deadline)

		select {
		case <-runCtx.Done():
			event.Stop()
		case <-terminal:
		}
		cancelSched()
		wg.Wait()

		renderStats(cmd.OutOrStdout(), event.Stats())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventCmd)
	eventCmd.Flags().DurationVar(&eventDeadline, "deadline", 0, "end the event after this long instead of the configured deadline")
}

// chatterLog logs every bot line before handing it to the bubble manager.
type chatterLog struct {
	next chaos.Poster
	log  *slog.Logger
}

func (c chatterLog) Post(characterID, content string) map[string]room.DisplayMessage {
	c.log.Info("Bot said", "bot_id", characterID, "content", content)
	return c.next.Post(characterID, content)
}

func renderStats(w io.Writer, stats chaos.Stats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"State", "Bots", "Messages", "Popups"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{
		stats.State.String(),
		strconv.Itoa(stats.Bots),
		strconv.Itoa(stats.MessagesSent),
		strconv.Itoa(stats.PopupsShown),
	})
	table.Render()
}

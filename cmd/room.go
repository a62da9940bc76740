package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dollhouse/pkg/room"
	"dollhouse/pkg/store"
	"dollhouse/pkg/ui/roomview"

	"github.com/spf13/cobra"
)

var (
	roomWithEvent bool
	roomAs        string
)

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Open the room viewer",
	Long:  "Shows everyone who spoke recently, with live updates from every process sharing the database. Use --as to talk as one of the stored characters and --event to unleash the bots.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closeLog, err := setup("cmd.room", true)
		if err != nil {
			return err
		}
		defer closeLog()

		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		stack, err := openRoomStack(cfg, log, roomWithEvent)
		if err != nil {
			return err
		}
		defer stack.close()

		opts := roomview.Options{Clock: stack.sched.Now}
		if id := strings.TrimSpace(roomAs); id != "" {
			speaker, err := stack.store.FetchCharacter(runCtx, id)
			if err != nil {
				return fmt.Errorf("find character %s: %w", id, err)
			}
			opts.SpeakerName = speaker.Name
			opts.Say = sayAs(stack.store, speaker.ID)
		}

		if err := stack.start(runCtx); err != nil {
			return err
		}
		log.Info("Room opened", "event", roomWithEvent, "speaker", opts.SpeakerName)
		return roomview.Run(runCtx, stack.presence, opts)
	},
}

func init() {
	rootCmd.AddCommand(roomCmd)
	roomCmd.Flags().BoolVar(&roomWithEvent, "event", false, "start a chaos event in this viewer")
	roomCmd.Flags().StringVar(&roomAs, "as", "", "character id to talk as")
}

// sayAs posts lines as one stored character.
func sayAs(st store.Store, characterID string) roomview.SayFunc {
	return func(ctx context.Context, content string) error {
		_, err := st.InsertMessage(ctx, room.Message{CharacterID: characterID, Content: content})
		return err
	}
}

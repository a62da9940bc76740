package cmd

import (
	"context"
	"fmt"
	"strings"

	"dollhouse/pkg/bot"
	"dollhouse/pkg/room"
	"dollhouse/pkg/store"
	"dollhouse/pkg/store/sqlite"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var createAvatar room.AvatarConfig

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a character",
	Long:  "Stores a new character. Without --body and --hair a matching avatar is picked from the built-in catalog.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, closeLog, err := setup("cmd.create", false)
		if err != nil {
			return err
		}
		defer closeLog()

		st, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		catalog, err := bot.DefaultCatalog()
		if err != nil {
			return err
		}

		character, err := createCharacter(cmd.Context(), st, catalog, strings.Join(args, " "), createAvatar)
		if err != nil {
			return err
		}
		log.Debug("Character created", "character_id", character.ID)
		fmt.Fprintln(cmd.OutOrStdout(), character.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVar(&createAvatar.Body, "body", "", "body asset id")
	createCmd.Flags().StringVar(&createAvatar.Hair, "hair", "", "hair asset id")
	createCmd.Flags().StringVar(&createAvatar.Outfit, "outfit", "", "outfit asset id")
}

// createCharacter fills a missing avatar from the catalog, checks it and
// inserts the character.
func createCharacter(ctx context.Context, st store.Store, catalog bot.Catalog, name string, avatar room.AvatarConfig) (room.Character, error) {
	if avatar.Body == "" && avatar.Hair == "" {
		avatar = bot.AvatarFor(catalog, name+":"+uuid.NewString())
	}
	if err := catalog.Check(avatar); err != nil {
		return room.Character{}, fmt.Errorf("invalid avatar: %w", err)
	}
	return st.InsertCharacter(ctx, room.Character{Name: name, Avatar: avatar})
}

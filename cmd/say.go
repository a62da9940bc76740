package cmd

import (
	"fmt"
	"strings"

	"dollhouse/pkg/store/sqlite"

	"github.com/spf13/cobra"
)

var sayCmd = &cobra.Command{
	Use:   "say <character-id> <message>",
	Short: "Post a message as a character",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closeLog, err := setup("cmd.say", false)
		if err != nil {
			return err
		}
		defer closeLog()

		st, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := sayAs(st, args[0])(cmd.Context(), strings.Join(args[1:], " ")); err != nil {
			return fmt.Errorf("post message: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sayCmd)
}

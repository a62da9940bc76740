package cmd

import (
	"io"
	"time"

	"dollhouse/pkg/room"
	"dollhouse/pkg/store/sqlite"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var charactersCmd = &cobra.Command{
	Use:   "characters",
	Short: "List stored characters, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closeLog, err := setup("cmd.characters", false)
		if err != nil {
			return err
		}
		defer closeLog()

		st, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		characters, err := st.FetchCharacters(cmd.Context())
		if err != nil {
			return err
		}
		writeCharacters(cmd.OutOrStdout(), characters)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(charactersCmd)
}

func writeCharacters(w io.Writer, characters []room.Character) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Body", "Hair", "Outfit", "Created"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, c := range characters {
		table.Append([]string{
			c.ID,
			c.Name,
			c.Avatar.Body,
			c.Avatar.Hair,
			c.Avatar.Outfit,
			c.CreatedAt.Local().Format(time.DateTime),
		})
	}
	table.Render()
}

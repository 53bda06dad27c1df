package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bridgetalk/internal/session"
	"bridgetalk/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session as a JSON document",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")

		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer st.Close()

		sessions := session.NewStore(st)
		if err := sessions.Load(cmd.Context()); err != nil {
			return fmt.Errorf("load session: %w", err)
		}

		data, err := session.ExportJSON(sessions.Current())
		if err != nil {
			return fmt.Errorf("export session: %w", err)
		}

		if out == "" {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(out, data, 0600); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Println("Exported to", out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
}

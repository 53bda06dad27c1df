package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bridgetalk/internal/session"
	"bridgetalk/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the session with a previously exported JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		// Validate before touching any persisted state.
		imported, err := session.ImportJSON(raw)
		if err != nil {
			return fmt.Errorf("import rejected: %w", err)
		}

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
		if err := sessions.Replace(cmd.Context(), imported); err != nil {
			return fmt.Errorf("replace session: %w", err)
		}

		fmt.Printf("Imported %d subjects.\n", len(imported.Subjects))
		return nil
	},
}

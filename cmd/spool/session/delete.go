package sessioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/engine"
	"github.com/spoolhq/spool/pkg/cliui"
)

const deleteLongDesc string = `Delete a session and all of its memory chunks.

Chunk deletion cascades through the configured vector store before the
session itself is removed.

Examples:
  spool session delete 4f7c...`

const deleteShortDesc string = "Delete a session"

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := engine.BuildService(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			deleted, err := svc.DeleteSession(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}
			if !deleted {
				return fmt.Errorf("session not found: %s", args[0])
			}

			fmt.Printf("\n  %s Deleted session %s\n\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render(args[0]),
			)
			return nil
		},
	}

	return cmd
}

package sessioncmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/engine"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/utils"
)

const showLongDesc string = `Show a session's metadata and counters.

Examples:
  spool session show 4f7c...`

const showShortDesc string = "Show a session"

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := engine.BuildService(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			session, err := svc.GetSession(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}
			if session == nil {
				return fmt.Errorf("session not found: %s", args[0])
			}

			rows := []struct {
				key   string
				value string
			}{
				{"id", session.ID},
				{"title", session.Title},
				{"genre", session.Genre},
				{"description", utils.Truncate(session.Description, 60)},
				{"tags", strings.Join(session.Tags, ", ")},
				{"characters", strings.Join(session.Characters, ", ")},
				{"chunks", fmt.Sprintf("%d (current %d)", session.TotalChunks, session.CurrentChunk)},
				{"messages", fmt.Sprintf("%d (%d pending)", session.TotalMessages, svc.PendingCount(session.ID))},
				{"last summary", utils.Truncate(session.LastSummary, 60)},
				{"created", session.CreatedAt.Format("2006-01-02 15:04:05")},
				{"updated", session.UpdatedAt.Format("2006-01-02 15:04:05")},
			}

			fmt.Println()
			for _, row := range rows {
				value := row.value
				if value == "" {
					value = cliui.DimStyle.Render("<not set>")
				}
				fmt.Printf("  %-14s %s\n", cliui.KeyStyle.Render(row.key), value)
			}
			fmt.Println()

			return nil
		},
	}

	return cmd
}

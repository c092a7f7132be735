// Package saycmder provides the say command, which feeds a message into a
// session's memory stream.
package saycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/engine"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/llm"
)

const sayLongDesc string = `Feed a message into a session's memory stream.

Each message is buffered and analyzed for narrative significance. Once enough
messages accumulate, or the analyzer flags a natural break, the buffer is
condensed into an embedded memory chunk.

Examples:
  spool say 4f7c... "Mara slips through the checkpoint unnoticed."
  spool say --role assistant 4f7c... "The guard waves her through."`

const sayShortDesc string = "Feed a message into a session"

func NewSayCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "say <session-id> <message>",
		Short: sayShortDesc,
		Long:  sayLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := engine.BuildService(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			sessionID := args[0]
			analysis, err := svc.AddMessage(cmd.Context(), sessionID, llm.Message{
				Role:    role,
				Content: args[1],
			})
			if err != nil {
				return fmt.Errorf("adding message: %w", err)
			}

			pending := svc.PendingCount(sessionID)

			fmt.Printf("\n  %s Message recorded\n", cliui.SuccessMark)
			fmt.Printf("  %s  %.2f\n", cliui.KeyStyle.Render("importance"), analysis.Importance)
			fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("plot point"), analysis.PlotPoint)
			fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("emotion"), analysis.Emotion)
			if len(analysis.NewCharacters) > 0 {
				fmt.Printf("  %s  %v\n", cliui.KeyStyle.Render("characters"), analysis.NewCharacters)
			}
			if pending == 0 {
				fmt.Printf("  %s\n\n", cliui.ValueStyle.Render("chunk formed"))
			} else {
				fmt.Printf("  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%d message(s) buffered", pending)))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "user", "Message role (user, assistant, system)")

	return cmd
}

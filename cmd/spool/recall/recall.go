// Package recallcmder provides the recall command, which assembles memory
// context for a session around a query.
package recallcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/engine"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/utils"
	"github.com/spoolhq/spool/pkg/vector"
)

const recallLongDesc string = `Assemble memory context for a session around a query.

Recall always includes the most recent chunks, then fills the remaining slots
with the chunks most similar to the query, and tops the result off with a
condensed plot summary, the active character cast, and the current world
state.

Examples:
  spool recall 4f7c... "What happened at the checkpoint?"
  spool recall --top-k 8 4f7c... "Where is Mara now?"`

const recallShortDesc string = "Recall memory context for a query"

func NewRecallCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "recall <session-id> <query>",
		Short: recallShortDesc,
		Long:  recallLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := engine.BuildService(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			if !cmd.Flags().Changed("top-k") {
				topK, err = engine.TopK(cmd)
				if err != nil {
					return err
				}
			}

			rc, err := svc.Retrieve(cmd.Context(), args[0], args[1], topK)
			if err != nil {
				return fmt.Errorf("retrieving context: %w", err)
			}
			if rc == nil {
				return fmt.Errorf("session not found: %s", args[0])
			}

			fmt.Println()
			fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("plot"), rc.PlotSummary)
			if len(rc.Characters) > 0 {
				fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("cast"), strings.Join(rc.Characters, ", "))
			}
			if rc.WorldState != "" {
				fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("world"), utils.Truncate(rc.WorldState, 80))
			}

			printChunks("recent", rc.RecentChunks)
			printChunks("relevant", rc.RelevantChunks)
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "Total number of chunks to recall (default from config)")

	return cmd
}

func printChunks(label string, chunks []*vector.Chunk) {
	if len(chunks) == 0 {
		return
	}
	fmt.Printf("\n  %s\n", cliui.KeyStyle.Render(label))
	for _, chunk := range chunks {
		fmt.Printf("    %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("#%d", chunk.ChunkIndex)),
			utils.Truncate(chunk.Summary, 70),
		)
	}
}

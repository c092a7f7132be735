package sessioncmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spoolhq/spool/cmd/spool/engine"
	"github.com/spoolhq/spool/pkg/cliui"
	"github.com/spoolhq/spool/pkg/memory"
)

const createLongDesc string = `Create a new memory session.

When --system is provided, an origin chunk describing the setting is created
before the session is returned, so the very first retrieval already has
context to draw on.

Examples:
  spool session create --title "Neon Rain" --genre cyberpunk
  spool session create --title "Neon Rain" --system "Setting: a rain-soaked megacity"`

const createShortDesc string = "Create a session"

func newCreateCmd() *cobra.Command {
	var (
		title         string
		description   string
		genre         string
		tags          []string
		characters    []string
		plotOutline   string
		systemMessage string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: createShortDesc,
		Long:  createLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := engine.BuildService(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			session, err := svc.CreateSession(cmd.Context(), memory.CreateSessionRequest{
				Title:         title,
				Description:   description,
				Genre:         genre,
				Tags:          tags,
				Characters:    characters,
				PlotOutline:   plotOutline,
				SystemMessage: systemMessage,
			})
			if err != nil {
				return fmt.Errorf("creating session: %w", err)
			}

			fmt.Printf("\n  %s Created session %s\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render(session.ID),
			)
			if session.Title != "" {
				fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("title"), session.Title)
			}
			if len(session.Characters) > 0 {
				fmt.Printf("  %s  %s\n",
					cliui.KeyStyle.Render("characters"),
					strings.Join(session.Characters, ", "),
				)
			}
			fmt.Printf("  %s  %d\n\n", cliui.KeyStyle.Render("chunks"), session.TotalChunks)

			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Session title")
	cmd.Flags().StringVar(&description, "description", "", "Session description")
	cmd.Flags().StringVar(&genre, "genre", "", "Session genre")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Session tag (repeatable)")
	cmd.Flags().StringSliceVar(&characters, "character", nil, "Initial character (repeatable)")
	cmd.Flags().StringVar(&plotOutline, "plot", "", "Plot outline")
	cmd.Flags().StringVar(&systemMessage, "system", "", "Initial system message; creates an origin chunk")

	return cmd
}

// Package sessioncmder provides the session command group for creating,
// inspecting, and deleting memory sessions.
package sessioncmder

import (
	"github.com/spf13/cobra"
)

const sessionLongDesc string = `Manage memory sessions.

A session is a bounded conversational context with its own memory stream and
character cast. Messages fed into a session condense into embedded memory
chunks once enough conversation accumulates.

Use subcommands to create, inspect, or delete sessions:
  spool session create    Create a session
  spool session show      Show a session's metadata and counters
  spool session delete    Delete a session and all its chunks

Examples:
  spool session create --title "Neon Rain" --genre cyberpunk
  spool session show 4f7c...
  spool session delete 4f7c...`

const sessionShortDesc string = "Manage memory sessions"

func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: sessionShortDesc,
		Long:  sessionLongDesc,
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

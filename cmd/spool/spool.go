// Package spoolcmder
package spoolcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/spoolhq/spool/cmd/spool/config"
	initcmder "github.com/spoolhq/spool/cmd/spool/init"
	recallcmder "github.com/spoolhq/spool/cmd/spool/recall"
	saycmder "github.com/spoolhq/spool/cmd/spool/say"
	sessioncmder "github.com/spoolhq/spool/cmd/spool/session"
	versioncmder "github.com/spoolhq/spool/cmd/version"
)

const spoolLongDesc string = `Spool is session memory for long-running conversations.

It condenses conversation history into embedded memory chunks and retrieves
the chunks most relevant to a new query:
  spool session create   Create a session
  spool say              Feed a message into a session's memory
  spool recall           Retrieve memory context for a query`

const spoolShortDesc string = "Spool - Session Memory Engine"

func NewSpoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: spoolShortDesc,
		Long:  spoolLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .spool/ directory location")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(sessioncmder.NewSessionCmd())
	cmd.AddCommand(saycmder.NewSayCmd())
	cmd.AddCommand(recallcmder.NewRecallCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

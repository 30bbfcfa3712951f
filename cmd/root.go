package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapbinder",
		Short: "Capture-session tool that binds screenshots into searchable PDFs",
		Long: `SnapBinder accumulates captured images into a named session, annotates
them in the background with recognized text, and exports them as one PDF whose
pages stay pixel-identical while their text becomes searchable and selectable.

A second device can upload images into the running session through a
short-lived, token-authenticated channel.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "batch_ledger",
	Short: "Batch ledger service for chemical production tracking",
	Long: `A service that tracks chemical production batches through their
lifecycle, keeps an append-only audit trail of every stage and ownership
change, and exposes an API plus a command queue for collaborators.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}

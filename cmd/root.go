package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

// Execute runs the command using program args and exits on failure.
func Execute() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devolve",
		Short: "Dispatch opaque jobs to dynamically-connecting worker processes",
	}
	cmd.AddCommand(serveCmd(), benchWorkerCmd())
	return cmd
}

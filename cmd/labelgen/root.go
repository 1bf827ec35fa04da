package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labelgen",
		Short: "Generate printable box labels from a product spreadsheet",
		Long: `labelgen turns a product spreadsheet and a set of product pictures into a
Word document with one label page per box.

The same document is produced by the API and worker services; this tool runs
the generation locally without queue, database or object storage.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newGenerateCmd())

	return cmd
}

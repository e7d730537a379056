package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:     "reconcile",
		Short:   "Match bank transactions to recorded expenses",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default config.yaml, then environment)")
	pf.StringVar(&flags.dbPath, "db", "", "database path, overrides the config")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json")

	rootCmd.AddCommand(
		newImportCommand(flags),
		newSuggestCommand(flags),
		newAutoCommand(flags),
		newCommitCommand(flags),
		newUndoCommand(flags),
		newRunsCommand(flags),
		newLinksCommand(flags),
		newServeCommand(flags),
	)

	return rootCmd
}

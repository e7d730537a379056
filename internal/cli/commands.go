package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/importer"
)

// thresholdFlags override the configured thresholds for one run
type thresholdFlags struct {
	minScore      int
	autoThreshold int
}

func (t *thresholdFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&t.minScore, "min-score", 0, "minimum score to suggest a pair (default from config)")
	cmd.Flags().IntVar(&t.autoThreshold, "auto-threshold", 0, "minimum score to reconcile automatically (default from config)")
}

// options sets only the thresholds given on the command line
func (t *thresholdFlags) options(cmd *cobra.Command) reconcile.RunOptions {
	var opts reconcile.RunOptions
	if cmd.Flags().Changed("min-score") {
		v := t.minScore
		opts.MinScore = &v
	}
	if cmd.Flags().Changed("auto-threshold") {
		v := t.autoThreshold
		opts.AutoThreshold = &v
	}
	return opts
}

func newImportCommand(g *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:       "import (transactions|expenses) FILE",
		Short:     "Import bank transactions or expenses from a CSV or JSON file",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"transactions", "expenses"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), "import")
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			var result *reconcile.ImportResult
			var unreadable []*model.ValidationError
			switch args[0] {
			case "transactions":
				txs, rejected, err := importer.TransactionsFile(args[1], importer.Format(format))
				if err != nil {
					return err
				}
				unreadable = rejected
				result, err = a.service.ImportTransactions(ctx, txs)
				if err != nil {
					return err
				}
			case "expenses":
				exps, rejected, err := importer.ExpensesFile(args[1], importer.Format(format))
				if err != nil {
					return err
				}
				unreadable = rejected
				result, err = a.service.ImportExpenses(ctx, exps)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown record kind %q: use transactions or expenses", args[0])
			}
			result.Rejected = append(unreadable, result.Rejected...)

			printImport(cmd.OutOrStdout(), args[0], result)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "csv or json (default from file extension)")
	return cmd
}

func newSuggestCommand(g *globalFlags) *cobra.Command {
	var thresholds thresholdFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "List match candidates for unreconciled records without committing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), "suggest")
			if err != nil {
				return err
			}
			defer a.close()

			suggestions, err := a.service.Suggest(cmd.Context(), thresholds.options(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), suggestions)
			}
			printCandidates(cmd.OutOrStdout(), suggestions)
			return nil
		},
	}

	thresholds.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print candidates as JSON")
	return cmd
}

func newAutoCommand(g *globalFlags) *cobra.Command {
	var thresholds thresholdFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Reconcile every candidate at or above the auto-reconcile threshold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), "auto")
			if err != nil {
				return err
			}
			defer a.close()

			opts := thresholds.options(cmd)
			opts.Progress = func(done, total int) {
				a.logger.Debug("progress", "done", done, "total", total)
			}

			result, err := a.service.AutoReconcile(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printReport(cmd.OutOrStdout(), result)
			return nil
		},
	}

	thresholds.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newCommitCommand(g *globalFlags) *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "commit TRANSACTION_ID EXPENSE_ID",
		Short: "Reconcile a transaction with an expense by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), "commit")
			if err != nil {
				return err
			}
			defer a.close()

			link, err := a.service.ManualReconcile(cmd.Context(), args[0], args[1], note)
			if err != nil {
				return err
			}
			printLink(cmd.OutOrStdout(), "Reconciled", link)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "note stored on the transaction (default lists the match reasons)")
	return cmd
}

func newUndoCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "undo TRANSACTION_ID",
		Short: "Remove the reconciliation of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), "undo")
			if err != nil {
				return err
			}
			defer a.close()

			link, err := a.service.Unreconcile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printLink(cmd.OutOrStdout(), "Reverted", link)
			return nil
		},
	}
}

func newRunsCommand(g *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent auto-reconcile runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), "runs")
			if err != nil {
				return err
			}
			defer a.close()

			runs, err := a.store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func newLinksCommand(g *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "links",
		Short: "Show recent reconciliations, reverted ones included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), "links")
			if err != nil {
				return err
			}
			defer a.close()

			links, err := a.store.ListReconciliations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printLinks(cmd.OutOrStdout(), links)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "number of reconciliations to show")
	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

const rule = "------------------------------------------------------------"

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printImport prints the result of an import
func printImport(w io.Writer, kind string, result *reconcile.ImportResult) {
	fmt.Fprintf(w, "Imported %s: saved=%d categorized=%d rejected=%d\n",
		kind, result.Saved, result.Categorized, len(result.Rejected))
	printRejected(w, result.Rejected)
}

func printRejected(w io.Writer, rejected []*model.ValidationError) {
	if len(rejected) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRejected records:")
	for _, verr := range rejected {
		fmt.Fprintf(w, "  - %v\n", verr)
	}
}

// printCandidates prints candidates as a table, best first
func printCandidates(w io.Writer, s *reconcile.Suggestions) {
	fmt.Fprintf(w, "Candidates: %d (min score %d, auto threshold %d)\n\n",
		len(s.Candidates), s.MinScore, s.AutoThreshold)

	if len(s.Candidates) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tAUTO\tTRANSACTION\tEXPENSE\tREASONS")
		for _, c := range s.Candidates {
			auto := ""
			if c.AutoMatch {
				auto = "yes"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				c.Score, auto, c.TransactionID, c.ExpenseID, strings.Join(c.Reasons, "; "))
		}
		_ = tw.Flush()
	}
	printRejected(w, s.Rejected)
}

// printReport prints the outcome of an auto-reconcile run
func printReport(w io.Writer, result *reconcile.AutoResult) {
	report := result.Report

	for _, link := range report.Succeeded {
		fmt.Fprintf(w, "  ok    %s <-> %s (score %d)\n", link.TransactionID, link.ExpenseID, link.Score)
	}
	for _, f := range report.Failed {
		fmt.Fprintf(w, "  fail  %s <-> %s: %s\n", f.TransactionID, f.ExpenseID, f.Error)
	}
	for _, p := range report.Skipped {
		fmt.Fprintf(w, "  skip  %s <-> %s\n", p.TransactionID, p.ExpenseID)
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run %s: Succeeded=%d Failed=%d Skipped=%d ForReview=%d\n",
		result.RunID, len(report.Succeeded), len(report.Failed), len(report.Skipped), len(report.Manual))
	printRejected(w, report.Rejected)
}

// printLink prints a single committed or reverted link
func printLink(w io.Writer, verb string, link *model.Link) {
	fmt.Fprintf(w, "%s %s <-> %s (score %d, %s)\n", verb, link.TransactionID, link.ExpenseID, link.Score, link.Mode)
	if link.Note != "" {
		fmt.Fprintf(w, "Note: %s\n", link.Note)
	}
}

// printRuns prints run history
func printRuns(w io.Writer, runs []storage.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tCANDIDATES\tAUTO\tOK\tFAILED\tSKIPPED\tID")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status,
			r.Candidates, r.AutoMatched, r.Succeeded, r.Failed, r.Skipped, r.ID)
	}
	_ = tw.Flush()
}

// printLinks prints committed links, newest first
func printLinks(w io.Writer, links []model.Link) {
	if len(links) == 0 {
		fmt.Fprintln(w, "No reconciliations.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tTRANSACTION\tEXPENSE\tSCORE\tMODE\tSTATE")
	for _, l := range links {
		state := "active"
		if l.RevertedAt != nil {
			state = "reverted"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			l.CreatedAt.Local().Format("2006-01-02 15:04"), l.TransactionID, l.ExpenseID, l.Score, l.Mode, state)
	}
	_ = tw.Flush()
}

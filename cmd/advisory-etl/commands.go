package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/spf13/cobra"
)

func addLatestCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "latest",
		Short: "Print the latest advisory per country from history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				latest, err := a.pipeline.Latest(ctx)
				if err != nil {
					return err
				}
				if len(latest) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "History is empty.")
					return nil
				}
				return printLatest(cmd.OutOrStdout(), latest)
			})
		},
	})
}

func addChangesCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "changes",
		Short: "Fetch the feed and show which countries would change, without saving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				plan, err := a.pipeline.Prepare(ctx)
				if err != nil {
					return err
				}
				for _, g := range plan.Gaps {
					cmd.PrintErrf("warning: %s\n", g)
				}
				changed := plan.Reconciliation.ChangedOnly()
				if len(changed) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No changes in %d records.\n", len(plan.Reconciliation.Batch))
					return nil
				}
				return printChanges(cmd.OutOrStdout(), changed)
			})
		},
	})
}

func addValidateCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check persisted history against the record invariants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				records, err := a.store.Load(ctx)
				if err != nil {
					return fmt.Errorf("load history: %w", err)
				}
				phases := validateHistory(records, a.table, a.normalizer.Today())
				if !report(cmd.OutOrStdout(), phases, len(records)) {
					return fmt.Errorf("validation failed")
				}
				return nil
			})
		},
	})
}

func printLatest(w io.Writer, latest []domain.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tPUBLISHED\tLEVEL")
	for _, r := range latest {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.CountryCode, r.PublishedOn.Format(domain.DateLayout), r.ThreatLevel)
	}
	return tw.Flush()
}

func printChanges(w io.Writer, changed []domain.Reconciled) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tPRIOR\tPUBLISHED\tLEVEL")
	for _, r := range changed {
		prior := "new"
		if !r.PriorPublishedOn.IsZero() {
			prior = r.PriorPublishedOn.Format(domain.DateLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.CountryCode, prior, r.PublishedOn.Format(domain.DateLayout), r.ThreatLevel)
	}
	return tw.Flush()
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func validateHistory(records []domain.Record, table domain.CodeTable, today time.Time) []*phase {
	invariants := &phase{name: "Record invariants"}
	for i, r := range records {
		if err := domain.ValidateRecord(r, table, today); err != nil {
			invariants.errorf("row %d: %v", i+1, err)
		}
	}

	coverage := &phase{name: "Country coverage"}
	latest := domain.LatestState(records)
	coverage.notes = append(coverage.notes, fmt.Sprintf("%d countries in latest state", len(latest)))
	for _, r := range latest {
		if r.ThreatNumber == 0 {
			coverage.notes = append(coverage.notes, fmt.Sprintf("%s latest row has no threat number", r.CountryCode))
		}
	}

	return []*phase{invariants, coverage}
}

// report prints a summary and returns whether every phase passed.
func report(w io.Writer, phases []*phase, rows int) bool {
	fmt.Fprintf(w, "Validated %d history rows\n\n", rows)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-24s %s\n", p.name, status)
	}

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.notes) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
		for _, n := range p.notes {
			fmt.Fprintf(w, "  note: %s\n", n)
		}
	}
	return allPassed
}

package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/finboard-dev/finboard/internal/coerce"
	"github.com/finboard-dev/finboard/internal/importlog"
	"github.com/finboard-dev/finboard/internal/ledger"
	"github.com/finboard-dev/finboard/internal/render"
	"github.com/finboard-dev/finboard/internal/report"
)

func newReportCommand(g *globals) *cobra.Command {
	var from, to, category string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show totals, category breakdown, monthly trend and transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			dates := coerce.NewDateParser(e.cfg.Import.DateFormats)
			q := report.Query{}
			if cmd.Flags().Changed("category") && category != categoryAlias {
				q.Category = report.Category(category)
			}
			if q.Range.From, err = parseFlagDate(dates, "from", from); err != nil {
				return err
			}
			if q.Range.To, err = parseFlagDate(dates, "to", to); err != nil {
				return err
			}

			// An unreadable ledger is reported and shown as empty.
			l, _ := e.svc.Ledger().LoadOrEmpty()

			v, err := report.Build(l, q)
			if errors.Is(err, report.ErrNoValidDates) {
				if asJSON {
					_, err := fmt.Fprintln(out, "null")
					return err
				}
				_, err := fmt.Fprintln(out, "No dated transactions in the ledger yet.")
				return err
			}
			if err != nil {
				return err
			}
			if v.CategoryReset {
				e.logger.Warn("category has no rows in range, showing all", "category", category)
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}
			return render.Dashboard(out, v, e.cfg.Report.Currency)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first day of the range (DD.MM.YYYY)")
	cmd.Flags().StringVar(&to, "to", "", "last day of the range (DD.MM.YYYY)")
	cmd.Flags().StringVar(&category, "category", categoryAlias, `only list transactions in this category ("" for uncategorized)`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return cmd
}

// categoryAlias on the command line selects every category.
const categoryAlias = "all"

func parseFlagDate(dates coerce.DateParser, name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, ok := dates.Parse(value)
	if !ok {
		return time.Time{}, fmt.Errorf("--%s: unrecognized date %q", name, value)
	}
	return d, nil
}

func newHistoryCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List past uploads, saves and cancellations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			entries, err := importlog.Read(e.root)
			if err != nil {
				return err
			}
			return render.History(cmd.OutOrStdout(), entries)
		},
	}
}

func newValidateCommand(g *globals) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the ledger for duplicate rows and missing dates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			store := e.svc.Ledger()

			l, err := store.Load()
			if err != nil {
				return err
			}

			undated := 0
			for _, txn := range l {
				if !txn.HasDate() {
					undated++
				}
			}
			if undated > 0 {
				e.logger.Warn("ledger rows without a date", "count", undated)
			}

			verrs := ledger.Validate(l)
			for _, ve := range verrs {
				fmt.Fprintln(out, ve.Error())
			}
			if len(verrs) == 0 {
				fmt.Fprintf(out, "Ledger OK: %d transactions, %d without a date.\n", len(l), undated)
				return nil
			}

			if !fix {
				return fmt.Errorf("%d validation error(s); run with --fix to drop duplicates", len(verrs))
			}
			deduped := ledger.Dedup(l)
			if err := store.Save(deduped); err != nil {
				return err
			}
			fmt.Fprintf(out, "Removed %d duplicate row(s); ledger has %d.\n", len(l)-len(deduped), len(deduped))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "rewrite the ledger keeping the first of each duplicate")

	return cmd
}

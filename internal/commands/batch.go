package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finboard-dev/finboard/internal/config"
	"github.com/finboard-dev/finboard/internal/ingest"
	"github.com/finboard-dev/finboard/internal/render"
	"github.com/finboard-dev/finboard/internal/schema"
	"github.com/finboard-dev/finboard/internal/session"
)

const previewRows = 10

func newUploadCommand(g *globals) *cobra.Command {
	var delimiter string
	var layout string

	cmd := &cobra.Command{
		Use:   "upload <file|->",
		Short: "Stage a bank export as the pending batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}

			delim := config.ParseDelimiter(delimiter)

			var r io.Reader = cmd.InOrStdin()
			source := "stdin"
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening upload: %w", err)
				}
				defer f.Close()
				r = f
				source = filepath.Base(args[0])
			}

			p, err := e.svc.Upload(r, source, ingest.UploadOptions{Delimiter: delim, Layout: layout})
			if err != nil {
				return err
			}
			return showPending(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().StringVar(&delimiter, "delimiter", "", `field delimiter ("," ";" "tab"); default from config or sniffed`)
	cmd.Flags().StringVar(&layout, "layout", "", "saved column layout to apply")

	return cmd
}

func newMapCommand(g *globals) *cobra.Command {
	var m schema.Mapping
	var saveAs string

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Confirm the column mapping of the pending batch",
		Long: "Confirm the proposed column mapping of the pending batch. Each flag " +
			"replaces the proposed source column for one ledger column.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}

			p, err := e.svc.Pending()
			if err != nil {
				return err
			}
			p, err = e.svc.ConfirmMapping(p, m)
			if err != nil {
				return err
			}

			if saveAs != "" {
				if err := config.SaveLayout(filepath.Join(e.root, config.FileName), saveAs, p.Proposed); err != nil {
					return err
				}
				e.logger.Info("layout saved", "name", strings.ToLower(saveAs))
			}
			return showPending(cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().StringVar(&m.Date, "date", "", "source column for the date")
	cmd.Flags().StringVar(&m.Description, "description", "", "source column for the description")
	cmd.Flags().StringVar(&m.Amount, "amount", "", "source column for the amount")
	cmd.Flags().StringVar(&m.Category, "category", "", "source column for the category")
	cmd.Flags().StringVar(&saveAs, "save-layout", "", "remember this mapping under a name for future uploads")

	return cmd
}

func newSaveCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Merge the pending batch into the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			p, err := e.svc.Pending()
			if err != nil {
				return err
			}
			res, err := e.svc.Save(p)
			if err != nil {
				return err
			}
			printSaveResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newCancelCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the pending batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			p, err := e.svc.Pending()
			if err != nil {
				return err
			}
			if err := e.svc.Cancel(p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Discarded pending batch from %s.\n", p.Source)
			return nil
		},
	}
}

func newStatusCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the pending batch and ledger size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			l, err := e.svc.Ledger().LoadOrEmpty()
			if err != nil {
				fmt.Fprintf(out, "Ledger %s is unreadable: %v\n", e.svc.Ledger().Path(), err)
			} else {
				fmt.Fprintf(out, "Ledger %s: %d transactions\n", e.svc.Ledger().Path(), len(l))
			}

			p, err := e.svc.Pending()
			if err != nil {
				return err
			}
			if p == nil {
				fmt.Fprintln(out, "No pending batch.")
				return nil
			}
			fmt.Fprintln(out)
			return showPending(out, p)
		},
	}
}

func newImportCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Upload and save every export in the inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			results, err := e.svc.ImportInbox()
			for _, r := range results {
				if r.Saved != nil {
					fmt.Fprintf(out, "%s: ", r.File)
					printSaveResult(out, r.Saved)
					continue
				}
				fmt.Fprintf(out, "%s needs a column mapping; run `finboard map` then `finboard save`.\n\n", r.File)
				if err := render.Pending(out, r.Pending, previewRows); err != nil {
					return err
				}
			}
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintf(out, "Inbox %s is empty.\n", e.svc.InboxDir())
			}
			return nil
		},
	}
}

func showPending(w io.Writer, p *session.Pending) error {
	if p == nil {
		return ingest.ErrNoPending
	}
	if err := render.Pending(w, p, previewRows); err != nil {
		return err
	}
	switch p.Stage {
	case session.StageNeedsMapping:
		_, err := fmt.Fprintln(w, "\nColumns differ from the ledger. Confirm with `finboard map` (override with --date, --description, --amount, --category).")
		return err
	case session.StageReady:
		_, err := fmt.Fprintln(w, "\nReady. Run `finboard save` to merge into the ledger or `finboard cancel` to discard.")
		return err
	}
	return nil
}

func printSaveResult(w io.Writer, res *ingest.SaveResult) {
	fmt.Fprintf(w, "added %d new transaction(s), skipped %d duplicate(s); ledger has %d.\n",
		res.Merge.Added, res.Merge.Duplicates, res.Total)
	if res.Coercion.InvalidDates > 0 {
		fmt.Fprintf(w, "  %d row(s) kept without a date (lines %s).\n", res.Coercion.InvalidDates, joinInts(res.Coercion.InvalidDateLines))
	}
	for _, nm := range res.NearMatches {
		fmt.Fprintf(w, "  possible duplicate on %s: %q looks like %q\n", nm.Added.FormatDate(), nm.Added.Description, nm.Existing.Description)
	}
	if res.Commit != "" {
		fmt.Fprintf(w, "  committed %s\n", res.Commit)
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

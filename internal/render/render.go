// Package render draws reports, pending batches and the import history for
// the terminal.
package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/finboard-dev/finboard/internal/importlog"
	"github.com/finboard-dev/finboard/internal/model"
	"github.com/finboard-dev/finboard/internal/report"
	"github.com/finboard-dev/finboard/internal/session"
)

const (
	barWidth  = 30
	noDate    = "-"
	timestamp = "2006-01-02 15:04"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	labelStyle   = lipgloss.NewStyle().Faint(true)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	kpiStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).MarginRight(1)
	expenseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
	incomeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// Money formats an amount with two decimals, grouped thousands and the
// currency code: "CHF 2,995.50".
func Money(d decimal.Decimal, currency string) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	grouped := intPart
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		grouped = humanize.Comma(n)
	}

	sign := ""
	if d.IsNegative() && !d.Abs().Round(2).IsZero() {
		sign = "-"
	}
	s := sign + grouped + "." + frac
	if currency == "" {
		return s
	}
	return currency + " " + s
}

// Percent formats a percentage with one decimal.
func Percent(d decimal.Decimal) string {
	return d.StringFixed(1) + " %"
}

// Dashboard writes the full report view.
func Dashboard(w io.Writer, v *report.View, currency string) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Ledger %s to %s", fmtDate(v.Range.From), fmtDate(v.Range.To))))
	b.WriteString("\n")
	b.WriteString(KPIs(v.Summary, currency))
	b.WriteString("\n\n")

	b.WriteString(valueStyle.Render("Expenses by category"))
	b.WriteString("\n")
	b.WriteString(CategoryBars(v.CategoryTotals, currency))
	b.WriteString("\n")

	b.WriteString(valueStyle.Render("Monthly trend"))
	b.WriteString("\n")
	b.WriteString(Trend(v.Trend, currency))
	b.WriteString("\n\n")

	title := "Transactions"
	if v.Category.Only {
		title += " in " + categoryLabel(v.Category.Name)
	}
	b.WriteString(valueStyle.Render(title))
	b.WriteString("\n")
	if v.CategoryReset {
		b.WriteString(warnStyle.Render("Selected category has no rows in this range; showing all categories."))
		b.WriteString("\n")
	}
	b.WriteString(Transactions(v.Detail, currency))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// KPIs renders the summary metrics as a row of boxes.
func KPIs(s report.Summary, currency string) string {
	box := func(label, value string, style lipgloss.Style) string {
		return kpiStyle.Render(labelStyle.Render(label) + "\n" + style.Render(value))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		box("Expenses", Money(s.TotalExpenses, currency), expenseStyle),
		box("Income", Money(s.TotalIncome, currency), incomeStyle),
		box("Balance", Money(s.Balance, currency), valueStyle),
		box("Savings rate", Percent(s.SavingsRate), valueStyle),
		box("Transactions", humanize.Comma(int64(s.Transactions)), valueStyle),
	)
}

// CategoryBars renders expense totals as horizontal bars scaled to the
// largest category.
func CategoryBars(totals []report.CategoryTotal, currency string) string {
	if len(totals) == 0 {
		return labelStyle.Render("no expenses") + "\n"
	}

	maxAmount := decimal.Zero
	labelWidth := 0
	for _, ct := range totals {
		if ct.Amount.GreaterThan(maxAmount) {
			maxAmount = ct.Amount
		}
		labelWidth = max(labelWidth, lipgloss.Width(ct.Category))
	}

	var b strings.Builder
	for _, ct := range totals {
		n := 0
		if maxAmount.IsPositive() {
			n = int(ct.Amount.Mul(decimal.NewFromInt(barWidth)).Div(maxAmount).Round(0).IntPart())
		}
		label := ct.Category + strings.Repeat(" ", labelWidth-lipgloss.Width(ct.Category))
		fmt.Fprintf(&b, "%s %s %s\n", label, expenseStyle.Render(strings.Repeat("█", max(n, 1))), Money(ct.Amount, currency))
	}
	return b.String()
}

// Trend renders the monthly expense and income series side by side.
func Trend(points []report.TrendPoint, currency string) string {
	type row struct{ expense, income decimal.Decimal }
	var months []string
	byMonth := make(map[string]*row)
	for _, p := range points {
		r, ok := byMonth[p.Month]
		if !ok {
			r = &row{}
			byMonth[p.Month] = r
			months = append(months, p.Month)
		}
		if p.Type == report.TypeIncome {
			r.income = p.Amount
		} else {
			r.expense = p.Amount
		}
	}
	sort.Strings(months)

	rows := make([][]string, 0, len(months))
	for _, m := range months {
		r := byMonth[m]
		rows = append(rows, []string{m, Money(r.expense, currency), Money(r.income, currency)})
	}
	return newTable("Month", "Expenses", "Income").Rows(rows...).String()
}

// Transactions renders ledger rows as a table.
func Transactions(txns []model.Transaction, currency string) string {
	rows := make([][]string, len(txns))
	for i, txn := range txns {
		d := txn.FormatDate()
		if d == "" {
			d = noDate
		}
		rows[i] = []string{d, txn.Description, Money(txn.Amount, currency), txn.Category}
	}
	return newTable("Date", "Description", "Amount", "Category").Rows(rows...).String()
}

// Pending renders a pending batch: its stage, the proposed mapping and the
// first limit rows.
func Pending(w io.Writer, p *session.Pending, limit int) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Batch:"), p.ID)
	fmt.Fprintf(&b, "%s %s (%d rows, uploaded %s)\n", labelStyle.Render("Source:"), p.Source, p.Rows(), p.CreatedAt.Local().Format(timestamp))

	stage := string(p.Stage)
	if p.Stage == session.StageNeedsMapping {
		stage = warnStyle.Render(stage)
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Stage:"), stage)
	if p.Layout != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Layout:"), p.Layout)
	}

	if p.Stage == session.StageNeedsMapping {
		b.WriteString("\n")
		b.WriteString(newTable("Column", "Proposed source").Rows(
			[]string{"date", p.Proposed.Date},
			[]string{"description", p.Proposed.Description},
			[]string{"amount", p.Proposed.Amount},
			[]string{"category", p.Proposed.Category},
		).String())
		b.WriteString("\n")
	}

	if p.Table != nil && len(p.Table.Rows) > 0 {
		rows := p.Table.Rows
		if limit > 0 && len(rows) > limit {
			rows = rows[:limit]
		}
		b.WriteString("\n")
		b.WriteString(newTable(p.Table.Headers...).Rows(rows...).String())
		b.WriteString("\n")
		if len(rows) < len(p.Table.Rows) {
			b.WriteString(labelStyle.Render(fmt.Sprintf("... %d more rows", len(p.Table.Rows)-len(rows))))
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// History renders import log entries, newest last.
func History(w io.Writer, entries []importlog.Entry) error {
	if len(entries) == 0 {
		_, err := io.WriteString(w, "No imports yet.\n")
		return err
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			e.Timestamp.Local().Format(timestamp),
			e.Action,
			e.Source,
			strconv.Itoa(e.Rows),
			strconv.Itoa(e.Added),
			e.Details,
			shortID(e.BatchID),
		}
	}
	_, err := io.WriteString(w, newTable("When", "Action", "Source", "Rows", "Added", "Details", "Batch").Rows(rows...).String()+"\n")
	return err
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func fmtDate(d time.Time) string {
	return d.Format(model.DateFormat)
}

func categoryLabel(name string) string {
	if name == "" {
		return "(uncategorized)"
	}
	return name
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

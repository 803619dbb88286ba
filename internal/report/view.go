package report

import (
	"errors"

	"github.com/finboard-dev/finboard/internal/model"
)

// ErrNoValidDates is returned by Build when no ledger row has a usable date,
// so no date range can be offered.
var ErrNoValidDates = errors.New("no valid dates in ledger")

// Query is what the presentation layer sends back: a date range (zero means
// the whole ledger) and a category selection (zero means all).
type Query struct {
	Range    DateRange
	Category CategorySelection
}

// View is everything one dashboard render needs.
type View struct {
	Bounds         DateRange           `json:"bounds"`
	Range          DateRange           `json:"range"`
	Summary        Summary             `json:"summary"`
	CategoryTotals []CategoryTotal     `json:"category_totals"`
	Trend          []TrendPoint        `json:"trend"`
	Categories     []string            `json:"categories"`
	Category       CategorySelection   `json:"category"`
	CategoryReset  bool                `json:"category_reset"`
	Detail         []model.Transaction `json:"detail"`
}

// Build recomputes every view over l for q. A query range is clamped to the
// ledger bounds; a stale category selection falls back to AllCategories and
// sets CategoryReset.
func Build(l model.Ledger, q Query) (*View, error) {
	bounds, ok := Bounds(l)
	if !ok {
		return nil, ErrNoValidDates
	}

	r := clamp(q.Range, bounds)
	filtered := FilterByDate(l, r)
	expenses, income := Split(filtered)

	categories := Categories(filtered)
	category := ResolveCategory(q.Category, categories)

	return &View{
		Bounds:         bounds,
		Range:          r,
		Summary:        Summarize(filtered),
		CategoryTotals: CategoryTotals(expenses),
		Trend:          MonthlyTrend(expenses, income),
		Categories:     categories,
		Category:       category,
		CategoryReset:  q.Category.Only && !category.Only,
		Detail:         Detail(filtered, category),
	}, nil
}

func clamp(r, bounds DateRange) DateRange {
	out := bounds
	if !r.From.IsZero() && r.From.After(bounds.From) {
		out.From = r.From
	}
	if !r.To.IsZero() && r.To.Before(bounds.To) {
		out.To = r.To
	}
	return out
}

// Package report derives dashboard views from a ledger. Every function is
// pure: inputs are never modified.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finboard-dev/finboard/internal/model"
)

// CategorySelection narrows a view to one category. The zero value selects
// every category, so any label (including "" and "all") can be selected.
type CategorySelection struct {
	Name string `json:"name"`
	Only bool   `json:"only"`
}

// AllCategories is the selection that applies no narrowing.
var AllCategories = CategorySelection{}

// Category selects the rows labelled name.
func Category(name string) CategorySelection {
	return CategorySelection{Name: name, Only: true}
}

// Matches reports whether a row labelled category passes the selection.
func (s CategorySelection) Matches(category string) bool {
	return !s.Only || s.Name == category
}

// Series types in the monthly trend.
const (
	TypeExpense = "expense"
	TypeIncome  = "income"
)

var hundred = decimal.NewFromInt(100)

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether d lies within the range, bounds included.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Summary holds the headline metrics.
type Summary struct {
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	Balance       decimal.Decimal `json:"balance"`
	SavingsRate   decimal.Decimal `json:"savings_rate"` // percent
	Transactions  int             `json:"transactions"`
}

// CategoryTotal is the summed expense amount of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// TrendPoint is one row of the long-form monthly series.
type TrendPoint struct {
	Month  string          `json:"month"` // "2006-01"
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
}

// Bounds returns the earliest and latest valid date in l. ok is false when
// no row carries a valid date.
func Bounds(l model.Ledger) (r DateRange, ok bool) {
	for _, txn := range l {
		if !txn.HasDate() {
			continue
		}
		if !ok || txn.Date.Before(r.From) {
			r.From = txn.Date
		}
		if !ok || txn.Date.After(r.To) {
			r.To = txn.Date
		}
		ok = true
	}
	return r, ok
}

// FilterByDate returns the rows dated within r. Rows without a valid date
// never match.
func FilterByDate(l model.Ledger, r DateRange) model.Ledger {
	out := make(model.Ledger, 0, len(l))
	for _, txn := range l {
		if txn.HasDate() && r.Contains(txn.Date) {
			out = append(out, txn)
		}
	}
	return out
}

// Split separates expenses (amount > 0) from income (amount < 0). Zero
// amounts are in neither.
func Split(l model.Ledger) (expenses, income model.Ledger) {
	for _, txn := range l {
		switch {
		case txn.IsExpense():
			expenses = append(expenses, txn)
		case txn.IsIncome():
			income = append(income, txn)
		}
	}
	return expenses, income
}

// Summarize computes totals over l. Income is reported positive. The savings
// rate is balance/income*100, and 0 whenever there is no income: a policy
// choice so an all-expense period reads as 0% rather than undefined.
func Summarize(l model.Ledger) Summary {
	expenses, income := Split(l)

	s := Summary{
		TotalExpenses: sum(expenses),
		TotalIncome:   sum(income).Neg(),
		Transactions:  len(l),
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	if s.TotalIncome.IsPositive() {
		s.SavingsRate = s.Balance.Div(s.TotalIncome).Mul(hundred)
	}
	return s
}

// CategoryTotals sums expenses per category, smallest first so a horizontal
// bar chart drawn top-down ends with the largest. Equal sums are ordered by name.
func CategoryTotals(expenses model.Ledger) []CategoryTotal {
	byCat := make(map[string]decimal.Decimal)
	for _, txn := range expenses {
		byCat[txn.Category] = byCat[txn.Category].Add(txn.Amount)
	}

	out := make([]CategoryTotal, 0, len(byCat))
	for cat, amount := range byCat {
		out = append(out, CategoryTotal{Category: cat, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c < 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// MonthlyTrend sums expenses and income per calendar month. Expense points
// come first, then income points (sign-flipped), each in month order.
func MonthlyTrend(expenses, income model.Ledger) []TrendPoint {
	var out []TrendPoint
	out = append(out, monthly(expenses, TypeExpense, false)...)
	out = append(out, monthly(income, TypeIncome, true)...)
	return out
}

func monthly(l model.Ledger, typ string, negate bool) []TrendPoint {
	byMonth := make(map[string]decimal.Decimal)
	for _, txn := range l {
		if !txn.HasDate() {
			continue
		}
		m := txn.Date.Format("2006-01")
		byMonth[m] = byMonth[m].Add(txn.Amount)
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]TrendPoint, len(months))
	for i, m := range months {
		amount := byMonth[m]
		if negate {
			amount = amount.Neg()
		}
		out[i] = TrendPoint{Month: m, Amount: amount, Type: typ}
	}
	return out
}

// Categories returns the distinct categories of l, sorted.
func Categories(l model.Ledger) []string {
	seen := make(map[string]bool)
	var out []string
	for _, txn := range l {
		if !seen[txn.Category] {
			seen[txn.Category] = true
			out = append(out, txn.Category)
		}
	}
	sort.Strings(out)
	return out
}

// ResolveCategory returns selected if its category is one of available, and
// AllCategories otherwise.
func ResolveCategory(selected CategorySelection, available []string) CategorySelection {
	if !selected.Only {
		return AllCategories
	}
	for _, c := range available {
		if c == selected.Name {
			return selected
		}
	}
	return AllCategories
}

// Detail narrows l to the selected category and orders it newest first.
// Rows of the same date keep ledger order.
func Detail(l model.Ledger, category CategorySelection) model.Ledger {
	out := make(model.Ledger, 0, len(l))
	for _, txn := range l {
		if category.Matches(txn.Category) {
			out = append(out, txn)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func sum(l model.Ledger) decimal.Decimal {
	total := decimal.Zero
	for _, txn := range l {
		total = total.Add(txn.Amount)
	}
	return total
}

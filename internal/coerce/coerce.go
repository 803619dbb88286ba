// Package coerce turns canonical upload columns into typed transactions.
//
// Dates degrade softly: a value that matches none of the configured layouts
// becomes the zero time and is counted in the Report. Amounts do not: a
// single unparseable amount fails the whole batch, since a dropped or zeroed
// amount would make every downstream sum silently wrong.
package coerce

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finboard-dev/finboard/internal/model"
)

// DefaultDateLayouts are tried in order. The first is the primary day.month.year format.
var DefaultDateLayouts = []string{
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2006-01-02",
}

// DateParser parses day-first dates.
type DateParser struct {
	Layouts []string
}

// NewDateParser returns a parser for layouts, or DefaultDateLayouts when empty.
func NewDateParser(layouts []string) DateParser {
	if len(layouts) == 0 {
		layouts = DefaultDateLayouts
	}
	return DateParser{Layouts: layouts}
}

// Parse returns the date at UTC midnight. ok is false (and the zero time
// returned) when no layout matches.
func (p DateParser) Parse(s string) (date time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range p.Layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return model.Date(t.Year(), t.Month(), t.Day()), true
		}
	}
	return time.Time{}, false
}

// AmountError reports an amount that could not be parsed.
type AmountError struct {
	Row   int // 1-based file line, header = 1
	Value string
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("row %d: parsing amount %q", e.Row, e.Value)
}

var amountCleaner = strings.NewReplacer("'", "", "’", "", ",", ".")

// ParseAmount parses a signed decimal. Plain decimals pass through; otherwise
// apostrophe thousands separators are removed and a decimal comma becomes a
// point ("1'234,50" -> 1234.50).
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, &AmountError{Value: s}
	}
	// Exponent notation never appears in bank exports and a huge exponent
	// would expand to millions of digits when formatted.
	if strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, &AmountError{Value: s}
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, nil
	}
	d, err := decimal.NewFromString(amountCleaner.Replace(s))
	if err != nil {
		return decimal.Decimal{}, &AmountError{Value: s}
	}
	return d, nil
}

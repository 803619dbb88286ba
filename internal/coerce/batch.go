package coerce

import (
	"fmt"
	"strings"

	"github.com/finboard-dev/finboard/internal/model"
	"github.com/finboard-dev/finboard/internal/schema"
)

// Report summarizes soft failures during coercion.
type Report struct {
	Rows             int
	InvalidDates     int
	InvalidDateLines []int // 1-based file lines, header = 1
}

// CoercionError lists every row whose amount could not be parsed.
type CoercionError struct {
	Amounts []*AmountError
}

func (e *CoercionError) Error() string {
	parts := make([]string, len(e.Amounts))
	for i, ae := range e.Amounts {
		parts[i] = ae.Error()
	}
	return fmt.Sprintf("%d unparseable amount(s): %s", len(e.Amounts), strings.Join(parts, "; "))
}

// Coerce converts a canonical table (as produced by schema.Mapping.Apply)
// into transactions. Any unparseable amount aborts with a *CoercionError;
// unparseable dates become zero dates and are counted in the Report.
func Coerce(t *schema.Table, cols schema.Columns, dates DateParser) ([]model.Transaction, Report, error) {
	idx := make([]int, 4)
	for i, name := range cols.Names() {
		idx[i] = t.Index(name)
		if idx[i] < 0 {
			return nil, Report{}, fmt.Errorf("batch is missing canonical column %q", name)
		}
	}
	iDate, iDesc, iAmount, iCat := idx[0], idx[1], idx[2], idx[3]

	rep := Report{Rows: len(t.Rows)}
	var cerr CoercionError
	txns := make([]model.Transaction, 0, len(t.Rows))

	for i, row := range t.Rows {
		line := i + 2

		amount, err := ParseAmount(row[iAmount])
		if err != nil {
			cerr.Amounts = append(cerr.Amounts, &AmountError{Row: line, Value: row[iAmount]})
			continue
		}

		date, ok := dates.Parse(row[iDate])
		if !ok {
			rep.InvalidDates++
			rep.InvalidDateLines = append(rep.InvalidDateLines, line)
		}

		txns = append(txns, model.Transaction{
			Date:        date,
			Description: row[iDesc],
			Amount:      amount,
			Category:    row[iCat],
		})
	}

	if len(cerr.Amounts) > 0 {
		return nil, rep, &cerr
	}
	return txns, rep, nil
}

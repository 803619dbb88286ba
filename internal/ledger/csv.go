package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finboard-dev/finboard/internal/model"
	"github.com/finboard-dev/finboard/internal/schema"
)

const (
	colDate   = 0
	colDesc   = 1
	colAmount = 2
	colCat    = 3
	numFields = 4
)

// ReadTransactions reads a ledger file. Columns are located by their
// canonical names. Dates must be DD.MM.YYYY; an empty or malformed date is
// kept as the zero date. A malformed amount is an error.
func ReadTransactions(r io.Reader, cols schema.Columns) (model.Ledger, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}
	if len(records) == 0 {
		return model.Ledger{}, nil
	}

	header := &schema.Table{Headers: records[0]}
	idx := make([]int, numFields)
	for i, name := range cols.Names() {
		idx[i] = header.Index(name)
		if idx[i] < 0 {
			return nil, fmt.Errorf("ledger header is missing column %q", name)
		}
	}

	txns := make(model.Ledger, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := make([]string, numFields)
		for c, pos := range idx {
			row[c] = rec[pos]
		}
		txn, err := UnmarshalTransaction(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// WriteTransactions writes a ledger file (including header).
func WriteTransactions(w io.Writer, cols schema.Columns, txns model.Ledger) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(cols.Names()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, txn := range txns {
		if err := cw.Write(MarshalTransaction(txn)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a ledger row in canonical order.
func MarshalTransaction(txn model.Transaction) []string {
	row := make([]string, numFields)
	row[colDate] = txn.FormatDate()
	row[colDesc] = txn.Description
	row[colAmount] = txn.Amount.String()
	row[colCat] = txn.Category
	return row
}

// UnmarshalTransaction converts a ledger row in canonical order to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	if strings.ContainsAny(record[colAmount], "eE") {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: exponent notation not allowed", record[colAmount])
	}
	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	var date time.Time
	if record[colDate] != "" {
		if d, err := time.Parse(model.DateFormat, record[colDate]); err == nil {
			date = d
		}
	}

	return model.Transaction{
		Date:        date,
		Description: record[colDesc],
		Amount:      amount,
		Category:    record[colCat],
	}, nil
}

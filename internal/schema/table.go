package schema

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is an uploaded file as parsed from delimited text: one header row
// followed by data rows, all as raw strings.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ParseError reports that an upload could not be read as tabular data.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("not a tabular file: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errNoHeader = errors.New("missing header row")

const utf8BOM = "\ufeff"

// ReadTable parses delimited text with a header row. Any failure is returned
// as a *ParseError and no partial table is produced.
func ReadTable(r io.Reader, delimiter rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = 0

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	if len(records) == 0 {
		return nil, &ParseError{Err: errNoHeader}
	}

	headers := records[0]
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	if len(headers) == 1 && strings.TrimSpace(headers[0]) == "" {
		return nil, &ParseError{Err: errNoHeader}
	}

	return &Table{Headers: headers, Rows: records[1:]}, nil
}

// WriteTable writes a table (header included) as comma-separated text.
func WriteTable(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range t.Rows {
		if len(row) == 1 && row[0] == "" {
			// csv.Writer emits a blank line here, which readers skip.
			cw.Flush()
			if err := cw.Error(); err != nil {
				return fmt.Errorf("writing row %d: %w", i+2, err)
			}
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return fmt.Errorf("writing row %d: %w", i+2, err)
			}
			continue
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Index returns the position of the named header, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// SniffDelimiter picks the most frequent of comma, semicolon and tab in the
// first line of sample. Comma wins ties and empty samples.
func SniffDelimiter(sample []byte) rune {
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}

	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, c := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

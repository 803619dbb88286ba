// Package importlog keeps an append-only audit trail of uploads and merges
// in <workspace>/logs/import-log.csv.
package importlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Actions recorded in the log.
const (
	ActionUpload = "upload"
	ActionMap    = "map"
	ActionSave   = "save"
	ActionCancel = "cancel"
)

// Entry is one row in the import log.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	BatchID   string    `json:"batch_id"`
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	Added     int       `json:"added"`
	Details   string    `json:"details"`
}

// Header is the CSV header for import-log.csv.
const Header = "timestamp,batch_id,action,source,rows,added,details"

const (
	numFields  = 7
	logDir     = "logs"
	logFile    = "logs/import-log.csv"
	colTime    = 0
	colBatch   = 1
	colAction  = 2
	colSource  = 3
	colRows    = 4
	colAdded   = 5
	colDetails = 6
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTime] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colBatch] = e.BatchID
	row[colAction] = e.Action
	row[colSource] = e.Source
	row[colRows] = strconv.Itoa(e.Rows)
	row[colAdded] = strconv.Itoa(e.Added)
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTime])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTime], err)
	}
	rows, err := strconv.Atoi(record[colRows])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing rows %q: %w", record[colRows], err)
	}
	added, err := strconv.Atoi(record[colAdded])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing added %q: %w", record[colAdded], err)
	}

	return Entry{
		Timestamp: ts,
		BatchID:   record[colBatch],
		Action:    record[colAction],
		Source:    record[colSource],
		Rows:      rows,
		Added:     added,
		Details:   record[colDetails],
	}, nil
}

// Path returns the log file location inside a workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, logFile)
}

// Append writes entries to the workspace log, creating the file and header if needed.
func Append(workspace string, entries ...Entry) error {
	if err := os.MkdirAll(filepath.Join(workspace, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(workspace)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from the workspace log.
// Returns an empty slice if the file does not exist.
func Read(workspace string) ([]Entry, error) {
	f, err := os.Open(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading import log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

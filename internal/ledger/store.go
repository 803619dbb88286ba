package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/finboard-dev/finboard/internal/model"
	"github.com/finboard-dev/finboard/internal/schema"
)

// ErrCorrupt marks a ledger file that exists but cannot be read.
var ErrCorrupt = errors.New("ledger file is corrupt")

// Store reads and writes the ledger file. It assumes a single writer; every
// Save rewrites the whole file.
type Store struct {
	path   string
	cols   schema.Columns
	logger *log.Logger
}

// NewStore creates a Store for the ledger file at path.
func NewStore(path string, cols schema.Columns, logger *log.Logger) *Store {
	return &Store{path: path, cols: cols, logger: logger}
}

// Path returns the ledger file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the full ledger. A missing file is the first-run state and
// yields an empty ledger. A file that cannot be parsed returns an error
// wrapping ErrCorrupt.
func (s *Store) Load() (model.Ledger, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", s.path, err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f, s.cols)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}
	return txns, nil
}

// LoadOrEmpty reads the ledger for display. When the file cannot be read it
// logs a warning and returns an empty ledger together with the cause, so the
// caller can show the warning while staying usable.
func (s *Store) LoadOrEmpty() (model.Ledger, error) {
	txns, err := s.Load()
	if err != nil {
		s.logger.Warn("ledger unreadable, showing empty ledger", "path", s.path, "err", err)
		return model.Ledger{}, err
	}
	return txns, nil
}

// Save validates the ledger and replaces the file with it. The data is
// written to a temporary file in the same directory and renamed over the
// ledger, so a failed write leaves the previous file intact.
func (s *Store) Save(txns model.Ledger) error {
	if verrs := Validate(txns); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, ve := range verrs {
			msgs[i] = ve.Error()
		}
		return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteTransactions(tmp, s.cols, txns); err != nil {
		tmp.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}

	s.logger.Debug("ledger saved", "path", s.path, "rows", len(txns))
	return nil
}

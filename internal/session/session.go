// Package session persists the single pending upload between CLI
// invocations. A batch stays pending until it is saved into the ledger or
// cancelled; at most one batch can be pending per workspace.
package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/finboard-dev/finboard/internal/schema"
)

// Stage is where a pending batch sits in the upload workflow.
type Stage string

const (
	// StageNeedsMapping means the upload lacks the canonical columns and
	// waits for the user to confirm a column mapping.
	StageNeedsMapping Stage = "needs-mapping"
	// StageReady means the batch carries the canonical columns and can be saved.
	StageReady Stage = "ready"
)

const (
	stateFile = "state.yaml"
	batchFile = "batch.csv"
)

// Pending is an uploaded batch that has not been merged into the ledger yet.
// Table holds the raw upload while mapping is needed and the canonical
// projection once the batch is ready.
type Pending struct {
	ID        string         `yaml:"id"`
	Source    string         `yaml:"source"`
	CreatedAt time.Time      `yaml:"created_at"`
	Stage     Stage          `yaml:"stage"`
	Headers   []string       `yaml:"headers"`
	Proposed  schema.Mapping `yaml:"proposed"`
	Layout    string         `yaml:"layout,omitempty"`
	InboxFile string         `yaml:"inbox_file,omitempty"`
	Table     *schema.Table  `yaml:"-"`
}

// New starts a pending batch for an upload read from source.
func New(source string, t *schema.Table, now time.Time) *Pending {
	return &Pending{
		ID:        uuid.NewString(),
		Source:    source,
		CreatedAt: now.UTC(),
		Headers:   append([]string(nil), t.Headers...),
		Table:     t,
	}
}

// Rows returns the number of data rows in the batch.
func (p *Pending) Rows() int {
	if p.Table == nil {
		return 0
	}
	return len(p.Table.Rows)
}

// Store keeps the pending batch in a directory: metadata in state.yaml and
// the table in batch.csv.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created on Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the session directory.
func (s *Store) Dir() string {
	return s.dir
}

// Load returns the pending batch, or nil when there is none.
func (s *Store) Load() (*Pending, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, stateFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	var p Pending
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}

	f, err := os.Open(filepath.Join(s.dir, batchFile))
	if err != nil {
		return nil, fmt.Errorf("opening pending batch: %w", err)
	}
	defer f.Close()

	t, err := schema.ReadTable(f, ',')
	if err != nil {
		return nil, fmt.Errorf("reading pending batch: %w", err)
	}
	p.Table = t
	return &p, nil
}

// Save persists p, replacing any previous state. The table is written
// before the metadata so a partially written session never loads.
func (s *Store) Save(p *Pending) error {
	if p.Table == nil {
		return errors.New("pending batch has no table")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	f, err := os.Create(filepath.Join(s.dir, batchFile))
	if err != nil {
		return fmt.Errorf("creating pending batch: %w", err)
	}
	if err := schema.WriteTable(f, p.Table); err != nil {
		f.Close()
		return fmt.Errorf("writing pending batch: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing pending batch: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, stateFile), data, 0o644); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	return nil
}

// Clear discards the pending batch. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	for _, name := range []string{stateFile, batchFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	return nil
}

// Package ingest drives an upload from raw file to ledger: parse, column
// mapping, coercion and merge. The pending batch lives in a session.Store
// between steps so each CLI invocation handles one step.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/finboard-dev/finboard/internal/coerce"
	"github.com/finboard-dev/finboard/internal/config"
	"github.com/finboard-dev/finboard/internal/gitops"
	"github.com/finboard-dev/finboard/internal/importer"
	"github.com/finboard-dev/finboard/internal/importlog"
	"github.com/finboard-dev/finboard/internal/ledger"
	"github.com/finboard-dev/finboard/internal/model"
	"github.com/finboard-dev/finboard/internal/schema"
	"github.com/finboard-dev/finboard/internal/session"
)

// SessionDir is the workspace-relative directory holding the pending batch.
const SessionDir = ".finboard/session"

var (
	// ErrPendingExists is returned by Upload while another batch is pending.
	ErrPendingExists = errors.New("a batch is already pending; save or cancel it first")
	// ErrNoPending is returned when an operation needs a pending batch.
	ErrNoPending = errors.New("no pending batch")
	// ErrNeedsMapping is returned by Save before the column mapping is confirmed.
	ErrNeedsMapping = errors.New("pending batch needs a column mapping")
	// ErrAlreadyMapped is returned by ConfirmMapping for a batch that is ready.
	ErrAlreadyMapped = errors.New("pending batch is already mapped")
	// ErrUnknownLayout is returned for a layout name missing from the config.
	ErrUnknownLayout = errors.New("unknown layout")
)

// LedgerStore persists the ledger. *ledger.Store is the implementation.
type LedgerStore interface {
	Path() string
	Load() (model.Ledger, error)
	LoadOrEmpty() (model.Ledger, error)
	Save(txns model.Ledger) error
}

// Service handles the upload workflow for one workspace.
type Service struct {
	root     string
	cfg      *config.Config
	sessions *session.Store
	ledger   LedgerStore
	dates    coerce.DateParser
	logger   *log.Logger
	now      func() time.Time
}

// NewService creates a Service for the workspace at root.
func NewService(root string, cfg *config.Config, logger *log.Logger) *Service {
	return &Service{
		root:     root,
		cfg:      cfg,
		sessions: session.NewStore(filepath.Join(root, SessionDir)),
		ledger:   ledger.NewStore(resolve(root, cfg.Ledger.Path), cfg.Columns, logger),
		dates:    coerce.NewDateParser(cfg.Import.DateFormats),
		logger:   logger,
		now:      time.Now,
	}
}

// Ledger returns the store for the workspace ledger file.
func (s *Service) Ledger() LedgerStore {
	return s.ledger
}

// InboxDir returns the absolute inbox directory.
func (s *Service) InboxDir() string {
	return resolve(s.root, s.cfg.Import.InboxDir)
}

// Pending returns the pending batch, or nil when there is none.
func (s *Service) Pending() (*session.Pending, error) {
	return s.sessions.Load()
}

// UploadOptions tune how an upload is read.
type UploadOptions struct {
	Delimiter rune   // 0 uses the config, then sniffs the first line
	Layout    string // named mapping from the config; "" tries every layout
	InboxFile string // inbox file name to move to processed/ once saved
}

// Upload parses r and stores it as the pending batch. A file that cannot be
// parsed leaves nothing behind. A file that already carries the canonical
// columns, or matches a saved layout, is ready to save; anything else waits
// for ConfirmMapping with a proposed mapping.
func (s *Service) Upload(r io.Reader, source string, opts UploadOptions) (*session.Pending, error) {
	existing, err := s.sessions.Load()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w (%s from %s)", ErrPendingExists, existing.Source, existing.CreatedAt.Format(time.DateTime))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", source, err)
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = s.cfg.Delimiter()
	}
	if delim == 0 {
		delim = schema.SniffDelimiter(data)
	}

	t, err := schema.ReadTable(bytes.NewReader(data), delim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	p := session.New(source, t, s.now())
	p.InboxFile = opts.InboxFile

	cols := s.cfg.Columns
	if canon, ok := schema.Normalize(t, cols); ok {
		p.Stage = session.StageReady
		p.Proposed = schema.Identity(cols)
		p.Table = canon
	} else if name, m, err := s.findLayout(opts.Layout, t.Headers); err != nil {
		return nil, err
	} else if name != "" {
		canon, err := m.Apply(t, cols)
		if err != nil {
			return nil, fmt.Errorf("applying layout %q: %w", name, err)
		}
		p.Stage = session.StageReady
		p.Proposed = m
		p.Layout = name
		p.Table = canon
	} else {
		p.Stage = session.StageNeedsMapping
		p.Proposed = schema.ProposeMapping(t.Headers, cols)
	}

	if err := s.sessions.Save(p); err != nil {
		return nil, err
	}

	s.logger.Info("batch uploaded", "source", source, "rows", p.Rows(), "stage", p.Stage, "layout", p.Layout)
	s.record(p, importlog.ActionUpload, 0, string(p.Stage))
	return p, nil
}

// findLayout picks the named layout, or the first saved layout (by name)
// whose source columns all appear in headers. An empty name means none fits.
func (s *Service) findLayout(name string, headers []string) (string, schema.Mapping, error) {
	if name != "" {
		m, ok := s.cfg.Layout(name)
		if !ok {
			return "", schema.Mapping{}, fmt.Errorf("%w %q", ErrUnknownLayout, name)
		}
		if !m.Matches(headers) {
			return "", schema.Mapping{}, fmt.Errorf("layout %q does not match the upload columns", name)
		}
		return name, m, nil
	}

	names := make([]string, 0, len(s.cfg.Layouts))
	for n := range s.cfg.Layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if m := s.cfg.Layouts[n]; m.Matches(headers) {
			return n, m, nil
		}
	}
	return "", schema.Mapping{}, nil
}

// ConfirmMapping applies the proposed mapping of p, with every non-empty
// field of overrides replacing the proposal, and marks the batch ready.
func (s *Service) ConfirmMapping(p *session.Pending, overrides schema.Mapping) (*session.Pending, error) {
	if p == nil {
		return nil, ErrNoPending
	}
	if p.Stage != session.StageNeedsMapping {
		return nil, ErrAlreadyMapped
	}

	m := p.Proposed.Override(overrides)
	canon, err := m.Apply(p.Table, s.cfg.Columns)
	if err != nil {
		return nil, fmt.Errorf("applying mapping: %w", err)
	}

	next := *p
	next.Proposed = m
	next.Table = canon
	next.Stage = session.StageReady
	if err := s.sessions.Save(&next); err != nil {
		return nil, err
	}

	s.logger.Info("mapping confirmed", "date", m.Date, "description", m.Description, "amount", m.Amount, "category", m.Category)
	s.record(&next, importlog.ActionMap, 0, fmt.Sprintf("%s,%s,%s,%s", m.Date, m.Description, m.Amount, m.Category))
	return &next, nil
}

// SaveResult reports what Save did.
type SaveResult struct {
	BatchID     string
	Source      string
	Coercion    coerce.Report
	Merge       ledger.MergeResult
	Total       int
	NearMatches []ledger.NearMatch
	Commit      string
}

// Save coerces the pending batch and merges it into the ledger. On any
// failure before the ledger is written the batch stays pending. The ledger
// is loaded strictly so an unreadable file is never overwritten.
func (s *Service) Save(p *session.Pending) (*SaveResult, error) {
	if p == nil {
		return nil, ErrNoPending
	}
	if p.Stage != session.StageReady {
		return nil, ErrNeedsMapping
	}

	txns, rep, err := coerce.Coerce(p.Table, s.cfg.Columns, s.dates)
	if err != nil {
		s.logger.Error("batch not saved", "source", p.Source, "err", err)
		return nil, err
	}
	if rep.InvalidDates > 0 {
		s.logger.Warn("rows with unparseable dates kept without a date",
			"count", rep.InvalidDates, "lines", rep.InvalidDateLines)
	}

	existing, err := s.ledger.Load()
	if err != nil {
		return nil, err
	}

	merged, mres := ledger.Merge(existing, txns)
	if err := s.ledger.Save(merged); err != nil {
		return nil, fmt.Errorf("saving ledger: %w", err)
	}

	res := &SaveResult{
		BatchID:  p.ID,
		Source:   p.Source,
		Coercion: rep,
		Merge:    mres,
		Total:    len(merged),
	}

	if err := s.sessions.Clear(); err != nil {
		s.logger.Warn("ledger saved but pending batch not cleared", "err", err)
	}

	res.NearMatches = ledger.NearDuplicates(existing, mres.New, s.cfg.Dedup.NearMatchDistance)
	for _, nm := range res.NearMatches {
		s.logger.Warn("possible duplicate", "date", nm.Added.FormatDate(), "amount", nm.Added.Amount,
			"new", nm.Added.Description, "existing", nm.Existing.Description)
	}

	if p.InboxFile != "" {
		if err := importer.MarkProcessed(s.InboxDir(), p.InboxFile); err != nil {
			s.logger.Warn("inbox file not moved", "file", p.InboxFile, "err", err)
		}
	}

	details := fmt.Sprintf("%d duplicate(s), %d invalid date(s)", mres.Duplicates, rep.InvalidDates)
	s.record(p, importlog.ActionSave, mres.Added, details)
	res.Commit = s.commit(p, mres.Added)

	s.logger.Info("batch saved", "source", p.Source, "added", mres.Added, "duplicates", mres.Duplicates, "total", res.Total)
	return res, nil
}

// Cancel discards the pending batch.
func (s *Service) Cancel(p *session.Pending) error {
	if p == nil {
		return ErrNoPending
	}
	if err := s.sessions.Clear(); err != nil {
		return err
	}
	s.logger.Info("batch cancelled", "source", p.Source)
	s.record(p, importlog.ActionCancel, 0, "")
	return nil
}

func (s *Service) record(p *session.Pending, action string, added int, details string) {
	err := importlog.Append(s.root, importlog.Entry{
		Timestamp: s.now(),
		BatchID:   p.ID,
		Action:    action,
		Source:    p.Source,
		Rows:      p.Rows(),
		Added:     added,
		Details:   details,
	})
	if err != nil {
		s.logger.Warn("import log not written", "err", err)
	}
}

func (s *Service) commit(p *session.Pending, added int) string {
	g := s.cfg.Git
	if !g.AutoCommit || !gitops.IsRepo(s.root) {
		return ""
	}

	ledgerPath, err := filepath.Rel(s.root, s.ledger.Path())
	if err != nil || strings.HasPrefix(ledgerPath, "..") {
		s.logger.Warn("ledger outside workspace, not committed", "path", s.ledger.Path())
		return ""
	}
	logPath, _ := filepath.Rel(s.root, importlog.Path(s.root))

	msg := fmt.Sprintf("ledger: add %d row(s) from %s", added, p.Source)
	hash, err := gitops.CommitPaths(s.root, msg, g.AuthorName, g.AuthorEmail, ledgerPath, logPath)
	if err != nil {
		s.logger.Warn("git commit failed", "err", err)
		return ""
	}
	return hash
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

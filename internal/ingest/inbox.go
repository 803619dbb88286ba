package ingest

import (
	"fmt"
	"os"

	"github.com/finboard-dev/finboard/internal/importer"
	"github.com/finboard-dev/finboard/internal/session"
)

// InboxResult is the outcome for one inbox file. Saved is nil when the file
// was left pending for a mapping.
type InboxResult struct {
	File    string
	Pending *session.Pending
	Saved   *SaveResult
}

// ImportInbox uploads and saves every CSV in the inbox, in name order.
// It stops at the first file that needs a column mapping; that file stays
// pending and is moved to processed/ once it is saved.
func (s *Service) ImportInbox() ([]InboxResult, error) {
	files, err := importer.Scan(s.InboxDir())
	if err != nil {
		return nil, err
	}

	var results []InboxResult
	for _, fi := range files {
		p, err := s.uploadFile(fi)
		if err != nil {
			return results, err
		}

		res := InboxResult{File: fi.Name, Pending: p}
		if p.Stage == session.StageNeedsMapping {
			s.logger.Warn("inbox import paused, mapping needed", "file", fi.Name)
			return append(results, res), nil
		}

		res.Saved, err = s.Save(p)
		if err != nil {
			return results, fmt.Errorf("%s: %w", fi.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) uploadFile(fi importer.FileInfo) (*session.Pending, error) {
	f, err := os.Open(fi.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", fi.Name, err)
	}
	defer f.Close()

	return s.Upload(f, fi.Name, UploadOptions{InboxFile: fi.Name})
}

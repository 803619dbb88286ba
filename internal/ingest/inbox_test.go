package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard-dev/finboard/internal/importer"
	"github.com/finboard-dev/finboard/internal/schema"
	"github.com/finboard-dev/finboard/internal/session"
)

func dropInInbox(t *testing.T, svc *Service, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(svc.InboxDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(svc.InboxDir(), name), fixture(t, name), 0o644))
}

func TestImportInbox_SavesReadyFiles(t *testing.T) {
	svc, _ := newTestService(t, nil)
	dropInInbox(t, svc, "canonical_upload.csv")

	results, err := svc.ImportInbox()
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].Saved)
	assert.Equal(t, 2, results[0].Saved.Merge.Added)

	left, err := importer.Scan(svc.InboxDir())
	require.NoError(t, err)
	assert.Empty(t, left)
	_, err = os.Stat(filepath.Join(svc.InboxDir(), importer.ProcessedDir, "canonical_upload.csv"))
	assert.NoError(t, err)
}

func TestImportInbox_PausesForMapping(t *testing.T) {
	svc, _ := newTestService(t, nil)
	dropInInbox(t, svc, "bank_export.csv")
	dropInInbox(t, svc, "canonical_upload.csv")

	results, err := svc.ImportInbox()
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bank_export.csv", results[0].File)
	assert.Nil(t, results[0].Saved)
	assert.Equal(t, session.StageNeedsMapping, results[0].Pending.Stage)

	p, err := svc.ConfirmMapping(results[0].Pending, schema.Mapping{})
	require.NoError(t, err)
	_, err = svc.Save(p)
	require.NoError(t, err)

	left, err := importer.Scan(svc.InboxDir())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "canonical_upload.csv", left[0].Name)
}

func TestImportInbox_Empty(t *testing.T) {
	svc, _ := newTestService(t, nil)
	results, err := svc.ImportInbox()
	require.NoError(t, err)
	assert.Empty(t, results)
}

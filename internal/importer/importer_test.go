package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("a,b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "A.CSV"), []byte("a\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ProcessedDir), 0o755))

	files, err := Scan(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "A.CSV", files[0].Name)
	assert.Equal(t, "b.csv", files[1].Name)
	assert.Equal(t, int64(4), files[1].Size)
	assert.Equal(t, filepath.Join(dir, "b.csv"), files[1].Path)
}

func TestScan_MissingDir(t *testing.T) {
	files, err := Scan(filepath.Join(t.TempDir(), "inbox"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMarkProcessed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bank.csv"), []byte("a\n"), 0o644))

	require.NoError(t, MarkProcessed(dir, "bank.csv"))

	_, err := os.Stat(filepath.Join(dir, "bank.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, ProcessedDir, "bank.csv"))
	assert.NoError(t, err)

	files, err := Scan(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMarkProcessed_Missing(t *testing.T) {
	err := MarkProcessed(t.TempDir(), "nope.csv")
	assert.Error(t, err)
}

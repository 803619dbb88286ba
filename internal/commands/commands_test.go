package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard-dev/finboard/internal/commands"
	"github.com/finboard-dev/finboard/internal/config"
	"github.com/finboard-dev/finboard/internal/report"
)

const (
	bankExport = "../../testdata/bank_export.csv"
	canonical  = "../../testdata/canonical_upload.csv"
)

func runFinboard(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, _, err := runFinboard(t, "init", dir)
	require.NoError(t, err)
	return dir
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, _, err := runFinboard(t, "init", dir, "--currency", "EUR")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized finboard workspace")

	for _, d := range []string{"inbox", "logs"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir())
	}

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "EUR", cfg.Report.Currency)
	assert.False(t, cfg.Git.AutoCommit)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ".finboard/")
}

func TestInit_RefusesExistingWorkspace(t *testing.T) {
	dir := newWorkspace(t)
	_, _, err := runFinboard(t, "init", dir)
	assert.Error(t, err)
}

func TestInit_Git(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	_, _, err := runFinboard(t, "init", dir, "--git")
	require.NoError(t, err)

	log := exec.Command("git", "log", "--format=%s|%an <%ae>", "-1")
	log.Dir = dir
	out, err := log.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "init: finboard workspace|finboard <finboard@localhost>")

	_, _, err = runFinboard(t, "-w", dir, "upload", canonical)
	require.NoError(t, err)
	out2, _, err := runFinboard(t, "-w", dir, "save")
	require.NoError(t, err)
	assert.Contains(t, out2, "committed")
}

func TestWorkflow_MapSaveReport(t *testing.T) {
	dir := newWorkspace(t)

	out, _, err := runFinboard(t, "-w", dir, "upload", bankExport)
	require.NoError(t, err)
	assert.Contains(t, out, "needs-mapping")
	assert.Contains(t, out, "Booking date")

	_, _, err = runFinboard(t, "-w", dir, "save")
	require.Error(t, err, "save before mapping")

	out, _, err = runFinboard(t, "-w", dir, "map", "--save-layout", "ZKB")
	require.NoError(t, err)
	assert.Contains(t, out, "Ready")

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	layout, ok := cfg.Layout("zkb")
	require.True(t, ok)
	assert.Equal(t, "Booking date", layout.Date)

	out, _, err = runFinboard(t, "-w", dir, "save")
	require.NoError(t, err)
	assert.Contains(t, out, "added 5 new transaction(s), skipped 0 duplicate(s); ledger has 5.")
	assert.Contains(t, out, "1 row(s) kept without a date (lines 6)")

	out, _, err = runFinboard(t, "-w", dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "5 transactions")
	assert.Contains(t, out, "No pending batch.")

	out, _, err = runFinboard(t, "-w", dir, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "CHF 276.85")
	assert.Contains(t, out, "CHF 3,000.00")
	assert.Contains(t, out, "SBB Halbtax")

	out, _, err = runFinboard(t, "-w", dir, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "upload")
	assert.Contains(t, out, "map")
	assert.Contains(t, out, "save")
}

func TestWorkflow_SavedLayoutAndIdempotentSave(t *testing.T) {
	dir := newWorkspace(t)

	_, _, err := runFinboard(t, "-w", dir, "upload", bankExport)
	require.NoError(t, err)
	_, _, err = runFinboard(t, "-w", dir, "map", "--save-layout", "zkb")
	require.NoError(t, err)
	_, _, err = runFinboard(t, "-w", dir, "save")
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(dir, "master.csv"))
	require.NoError(t, err)

	out, _, err := runFinboard(t, "-w", dir, "upload", bankExport)
	require.NoError(t, err)
	assert.Contains(t, out, "Ready", "saved layout applied automatically")

	out, _, err = runFinboard(t, "-w", dir, "save")
	require.NoError(t, err)
	assert.Contains(t, out, "added 0 new transaction(s), skipped 5 duplicate(s)")

	after, err := os.ReadFile(filepath.Join(dir, "master.csv"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestUpload_RefusedWhilePending(t *testing.T) {
	dir := newWorkspace(t)
	_, _, err := runFinboard(t, "-w", dir, "upload", canonical)
	require.NoError(t, err)

	_, _, err = runFinboard(t, "-w", dir, "upload", bankExport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already pending")

	out, _, err := runFinboard(t, "-w", dir, "cancel")
	require.NoError(t, err)
	assert.Contains(t, out, "Discarded")

	_, _, err = runFinboard(t, "-w", dir, "cancel")
	assert.Error(t, err, "nothing left to cancel")
}

func TestUpload_Stdin(t *testing.T) {
	dir := newWorkspace(t)
	data, err := os.ReadFile(canonical)
	require.NoError(t, err)

	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(bytes.NewReader(data))
	cmd.SetArgs([]string{"-w", dir, "upload", "-"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "stdin")
	assert.Contains(t, out.String(), "Ready")
}

func TestReport_JSONAndFilters(t *testing.T) {
	dir := newWorkspace(t)
	_, _, err := runFinboard(t, "-w", dir, "upload", canonical)
	require.NoError(t, err)
	_, _, err = runFinboard(t, "-w", dir, "save")
	require.NoError(t, err)

	out, _, err := runFinboard(t, "-w", dir, "report", "--json")
	require.NoError(t, err)

	var v report.View
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "4.5", v.Summary.TotalExpenses.String())
	assert.Equal(t, "3000", v.Summary.TotalIncome.String())
	assert.Equal(t, "2995.5", v.Summary.Balance.String())
	require.Len(t, v.CategoryTotals, 1)
	assert.Equal(t, "Food", v.CategoryTotals[0].Category)

	out, stderr, err := runFinboard(t, "-w", dir, "report", "--json", "--from", "06.01.2024", "--category", "Food")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, report.AllCategories, v.Category)
	assert.True(t, v.CategoryReset)
	assert.Len(t, v.Detail, 1)
	assert.Contains(t, stderr, "category has no rows in range")

	out, _, err = runFinboard(t, "-w", dir, "report", "--json", "--category", "Food")
	require.NoError(t, err)
	var food report.View
	require.NoError(t, json.Unmarshal([]byte(out), &food))
	assert.Equal(t, report.Category("Food"), food.Category)
	assert.Len(t, food.Detail, 1)

	out, _, err = runFinboard(t, "-w", dir, "report", "--json", "--category", "all")
	require.NoError(t, err)
	var all report.View
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Equal(t, report.AllCategories, all.Category)
	assert.Len(t, all.Detail, 2)

	_, _, err = runFinboard(t, "-w", dir, "report", "--from", "yesterday")
	assert.Error(t, err)
}

func TestReport_EmptyAndCorruptLedger(t *testing.T) {
	dir := newWorkspace(t)

	out, _, err := runFinboard(t, "-w", dir, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "No dated transactions")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "master.csv"), []byte("date,description,amount,category\n05.01.2024,x,??,y\n"), 0o644))
	out, stderr, err := runFinboard(t, "-w", dir, "report")
	require.NoError(t, err)
	assert.Contains(t, out, "No dated transactions")
	assert.Contains(t, stderr, "ledger unreadable")
}

func TestValidate(t *testing.T) {
	dir := newWorkspace(t)
	master := filepath.Join(dir, "master.csv")

	require.NoError(t, os.WriteFile(master, []byte("date,description,amount,category\n05.01.2024,Coffee,4.5,Food\n"), 0o644))
	out, _, err := runFinboard(t, "-w", dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Ledger OK: 1 transactions")

	dup := "date,description,amount,category\n05.01.2024,Coffee,4.5,Food\n05.01.2024,Coffee,4.50,Treats\n"
	require.NoError(t, os.WriteFile(master, []byte(dup), 0o644))
	out, _, err = runFinboard(t, "-w", dir, "validate")
	require.Error(t, err)
	assert.Contains(t, out, "duplicate of row 2")

	out, _, err = runFinboard(t, "-w", dir, "validate", "--fix")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 duplicate row(s); ledger has 1.")

	data, err := os.ReadFile(master)
	require.NoError(t, err)
	assert.Equal(t, "date,description,amount,category\n05.01.2024,Coffee,4.5,Food\n", string(data))
}

func TestImport_Inbox(t *testing.T) {
	dir := newWorkspace(t)
	data, err := os.ReadFile(canonical)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "inbox", "jan.csv"), data, 0o644))

	out, _, err := runFinboard(t, "-w", dir, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "jan.csv: added 2 new transaction(s)")

	out, _, err = runFinboard(t, "-w", dir, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "is empty")
}

func TestLogLevelFlag(t *testing.T) {
	dir := newWorkspace(t)
	_, _, err := runFinboard(t, "-w", dir, "--log-level", "shout", "status")
	assert.Error(t, err)

	_, stderr, err := runFinboard(t, "-w", dir, "--log-level", "debug", "upload", canonical)
	require.NoError(t, err)
	assert.Contains(t, stderr, "batch uploaded")
}

func TestMap_SaveLayoutIgnoresEnvOverrides(t *testing.T) {
	dir := newWorkspace(t)
	_, _, err := runFinboard(t, "-w", dir, "upload", bankExport)
	require.NoError(t, err)

	t.Setenv("FINBOARD_REPORT_CURRENCY", "EUR")
	_, _, err = runFinboard(t, "-w", dir, "map", "--save-layout", "zkb")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "currency: CHF")
	assert.NotContains(t, string(data), "EUR")
	assert.Contains(t, string(data), "zkb:")
}

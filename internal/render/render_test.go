package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard-dev/finboard/internal/importlog"
	"github.com/finboard-dev/finboard/internal/model"
	"github.com/finboard-dev/finboard/internal/report"
	"github.com/finboard-dev/finboard/internal/schema"
	"github.com/finboard-dev/finboard/internal/session"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		in       string
		currency string
		want     string
	}{
		{"2995.5", "CHF", "CHF 2,995.50"},
		{"-3000", "CHF", "CHF -3,000.00"},
		{"0", "EUR", "EUR 0.00"},
		{"1234567.891", "", "1,234,567.89"},
		{"-0.001", "", "0.00"},
		{"4.5", "", "4.50"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Money(decimal.RequireFromString(tt.in), tt.currency))
		})
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "75.0 %", Percent(decimal.NewFromInt(75)))
	assert.Equal(t, "0.0 %", Percent(decimal.Zero))
}

func sampleView(t *testing.T, q report.Query) *report.View {
	t.Helper()
	l := model.Ledger{
		{Date: model.Date(2024, 1, 5), Description: "Coffee", Amount: decimal.RequireFromString("4.50"), Category: "Food"},
		{Date: model.Date(2024, 1, 6), Description: "Salary", Amount: decimal.RequireFromString("-3000"), Category: "Income"},
		{Date: model.Date(2024, 2, 3), Description: "SBB Halbtax", Amount: decimal.RequireFromString("185"), Category: "Transport"},
	}
	v, err := report.Build(l, q)
	require.NoError(t, err)
	return v
}

func TestDashboard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dashboard(&buf, sampleView(t, report.Query{}), "CHF"))
	out := buf.String()

	assert.Contains(t, out, "05.01.2024 to 03.02.2024")
	assert.Contains(t, out, "CHF 189.50")
	assert.Contains(t, out, "CHF 3,000.00")
	assert.Contains(t, out, "CHF 2,810.50")
	assert.Contains(t, out, "Savings rate")
	assert.Contains(t, out, "Transport")
	assert.Contains(t, out, "2024-02")
	assert.Contains(t, out, "SBB Halbtax")
	assert.NotContains(t, out, "showing all categories")
}

func TestDashboard_CategoryReset(t *testing.T) {
	v := sampleView(t, report.Query{
		Range:    report.DateRange{From: model.Date(2024, 1, 1), To: model.Date(2024, 1, 31)},
		Category: report.Category("Transport"),
	})

	var buf bytes.Buffer
	require.NoError(t, Dashboard(&buf, v, "CHF"))
	assert.Contains(t, buf.String(), "showing all categories")
	assert.NotContains(t, buf.String(), "SBB Halbtax")
}

func TestCategoryBars(t *testing.T) {
	out := CategoryBars([]report.CategoryTotal{
		{Category: "Food", Amount: decimal.NewFromInt(10)},
		{Category: "Transport", Amount: decimal.NewFromInt(30)},
	}, "")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Less(t, strings.Count(lines[0], "█"), strings.Count(lines[1], "█"))
	assert.Equal(t, barWidth, strings.Count(lines[1], "█"))

	assert.Contains(t, CategoryBars(nil, ""), "no expenses")
}

func TestTransactions_UndatedRow(t *testing.T) {
	out := Transactions([]model.Transaction{{Description: "Refund", Amount: decimal.NewFromInt(-20), Category: "Misc"}}, "")
	assert.Contains(t, out, "Refund")
	assert.Contains(t, out, "-20.00")
}

func TestPending(t *testing.T) {
	p := session.New("bank.csv", &schema.Table{
		Headers: []string{"Booking date", "Text", "Amount (CHF)"},
		Rows: [][]string{
			{"05.01.2024", "Coffee", "4,50"},
			{"06.01.2024", "Salary", "-3'000,00"},
			{"07.01.2024", "Bakery", "6,20"},
		},
	}, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	p.Stage = session.StageNeedsMapping
	p.Proposed = schema.Mapping{Date: "Booking date", Description: "Text", Amount: "Amount (CHF)", Category: "Booking date"}

	var buf bytes.Buffer
	require.NoError(t, Pending(&buf, p, 2))
	out := buf.String()

	assert.Contains(t, out, "bank.csv")
	assert.Contains(t, out, "needs-mapping")
	assert.Contains(t, out, "Proposed source")
	assert.Contains(t, out, "Salary")
	assert.NotContains(t, out, "Bakery")
	assert.Contains(t, out, "1 more rows")
}

func TestHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, History(&buf, nil))
	assert.Contains(t, buf.String(), "No imports yet")

	buf.Reset()
	require.NoError(t, History(&buf, []importlog.Entry{{
		Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		BatchID:   "0b5d7f1e-6c0a-4a39-9a55-2b0f9e1c3d4e",
		Action:    importlog.ActionSave,
		Source:    "bank.csv",
		Rows:      5,
		Added:     4,
	}}))
	out := buf.String()
	assert.Contains(t, out, "save")
	assert.Contains(t, out, "0b5d7f1e")
	assert.NotContains(t, out, "6c0a")
}

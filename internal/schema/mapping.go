package schema

import (
	"fmt"
	"strings"
)

// Columns names the four canonical ledger columns.
type Columns struct {
	Date        string `yaml:"date" mapstructure:"date"`
	Description string `yaml:"description" mapstructure:"description"`
	Amount      string `yaml:"amount" mapstructure:"amount"`
	Category    string `yaml:"category" mapstructure:"category"`
}

// DefaultColumns returns the default canonical column names.
func DefaultColumns() Columns {
	return Columns{
		Date:        "date",
		Description: "description",
		Amount:      "amount",
		Category:    "category",
	}
}

// Names returns the canonical names in ledger order.
func (c Columns) Names() []string {
	return []string{c.Date, c.Description, c.Amount, c.Category}
}

// HasCanonical reports whether every canonical column name appears verbatim
// among the table headers.
func HasCanonical(t *Table, cols Columns) bool {
	for _, name := range cols.Names() {
		if t.Index(name) < 0 {
			return false
		}
	}
	return true
}

// Mapping selects, for each canonical column, the source header it is read
// from. An empty field means "not chosen".
type Mapping struct {
	Date        string `yaml:"date" mapstructure:"date"`
	Description string `yaml:"description" mapstructure:"description"`
	Amount      string `yaml:"amount" mapstructure:"amount"`
	Category    string `yaml:"category" mapstructure:"category"`
}

// Identity maps every canonical column onto itself.
func Identity(cols Columns) Mapping {
	return Mapping(cols)
}

// ProposeMapping guesses a source header for each canonical column: the first
// header that contains the canonical name, ignoring case. When nothing
// matches, the first header is proposed.
func ProposeMapping(headers []string, cols Columns) Mapping {
	pick := func(name string) string {
		want := strings.ToLower(name)
		for _, h := range headers {
			if strings.Contains(strings.ToLower(h), want) {
				return h
			}
		}
		if len(headers) > 0 {
			return headers[0]
		}
		return ""
	}
	return Mapping{
		Date:        pick(cols.Date),
		Description: pick(cols.Description),
		Amount:      pick(cols.Amount),
		Category:    pick(cols.Category),
	}
}

// Override returns m with every non-empty field of other applied on top.
func (m Mapping) Override(other Mapping) Mapping {
	if other.Date != "" {
		m.Date = other.Date
	}
	if other.Description != "" {
		m.Description = other.Description
	}
	if other.Amount != "" {
		m.Amount = other.Amount
	}
	if other.Category != "" {
		m.Category = other.Category
	}
	return m
}

// Sources returns the chosen source headers in ledger order.
func (m Mapping) Sources() []string {
	return []string{m.Date, m.Description, m.Amount, m.Category}
}

// Matches reports whether every source header of m is present in headers.
func (m Mapping) Matches(headers []string) bool {
	t := &Table{Headers: headers}
	for _, src := range m.Sources() {
		if src == "" || t.Index(src) < 0 {
			return false
		}
	}
	return true
}

// Apply renames the chosen source columns to the canonical names and drops
// every other column. The result has exactly the four canonical columns, in
// ledger order.
func (m Mapping) Apply(t *Table, cols Columns) (*Table, error) {
	sources := m.Sources()
	names := cols.Names()

	idx := make([]int, len(sources))
	for i, src := range sources {
		if src == "" {
			return nil, fmt.Errorf("no source column chosen for %q", names[i])
		}
		idx[i] = t.Index(src)
		if idx[i] < 0 {
			return nil, fmt.Errorf("source column %q for %q not in upload", src, names[i])
		}
	}

	out := &Table{
		Headers: append([]string(nil), names...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for r, row := range t.Rows {
		mapped := make([]string, len(idx))
		for i, c := range idx {
			mapped[i] = row[c]
		}
		out.Rows[r] = mapped
	}
	return out, nil
}

// Normalize projects t onto the canonical columns when it already carries
// them. ok is false when a mapping is needed.
func Normalize(t *Table, cols Columns) (normalized *Table, ok bool) {
	if !HasCanonical(t, cols) {
		return nil, false
	}
	out, err := Identity(cols).Apply(t, cols)
	if err != nil {
		return nil, false
	}
	return out, true
}

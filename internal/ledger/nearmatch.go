package ledger

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/finboard-dev/finboard/internal/model"
)

// NearMatch pairs a newly added row with an existing row that looks like the
// same transaction but did not collapse under the exact identity key.
type NearMatch struct {
	Added    model.Transaction
	Existing model.Transaction
	Distance int
}

// NearDuplicates finds added rows sharing date and amount with an existing
// row whose description differs by at most maxDistance edits (case-folded).
// Rows without a date are skipped. maxDistance <= 0 disables the check.
func NearDuplicates(existing, added model.Ledger, maxDistance int) []NearMatch {
	if maxDistance <= 0 || len(existing) == 0 || len(added) == 0 {
		return nil
	}

	byDayAmount := make(map[string][]model.Transaction)
	for _, txn := range existing {
		if !txn.HasDate() {
			continue
		}
		k := txn.FormatDate() + "|" + txn.Amount.String()
		byDayAmount[k] = append(byDayAmount[k], txn)
	}

	var matches []NearMatch
	for _, a := range added {
		if !a.HasDate() {
			continue
		}
		for _, e := range byDayAmount[a.FormatDate()+"|"+a.Amount.String()] {
			if e.Description == a.Description {
				continue
			}
			d := levenshtein.ComputeDistance(strings.ToLower(a.Description), strings.ToLower(e.Description))
			if d <= maxDistance {
				matches = append(matches, NearMatch{Added: a, Existing: e, Distance: d})
				break
			}
		}
	}
	return matches
}

package ledger

import (
	"github.com/finboard-dev/finboard/internal/model"
)

// MergeResult describes the outcome of Merge.
type MergeResult struct {
	Existing   int          // rows in the ledger before the merge
	Incoming   int          // rows in the batch
	Added      int          // len(merged) - len(existing)
	Duplicates int          // batch rows dropped as already known
	New        model.Ledger // batch rows that made it into the ledger
}

// Merge appends batch to existing and drops every row whose identity key was
// already seen. Existing rows come first, so on a conflict the ledger's copy
// (and its category) wins over the batch. Neither input is modified.
func Merge(existing, batch model.Ledger) (model.Ledger, MergeResult) {
	seen := make(map[string]bool, len(existing)+len(batch))
	merged := make(model.Ledger, 0, len(existing)+len(batch))

	for _, txn := range existing {
		k := txn.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, txn)
	}

	res := MergeResult{Existing: len(existing), Incoming: len(batch)}
	for _, txn := range batch {
		k := txn.Key()
		if seen[k] {
			res.Duplicates++
			continue
		}
		seen[k] = true
		merged = append(merged, txn)
		res.New = append(res.New, txn)
	}

	res.Added = len(merged) - len(existing)
	return merged, res
}

// Dedup returns txns without rows whose identity key appeared earlier.
func Dedup(txns model.Ledger) model.Ledger {
	merged, _ := Merge(txns, nil)
	return merged
}

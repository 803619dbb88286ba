package ledger

import (
	"fmt"

	"github.com/finboard-dev/finboard/internal/model"
)

// ValidationError describes a ledger row that fails validation.
type ValidationError struct {
	Row         int // 1-based file line, header = 1
	Key         string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("row %d [%s]: %s", e.Row, e.Key, e.Description)
}

// Validate checks that no two rows share an identity key.
func Validate(txns model.Ledger) []ValidationError {
	var errs []ValidationError

	firstSeen := make(map[string]int, len(txns))
	for i, txn := range txns {
		row := i + 2
		k := txn.Key()
		if first, ok := firstSeen[k]; ok {
			errs = append(errs, ValidationError{
				Row:         row,
				Key:         k,
				Description: fmt.Sprintf("duplicate of row %d", first),
			})
			continue
		}
		firstSeen[k] = row
	}
	return errs
}

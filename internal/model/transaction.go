package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the day.month.year layout used in the ledger file.
const DateFormat = "02.01.2006"

// Transaction is one row of the ledger.
type Transaction struct {
	Date        time.Time       `json:"date"`        // zero value = unparseable date
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`      // positive = expense, negative = income
	Category    string          `json:"category"`
}

// HasDate reports whether the transaction carries a valid calendar date.
func (t Transaction) HasDate() bool {
	return !t.Date.IsZero()
}

// IsExpense reports whether the amount is positive.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsPositive()
}

// IsIncome reports whether the amount is negative.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsNegative()
}

// FormatDate returns the date as DD.MM.YYYY, or "" for a missing date.
func (t Transaction) FormatDate() string {
	if !t.HasDate() {
		return ""
	}
	return t.Date.Format(DateFormat)
}

// Key returns the identity key used for deduplication:
// date, description and normalized amount. Category is not part of it.
// "05.01.2024|Coffee|4.5"
func (t Transaction) Key() string {
	return t.FormatDate() + "|" + t.Description + "|" + t.Amount.String()
}

// Ledger is the ordered set of transactions persisted in the ledger file.
type Ledger []Transaction

// Date builds a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

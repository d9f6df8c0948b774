package utils

import (
	"fmt"
	"time"
)

// LedgerDateFormat is the record date layout used throughout the ledger
// collections (e.g. "2025/03/17").
const LedgerDateFormat = "2006/01/02"

// ParseLedgerDate parses a record date string.
func ParseLedgerDate(dateStr string) (time.Time, error) {
	t, err := time.Parse(LedgerDateFormat, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY/MM/DD: %w", dateStr, err)
	}
	return t, nil
}

// FormatLedgerDate renders a time in the record date layout.
func FormatLedgerDate(t time.Time) string {
	return t.Format(LedgerDateFormat)
}

// InMonth reports whether the record date string falls inside the given
// calendar month. Unparseable dates report false.
func InMonth(dateStr string, year int, month time.Month) bool {
	t, err := ParseLedgerDate(dateStr)
	if err != nil {
		return false
	}
	return t.Year() == year && t.Month() == month
}

// Package common contains helpers shared across the project:
// credit formatting, calendar-day arithmetic and time zone loading.
package common

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

// PluralizeCredits returns "credit" or "credits" for n.
//
// Examples:
//
//	PluralizeCredits(1)  → "credit"
//	PluralizeCredits(-1) → "credit"
//	PluralizeCredits(0)  → "credits"
//	PluralizeCredits(5)  → "credits"
func PluralizeCredits(n int64) string {
	if n == 1 || n == -1 {
		return "credit"
	}
	return "credits"
}

// FormatCredits formats a balance for display.
// Example: FormatCredits(2350) → "2,350 credits"
func FormatCredits(n int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(n), PluralizeCredits(n))
}

// LoadLocation loads the named zone and falls back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("zone", name).Warn("Unknown time zone, falling back to UTC")
		return time.UTC
	}
	return loc
}

// DateOf truncates t to midnight in t's location.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from a to b.
// Both values are first truncated to their dates.
func DaysBetween(a, b time.Time) int {
	da := DateOf(a)
	db := DateOf(b.In(a.Location()))
	return int(math.Round(db.Sub(da).Hours() / 24))
}

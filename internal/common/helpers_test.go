package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "2,350", FormatNumber(2350))
	assert.Equal(t, "1,000,005", FormatNumber(1000005))
	assert.Equal(t, "-12,000", FormatNumber(-12000))
}

func TestFormatCredits(t *testing.T) {
	assert.Equal(t, "1 credit", FormatCredits(1))
	assert.Equal(t, "0 credits", FormatCredits(0))
	assert.Equal(t, "2,350 credits", FormatCredits(2350))
	assert.Equal(t, "+1 credit", FormatCreditsAmount(1))
	assert.Equal(t, "-5 credits", FormatCreditsAmount(-5))
	assert.Equal(t, "+100 credits", FormatCreditsAmount(100))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 28, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, 0, DaysBetween(a, a.Add(-time.Hour)))
	assert.Equal(t, 1, DaysBetween(a, a.Add(2*time.Minute)))
	assert.Equal(t, 5, DaysBetween(a, a.AddDate(0, 0, 5)))
	assert.Equal(t, -1, DaysBetween(a, a.AddDate(0, 0, -1)))
}

func TestLoadLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Mars/Olympus_Mons"))
}

// Package common: pluralize.go holds the signed amount and number
// formatting used in transaction descriptions and admin alerts.
package common

import "fmt"

// FormatCreditsAmount renders a signed ledger amount.
//
// Examples:
//
//	FormatCreditsAmount(100) → "+100 credits"
//	FormatCreditsAmount(-5)  → "-5 credits"
//	FormatCreditsAmount(1)   → "+1 credit"
func FormatCreditsAmount(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%s %s", FormatNumber(amount), PluralizeCredits(amount))
	}
	return fmt.Sprintf("%s %s", FormatNumber(amount), PluralizeCredits(amount))
}

// FormatNumber adds thousands separators.
// Example: FormatNumber(2350) → "2,350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s,%03d", FormatNumber(n/1000), n%1000)
}

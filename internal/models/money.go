package models

import "fmt"

// FormatCents renders an integer cent amount as a decimal string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// PercentToBps converts a human percentage (10.0) to basis points (1000).
func PercentToBps(percent float64) int64 {
	if percent < 0 {
		return 0
	}
	return int64(percent*100 + 0.5)
}

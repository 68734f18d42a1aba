package usecase

import (
	"regexp"
	"strconv"
	"strings"
)

// Package-level compiled regex patterns for performance
var (
	nonTitleCharsRegex  = regexp.MustCompile(`[^a-z0-9 ]`)
	nonPriceCharsRegex  = regexp.MustCompile(`[^0-9.]`)
	leadingDecimalRegex = regexp.MustCompile(`^[0-9]*(\.[0-9]*)?`)
)

// NormalizeTitle derives the price store key from a scraped title.
// Lower-cases, drops everything outside [a-z0-9 ] and turns each space into
// an underscore, so "iPhone 14!" becomes "iphone_14". Runs of spaces are kept
// as runs of underscores.
func NormalizeTitle(title string) string {
	result := strings.ToLower(title)
	result = nonTitleCharsRegex.ReplaceAllString(result, "")
	return strings.ReplaceAll(result, " ", "_")
}

// ParsePrice cleans a display-formatted price such as "₹4,599" into a number.
// Everything except digits and dots is stripped and the longest leading
// decimal is parsed, so "4.59.9" reads as 4.59. Nil, empty or unparseable
// input yields nil.
func ParsePrice(raw *string) *float64 {
	if raw == nil || *raw == "" {
		return nil
	}

	digits := nonPriceCharsRegex.ReplaceAllString(*raw, "")
	digits = leadingDecimalRegex.FindString(digits)
	if digits == "" || digits == "." {
		return nil
	}

	value, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil
	}
	return &value
}

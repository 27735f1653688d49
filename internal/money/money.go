// Package money parses the dollar-prefixed amounts used by ledger commands.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// Parse converts a value such as "$1000" or "$12.75" into whole currency
// units, truncating toward zero. A leading "$" is optional. Only the numeric
// prefix is read, so "$12abc" yields 12. Anything unparseable, or outside the
// int64 range, yields 0.
func Parse(s string) int64 {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	num := numericPrefix(s)
	if num == "" {
		return 0
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return 0
	}
	d = d.Truncate(0)
	if d.GreaterThan(maxAmount) || d.LessThan(minAmount) {
		return 0
	}
	return d.IntPart()
}

// Format renders whole units the way the report prints them.
func Format(amount int64) string {
	return "$" + decimal.NewFromInt(amount).String()
}

func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			frac++
		}
		if frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	return s[:i]
}

package card

import "strings"

const (
	minNumberLen = 13
	maxNumberLen = 19
)

// Validate reports whether number is 13 to 19 ASCII digits and passes the Luhn
// checksum. Signs, spaces and separators are rejected.
func Validate(number string) bool {
	if l := len(number); l < minNumberLen || l > maxNumberLen {
		return false
	}
	if !IsDigits(number) {
		return false
	}

	sum := 0
	for i := 0; i < len(number); i++ {
		d := int(number[len(number)-1-i] - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// IsDigits reports whether s is made only of '0'..'9'. The empty string is
// considered digits.
func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Mask keeps the first six and last four digits of a number and hides the rest.
// Short values are masked except for their last four characters.
func Mask(number string) string {
	n := len(number)
	switch {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	case n < 10:
		return strings.Repeat("*", n-4) + number[n-4:]
	default:
		return number[:6] + strings.Repeat("*", n-10) + number[n-4:]
	}
}

package shared

import (
	"errors"
	"fmt"
)

// BSDate is a Bikram Sambat business date in fixed-width "YYYY-MM-DD" form.
// The core never converts to Gregorian; fixed-width digits make lexical
// ordering equal to calendar ordering.
type BSDate string

// ErrInvalidDate indicates a malformed business date.
var ErrInvalidDate = errors.New("shared: invalid business date")

// ParseBSDate validates the textual form and returns a BSDate.
func ParseBSDate(s string) (BSDate, error) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
	}
	month := int(s[5]-'0')*10 + int(s[6]-'0')
	day := int(s[8]-'0')*10 + int(s[9]-'0')
	// BS months run up to 32 days.
	if month < 1 || month > 12 || day < 1 || day > 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return BSDate(s), nil
}

// After reports whether d is strictly later than other.
func (d BSDate) After(other BSDate) bool {
	return string(d) > string(other)
}

// IsZero reports whether the date is unset.
func (d BSDate) IsZero() bool {
	return d == ""
}

func (d BSDate) String() string {
	return string(d)
}

package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Common validation errors
var (
	ErrInvalidIndexCode = fmt.Errorf("invalid index code")
)

var (
	indexCodePattern = regexp.MustCompile(`^[a-z0-9_]{1,50}$`)
	currencyPattern  = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ValidateIndexCode checks that code looks like an index_mapping code,
// e.g. "msci_world".
func ValidateIndexCode(code string) error {
	if !indexCodePattern.MatchString(code) {
		return fmt.Errorf("%w: %s", ErrInvalidIndexCode, code)
	}
	return nil
}

// IsCurrency reports whether code is a three-letter upper-case currency code.
func IsCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}

// ParseTime parses a date string in "2006-01-02" or RFC3339 format.
// Note: mirrors repository.ParseTime; both are kept local to avoid cross-layer imports.
func ParseTime(str string) (time.Time, error) {
	returnTime, err := time.Parse("2006-01-02", strings.TrimSpace(str))
	if err != nil {
		returnTime, err = time.Parse(time.RFC3339, strings.TrimSpace(str))
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse date: %w", err)
		}
	}
	return returnTime.UTC(), nil
}

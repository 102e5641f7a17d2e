package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/backtest"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places monetary values are rounded to
// in responses.
const MoneyPlaces = 2

// roundMoney rounds a monetary value half away from zero to MoneyPlaces using
// decimal arithmetic, so 2.675 becomes 2.68 rather than the binary-float 2.67.
// Non-finite values are returned unchanged.
//
// Example:
//
//	roundMoney(123.456789)  // returns 123.46
//	roundMoney(2.675)       // returns 2.68
func roundMoney(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	return decimal.NewFromFloat(value).Round(MoneyPlaces).InexactFloat64()
}

// roundEvolution returns a copy of points with values and contributions rounded.
func roundEvolution(points []backtest.EvolutionPoint) []backtest.EvolutionPoint {
	out := make([]backtest.EvolutionPoint, len(points))
	for i, p := range points {
		out[i] = backtest.EvolutionPoint{
			Date:         p.Date,
			Value:        roundMoney(p.Value),
			Contribution: roundMoney(p.Contribution),
		}
	}
	return out
}

// parseDate parses a request date in "2006-01-02" or RFC3339 format. Field
// names the request field reported when parsing fails.
func parseDate(field, str string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(str))
	if err != nil {
		t, err = time.Parse(time.RFC3339, strings.TrimSpace(str))
		if err != nil {
			return time.Time{}, &backtest.InputValidationError{
				Fields: map[string]string{field: fmt.Sprintf("invalid date: %s", str)},
			}
		}
	}
	return t.UTC(), nil
}

// fingerprint hashes an analysis kind and its normalized inputs into a cache key.
func fingerprint(kind string, inputs any) (string, error) {
	payload, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint %s request: %w", kind, err)
	}
	sum := sha256.Sum256(append([]byte(kind+":"), payload...))
	return hex.EncodeToString(sum[:]), nil
}

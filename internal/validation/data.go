package validation

import (
	"strings"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/request"
	"github.com/shopspring/decimal"
)

// ValidateUpdateExchangeRate checks a set-exchange-rate body. The rate must be
// a positive decimal.
func ValidateUpdateExchangeRate(req request.SetExchangeRateRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.Date) == "" {
		errors["date"] = "date is required"
	} else if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		errors["date"] = err.Error()
	}

	if strings.TrimSpace(req.ToCurrency) == "" {
		errors["toCurrency"] = "to currency is required"
	} else if !IsCurrency(strings.ToUpper(req.ToCurrency)) {
		errors["toCurrency"] = "to currency must be a three-letter code"
	}

	if strings.TrimSpace(req.FromCurrency) == "" {
		errors["fromCurrency"] = "from currency is required"
	} else if !IsCurrency(strings.ToUpper(req.FromCurrency)) {
		errors["fromCurrency"] = "from currency must be a three-letter code"
	}

	if _, ok := errors["fromCurrency"]; !ok && strings.EqualFold(req.FromCurrency, req.ToCurrency) {
		errors["toCurrency"] = "to currency must differ from from currency"
	}

	validatePositiveDecimal("rate", req.Rate, errors)

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}

// ValidateUpdateIndexPrice checks a set-index-price body.
func ValidateUpdateIndexPrice(req request.SetIndexPriceRequest) error {
	errors := make(map[string]string)

	if strings.TrimSpace(req.Date) == "" {
		errors["date"] = "date is required"
	} else if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		errors["date"] = err.Error()
	}

	if strings.TrimSpace(req.IndexCode) == "" {
		errors["indexCode"] = "indexCode is required"
	} else if err := ValidateIndexCode(req.IndexCode); err != nil {
		errors["indexCode"] = err.Error()
	}

	validatePositiveDecimal("price", req.Price, errors)

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}

	return nil
}

// ValidateRefresh checks the optional filters of a refresh body.
func ValidateRefresh(req request.RefreshRequest) error {
	errors := make(map[string]string)

	for _, code := range req.IndexCodes {
		if err := ValidateIndexCode(code); err != nil {
			errors["indexCodes"] = err.Error()
			break
		}
	}
	for _, pair := range req.FXPairs {
		if _, _, ok := SplitPair(pair); !ok {
			errors["fxPairs"] = "pairs must look like EUR/CZK"
			break
		}
	}

	if len(errors) > 0 {
		return &Error{Fields: errors}
	}
	return nil
}

// SplitPair splits "EUR/CZK" into its upper-cased currencies.
func SplitPair(pair string) (from, to string, ok bool) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(pair)), "/")
	if len(parts) != 2 || !IsCurrency(parts[0]) || !IsCurrency(parts[1]) || parts[0] == parts[1] {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func validatePositiveDecimal(field, raw string, errors map[string]string) {
	if strings.TrimSpace(raw) == "" {
		errors[field] = field + " is required"
		return
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		errors[field] = field + " not a valid number"
		return
	}
	if !d.IsPositive() {
		errors[field] = field + " must be greater than 0"
	}
}

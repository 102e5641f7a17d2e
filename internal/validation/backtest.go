package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/backtest"
)

// MaxForecastYears bounds Monte Carlo horizons.
const MaxForecastYears = 50

// ValidateBacktest checks the common backtest body: instruments, window,
// amounts, strategy and contribution schedule.
func ValidateBacktest(req request.BacktestRequest) error {
	errs := make(map[string]string)
	validateBacktest(req, errs)
	return result(errs)
}

// ValidateRebalancing checks a comparison body, including every requested strategy.
func ValidateRebalancing(req request.RebalancingRequest) error {
	errs := make(map[string]string)
	validateBacktest(req.BacktestRequest, errs)
	validateStrategies(req.Strategies, errs)
	return result(errs)
}

// ValidateMonteCarlo checks a projection body. maxSimulations is the
// configured path cap.
func ValidateMonteCarlo(req request.MonteCarloRequest, maxSimulations int) error {
	errs := make(map[string]string)
	validateBacktest(req.BacktestRequest, errs)
	validateProjection(req, maxSimulations, errs)
	return result(errs)
}

// ValidateAnalyze checks a combined analysis body.
func ValidateAnalyze(req request.AnalyzeRequest, maxSimulations int) error {
	errs := make(map[string]string)
	validateBacktest(req.BacktestRequest, errs)
	validateProjection(req.MonteCarloRequest, maxSimulations, errs)
	validateStrategies(req.Strategies, errs)
	return result(errs)
}

// ValidateCorrelation checks a correlation body. The instrument count is not
// checked here; fewer than two instruments is reported by the correlation
// engine itself.
func ValidateCorrelation(req request.CorrelationRequest) error {
	errs := make(map[string]string)

	for i, item := range req.Portfolio {
		validateIndexCode(i, item.IndexCode, errs)
	}
	validateWindow(req.StartDate, req.EndDate, errs)
	validateCurrency(req.Currency, errs)

	return result(errs)
}

func validateBacktest(req request.BacktestRequest, errs map[string]string) {
	weights := make([]float64, len(req.Portfolio))
	ters := make([]float64, len(req.Portfolio))
	for i, item := range req.Portfolio {
		validateIndexCode(i, item.IndexCode, errs)
		weights[i] = item.Weight
		if item.TER != nil {
			ters[i] = *item.TER
		}
	}

	var allocErr *backtest.InputValidationError
	if err := backtest.ValidateAllocation(weights, ters); errors.As(err, &allocErr) {
		for field, msg := range allocErr.Fields {
			errs[field] = msg
		}
	}

	validateWindow(req.StartDate, req.EndDate, errs)
	validateCurrency(req.Currency, errs)

	if math.IsNaN(req.InitialAmount) || math.IsInf(req.InitialAmount, 0) || req.InitialAmount <= 0 {
		errs["initialAmount"] = "initialAmount must be greater than 0"
	}

	if strings.TrimSpace(req.RebalancingStrategy) != "" {
		if _, err := backtest.ParseStrategy(req.RebalancingStrategy); err != nil {
			errs["rebalancingStrategy"] = fmt.Sprintf("unknown strategy: %s", req.RebalancingStrategy)
		}
	}

	if c := req.Contributions; c != nil {
		if math.IsNaN(c.Amount) || math.IsInf(c.Amount, 0) || c.Amount <= 0 {
			errs["contributions.amount"] = "amount must be greater than 0"
		}
		if _, err := backtest.ParseFrequency(c.Frequency); err != nil {
			errs["contributions.frequency"] = fmt.Sprintf("invalid frequency: %s", c.Frequency)
		}
	}

	if req.InflationRate != nil {
		if r := *req.InflationRate; math.IsNaN(r) || r <= -1 || r >= 1 {
			errs["inflationRate"] = "inflationRate must be a fraction in (-1, 1)"
		}
	}
}

func validateProjection(req request.MonteCarloRequest, maxSimulations int, errs map[string]string) {
	if req.ForecastYears != 0 && (req.ForecastYears < 1 || req.ForecastYears > MaxForecastYears) {
		errs["forecastYears"] = fmt.Sprintf("forecastYears must be between 1 and %d", MaxForecastYears)
	}
	if req.Simulations < 0 {
		errs["simulations"] = "simulations cannot be negative"
	} else if maxSimulations > 0 && req.Simulations > maxSimulations {
		errs["simulations"] = fmt.Sprintf("simulations cannot exceed %d", maxSimulations)
	}
}

func validateStrategies(strategies []string, errs map[string]string) {
	for i, raw := range strategies {
		if _, err := backtest.ParseStrategy(raw); err != nil {
			errs[fmt.Sprintf("strategies[%d]", i)] = fmt.Sprintf("unknown strategy: %s", raw)
		}
	}
}

func validateIndexCode(i int, code string, errs map[string]string) {
	field := fmt.Sprintf("portfolio[%d].indexCode", i)
	if strings.TrimSpace(code) == "" {
		errs[field] = "indexCode is required"
		return
	}
	if err := ValidateIndexCode(code); err != nil {
		errs[field] = err.Error()
	}
}

func validateWindow(startDate, endDate string, errs map[string]string) {
	start, startErr := ParseTime(startDate)
	if strings.TrimSpace(startDate) == "" {
		errs["startDate"] = "startDate is required"
	} else if startErr != nil {
		errs["startDate"] = startErr.Error()
	}

	end, endErr := ParseTime(endDate)
	if strings.TrimSpace(endDate) == "" {
		errs["endDate"] = "endDate is required"
	} else if endErr != nil {
		errs["endDate"] = endErr.Error()
	}

	if startErr == nil && endErr == nil && !start.Before(end) {
		errs["endDate"] = "endDate must be after startDate"
	}
}

func validateCurrency(currency string, errs map[string]string) {
	if currency != "" && !IsCurrency(strings.ToUpper(currency)) {
		errs["currency"] = fmt.Sprintf("invalid currency: %s", currency)
	}
}

func result(errs map[string]string) error {
	if len(errs) > 0 {
		return &Error{Fields: errs}
	}
	return nil
}

package backtest

import (
	"fmt"
	"math"
)

// WeightTolerance is the allowed absolute difference between the sum of the
// portfolio weights and 1.
const WeightTolerance = 0.001

// SimulationParams configures one run of the evolution simulator. Weights and
// TERs are indexed like the instruments of the AlignedSeries.
type SimulationParams struct {
	Weights       []float64
	TERs          []float64
	InitialAmount float64
	Contributions *ContributionSchedule
	Strategy      Strategy
}

// ValidateAllocation checks the weights and TERs of a portfolio.
func ValidateAllocation(weights, ters []float64) error {
	fields := make(map[string]string)

	if len(weights) == 0 {
		fields["portfolio"] = "portfolio must contain at least one instrument"
	}
	if len(ters) != len(weights) {
		fields["ter"] = "every instrument needs a TER"
	}

	var sum float64
	for i, w := range weights {
		if math.IsNaN(w) || w < 0 || w > 1 {
			fields[fmt.Sprintf("portfolio[%d].weight", i)] = "weight must be between 0 and 1"
		}
		sum += w
	}
	if len(weights) > 0 && math.Abs(sum-1) > WeightTolerance {
		fields["weights"] = fmt.Sprintf("weights must sum to 100%%, got %.2f%%", sum*100)
	}

	for i, ter := range ters {
		if math.IsNaN(ter) || ter < 0 || ter >= 1 {
			fields[fmt.Sprintf("portfolio[%d].ter", i)] = "ter must be in [0, 1)"
		}
	}

	if len(fields) > 0 {
		return &InputValidationError{Fields: fields}
	}
	return nil
}

func (p SimulationParams) validate(instruments int) error {
	if err := ValidateAllocation(p.Weights, p.TERs); err != nil {
		return err
	}

	fields := make(map[string]string)
	if len(p.Weights) != instruments {
		fields["portfolio"] = fmt.Sprintf("expected %d weights, got %d", instruments, len(p.Weights))
	}
	if math.IsNaN(p.InitialAmount) || math.IsInf(p.InitialAmount, 0) || p.InitialAmount <= 0 {
		fields["initialAmount"] = "initialAmount must be greater than 0"
	}
	if c := p.Contributions; c != nil {
		if math.IsNaN(c.Amount) || math.IsInf(c.Amount, 0) || c.Amount <= 0 {
			fields["contributions.amount"] = "contribution amount must be greater than 0"
		}
		if _, err := ParseFrequency(string(c.Frequency)); err != nil {
			fields["contributions.frequency"] = err.Error()
		}
	}
	if !p.Strategy.Valid() {
		fields["rebalancingStrategy"] = "unknown rebalancing strategy: " + string(p.Strategy)
	}

	if len(fields) > 0 {
		return &InputValidationError{Fields: fields}
	}
	return nil
}

// Simulate evolves the portfolio over the aligned series. At each month-end
// positions grow by their return, pay the monthly share of their TER, receive
// any due contribution split by target weight, and are then rebalanced if the
// strategy says so. The first point holds the initial amount.
func Simulate(series *AlignedSeries, p SimulationParams) (*Trajectory, error) {
	if series == nil || len(series.Dates) < 2 {
		return nil, invalidField("series", "at least two month-ends are required")
	}
	if err := p.validate(len(series.Returns)); err != nil {
		return nil, err
	}

	holdings := make([]float64, len(p.Weights))
	for j, w := range p.Weights {
		holdings[j] = p.InitialAmount * w
	}

	points := make([]EvolutionPoint, 0, len(series.Dates))
	points = append(points, EvolutionPoint{Date: series.Dates[0], Value: p.InitialAmount})
	invested := p.InitialAmount

	for t := 1; t < len(series.Dates); t++ {
		for j := range holdings {
			holdings[j] *= 1 + series.Returns[j][t-1]
			holdings[j] *= 1 - p.TERs[j]/12
		}

		var contribution float64
		if p.Contributions.dueAt(series.Dates[t-1], series.Dates[t]) {
			contribution = p.Contributions.Amount
			for j, w := range p.Weights {
				holdings[j] += contribution * w
			}
			invested += contribution
		}

		total := sum(holdings)
		if math.IsNaN(total) || math.IsInf(total, 0) {
			return nil, fmt.Errorf("portfolio value diverged at %s", series.Dates[t].Format("2006-01-02"))
		}
		points = append(points, EvolutionPoint{
			Date:         series.Dates[t],
			Value:        total,
			Contribution: contribution,
		})

		if p.Strategy.rebalanceDue(series.Dates[t], holdings, p.Weights, total) {
			for j, w := range p.Weights {
				holdings[j] = total * w
			}
		}
	}

	return &Trajectory{Points: points, AmountInvested: invested}, nil
}

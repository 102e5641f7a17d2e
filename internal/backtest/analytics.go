package backtest

import (
	"math"
	"sort"
	"time"
)

const (
	// DefaultRiskFreeRate is the annual rate used in the Sharpe ratio.
	DefaultRiskFreeRate = 0.03
	// DefaultInflationRate is the annual inflation used for real values.
	DefaultInflationRate = 0.033
	// DefaultMaxHorizonYears is the longest rolling holding period examined.
	DefaultMaxHorizonYears = 20

	rankedPeriods = 3
)

// AnalyticsOptions tunes Analyze. A zero MaxHorizonYears falls back to
// DefaultMaxHorizonYears; a zero InflationRate leaves real values equal to
// nominal ones.
type AnalyticsOptions struct {
	RiskFreeRate    float64
	InflationRate   float64
	MaxHorizonYears int
}

// DefaultAnalyticsOptions returns the options used when nothing is configured.
func DefaultAnalyticsOptions() AnalyticsOptions {
	return AnalyticsOptions{
		RiskFreeRate:    DefaultRiskFreeRate,
		InflationRate:   DefaultInflationRate,
		MaxHorizonYears: DefaultMaxHorizonYears,
	}
}

// SummaryStats holds the headline figures of a trajectory. SharpeRatio is nil
// when the volatility is zero.
type SummaryStats struct {
	AmountInvested    float64  `json:"amountInvested"`
	NetAssetValue     float64  `json:"netAssetValue"`
	CAGR              float64  `json:"cagr"`
	StandardDeviation float64  `json:"standardDeviation"`
	SharpeRatio       *float64 `json:"sharpeRatio"`
}

// PeriodReturn is the time-weighted return of the month ending at Date.
type PeriodReturn struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// AnnualReturn is the compounded return of the months ending in Year.
type AnnualReturn struct {
	Year   int     `json:"year"`
	Return float64 `json:"return"`
}

// ReturnsBreakdown decomposes the trajectory into monthly and calendar-year
// returns.
type ReturnsBreakdown struct {
	Monthly        []PeriodReturn `json:"monthly"`
	Annual         []AnnualReturn `json:"annual"`
	BestYears      []AnnualReturn `json:"bestYears"`
	WorstYears     []AnnualReturn `json:"worstYears"`
	BestMonths     []PeriodReturn `json:"bestMonths"`
	WorstMonths    []PeriodReturn `json:"worstMonths"`
	PositiveMonths int            `json:"positiveMonths"`
	TotalMonths    int            `json:"totalMonths"`
	PositiveYears  int            `json:"positiveYears"`
	TotalYears     int            `json:"totalYears"`
}

// RiskStats holds drawdowns and the historical one-year VaR. ValueAtRisk95 is
// the 5th percentile of rolling 12-month returns, nil when the trajectory is
// shorter than a year.
type RiskStats struct {
	MaxDrawdown     DrawdownEvent   `json:"maxDrawdown"`
	LongestDrawdown DrawdownEvent   `json:"longestDrawdown"`
	Drawdowns       []DrawdownEvent `json:"drawdowns"`
	ValueAtRisk95   *float64        `json:"valueAtRisk95"`
}

// HorizonStat is the share of rolling windows of a given length that ended
// with a non-negative total return.
type HorizonStat struct {
	Years                     int     `json:"years"`
	PeriodsWithPositiveReturn int     `json:"periodsWithPositiveReturn"`
	TotalPeriods              int     `json:"totalPeriods"`
	PercentagePositive        float64 `json:"percentagePositive"`
}

// InflationAdjusted expresses the trajectory in start-date money.
type InflationAdjusted struct {
	AnnualInflation float64          `json:"annualInflation"`
	RealCAGR        float64          `json:"realCagr"`
	RealFinalValue  float64          `json:"realFinalValue"`
	Evolution       []EvolutionPoint `json:"evolution"`
}

// Analysis is the full output of Analyze.
type Analysis struct {
	Summary   SummaryStats      `json:"summary"`
	Returns   ReturnsBreakdown  `json:"returns"`
	Risk      RiskStats         `json:"risk"`
	Horizons  []HorizonStat     `json:"horizons"`
	Inflation InflationAdjusted `json:"inflation"`
}

// TimeWeightedReturns returns the monthly returns of the trajectory with the
// contribution injected at each point removed:
//
//	r_t = (V_t - C_t) / V_t-1 - 1
//
// A month starting from a zero value has a zero return.
func TimeWeightedReturns(points []EvolutionPoint) []PeriodReturn {
	if len(points) < 2 {
		return nil
	}
	out := make([]PeriodReturn, len(points)-1)
	for t := 1; t < len(points); t++ {
		prev := points[t-1].Value
		r := 0.0
		if prev > 0 {
			r = (points[t].Value-points[t].Contribution)/prev - 1
		}
		out[t-1] = PeriodReturn{Date: points[t].Date, Return: r}
	}
	return out
}

// WealthIndex chains monthly returns into the growth of one unit invested at
// the first point. Without contributions it is the trajectory divided by the
// initial amount.
func WealthIndex(returns []PeriodReturn) []float64 {
	w := make([]float64, len(returns)+1)
	w[0] = 1
	for i, r := range returns {
		w[i+1] = w[i] * (1 + r.Return)
	}
	return w
}

// CAGR annualizes the growth of a wealth index spanning len(wealth)-1 months.
func CAGR(wealth []float64) float64 {
	months := len(wealth) - 1
	if months <= 0 {
		return 0
	}
	final := wealth[len(wealth)-1]
	if final <= 0 {
		return -1
	}
	return math.Pow(final/wealth[0], 12/float64(months)) - 1
}

// TrajectoryCAGR is the time-weighted CAGR of a trajectory.
func TrajectoryCAGR(traj *Trajectory) float64 {
	return CAGR(WealthIndex(TimeWeightedReturns(traj.Points)))
}

// Analyze computes summary, return, risk, horizon and inflation statistics for
// a trajectory. All return based figures are time-weighted so contributions do
// not count as performance.
func Analyze(traj *Trajectory, opts AnalyticsOptions) *Analysis {
	if opts.MaxHorizonYears <= 0 {
		opts.MaxHorizonYears = DefaultMaxHorizonYears
	}

	monthly := TimeWeightedReturns(traj.Points)
	wealth := WealthIndex(monthly)
	dates := make([]time.Time, len(traj.Points))
	for i, p := range traj.Points {
		dates[i] = p.Date
	}

	values := make([]float64, len(monthly))
	for i, r := range monthly {
		values[i] = r.Return
	}

	cagr := CAGR(wealth)
	std := stdDev(values) * math.Sqrt(12)

	summary := SummaryStats{
		AmountInvested:    traj.AmountInvested,
		NetAssetValue:     traj.FinalValue(),
		CAGR:              cagr,
		StandardDeviation: std,
	}
	if std > 0 && !math.IsNaN(std) {
		summary.SharpeRatio = floatPtr((cagr - opts.RiskFreeRate) / std)
	}

	drawdowns := Drawdowns(dates, wealth)
	risk := RiskStats{
		MaxDrawdown:     deepest(drawdowns, dates),
		LongestDrawdown: longest(drawdowns, dates),
		Drawdowns:       drawdowns,
		ValueAtRisk95:   valueAtRisk(wealth, 0.05),
	}

	return &Analysis{
		Summary:   summary,
		Returns:   breakdown(monthly),
		Risk:      risk,
		Horizons:  Horizons(wealth, opts.MaxHorizonYears),
		Inflation: adjustForInflation(traj, cagr, opts.InflationRate),
	}
}

func breakdown(monthly []PeriodReturn) ReturnsBreakdown {
	out := ReturnsBreakdown{
		Monthly:     monthly,
		TotalMonths: len(monthly),
	}

	for _, r := range monthly {
		if r.Return > 0 {
			out.PositiveMonths++
		}
		n := len(out.Annual)
		if n == 0 || out.Annual[n-1].Year != r.Date.Year() {
			out.Annual = append(out.Annual, AnnualReturn{Year: r.Date.Year(), Return: r.Return})
			continue
		}
		out.Annual[n-1].Return = (1+out.Annual[n-1].Return)*(1+r.Return) - 1
	}

	out.TotalYears = len(out.Annual)
	for _, y := range out.Annual {
		if y.Return > 0 {
			out.PositiveYears++
		}
	}

	years := make([]AnnualReturn, len(out.Annual))
	copy(years, out.Annual)
	sort.SliceStable(years, func(i, j int) bool { return years[i].Return > years[j].Return })
	out.BestYears = topYears(years)
	sort.SliceStable(years, func(i, j int) bool { return years[i].Return < years[j].Return })
	out.WorstYears = topYears(years)

	months := make([]PeriodReturn, len(monthly))
	copy(months, monthly)
	sort.SliceStable(months, func(i, j int) bool { return months[i].Return > months[j].Return })
	out.BestMonths = topMonths(months)
	sort.SliceStable(months, func(i, j int) bool { return months[i].Return < months[j].Return })
	out.WorstMonths = topMonths(months)

	return out
}

func topYears(sorted []AnnualReturn) []AnnualReturn {
	n := min(rankedPeriods, len(sorted))
	return append([]AnnualReturn(nil), sorted[:n]...)
}

func topMonths(sorted []PeriodReturn) []PeriodReturn {
	n := min(rankedPeriods, len(sorted))
	return append([]PeriodReturn(nil), sorted[:n]...)
}

// RollingReturns returns the total return of every window of the given
// length in months.
func RollingReturns(wealth []float64, months int) []float64 {
	if months <= 0 || len(wealth) <= months {
		return nil
	}
	out := make([]float64, 0, len(wealth)-months)
	for i := 0; i+months < len(wealth); i++ {
		if wealth[i] <= 0 {
			out = append(out, -1)
			continue
		}
		out = append(out, wealth[i+months]/wealth[i]-1)
	}
	return out
}

func valueAtRisk(wealth []float64, p float64) *float64 {
	rolling := RollingReturns(wealth, 12)
	if len(rolling) == 0 {
		return nil
	}
	return floatPtr(percentile(sortedCopy(rolling), p))
}

// Horizons slides windows of 1..maxYears years across the wealth index.
// Horizons longer than the trajectory are omitted.
func Horizons(wealth []float64, maxYears int) []HorizonStat {
	var out []HorizonStat
	for years := 1; years <= maxYears; years++ {
		rolling := RollingReturns(wealth, years*12)
		if len(rolling) == 0 {
			break
		}
		positive := 0
		for _, r := range rolling {
			if r >= 0 {
				positive++
			}
		}
		out = append(out, HorizonStat{
			Years:                     years,
			PeriodsWithPositiveReturn: positive,
			TotalPeriods:              len(rolling),
			PercentagePositive:        float64(positive) / float64(len(rolling)) * 100,
		})
	}
	return out
}

func adjustForInflation(traj *Trajectory, cagr, inflation float64) InflationAdjusted {
	out := InflationAdjusted{
		AnnualInflation: inflation,
		RealCAGR:        (1+cagr)/(1+inflation) - 1,
		Evolution:       make([]EvolutionPoint, len(traj.Points)),
	}
	for i, p := range traj.Points {
		deflator := math.Pow(1+inflation, float64(i)/12)
		out.Evolution[i] = EvolutionPoint{
			Date:         p.Date,
			Value:        p.Value / deflator,
			Contribution: p.Contribution / deflator,
		}
	}
	if n := len(out.Evolution); n > 0 {
		out.RealFinalValue = out.Evolution[n-1].Value
	}
	return out
}

package request

// PortfolioItem is one instrument of a backtested portfolio.
type PortfolioItem struct {
	ISIN      string   `json:"isin"`      // ISIN is the ETF identifier, used for naming and the catalog TER.
	Name      string   `json:"name"`      // Name is the display name; defaults to the catalog name or ISIN.
	IndexCode string   `json:"indexCode"` // IndexCode selects the price history, e.g. "msci_world".
	Weight    float64  `json:"weight"`    // Weight is the target allocation as a fraction in [0, 1].
	TER       *float64 `json:"ter"`       // TER is the annual expense ratio as a fraction; falls back to the catalog value.
}

// ContributionRequest is an optional periodic cash injection.
type ContributionRequest struct {
	Amount    float64 `json:"amount"`    // Amount added per period in the display currency.
	Frequency string  `json:"frequency"` // Frequency is one of: monthly, quarterly, yearly.
}

// BacktestRequest is the common body of the backtest endpoints.
type BacktestRequest struct {
	Portfolio           []PortfolioItem      `json:"portfolio"`
	StartDate           string               `json:"startDate"`           // StartDate in YYYY-MM-DD format.
	EndDate             string               `json:"endDate"`             // EndDate in YYYY-MM-DD format.
	InitialAmount       float64              `json:"initialAmount"`       // InitialAmount in the display currency.
	Currency            string               `json:"currency"`            // Currency is the display currency; defaults to the configured one.
	RebalancingStrategy string               `json:"rebalancingStrategy"` // RebalancingStrategy defaults to yearly.
	Contributions       *ContributionRequest `json:"contributions"`
	InflationRate       *float64             `json:"inflationRate"` // InflationRate overrides the configured annual inflation.
}

// RebalancingRequest compares strategies over the same portfolio.
type RebalancingRequest struct {
	BacktestRequest
	Strategies       []string `json:"strategies"`       // Strategies to compare; defaults to the standard set.
	IncludeEvolution bool     `json:"includeEvolution"` // IncludeEvolution adds each strategy's trajectory.
}

// MonteCarloRequest projects the portfolio forward.
type MonteCarloRequest struct {
	BacktestRequest
	ForecastYears int    `json:"forecastYears"` // ForecastYears in [1, 50]; defaults to the configured horizon.
	Simulations   int    `json:"simulations"`   // Simulations is the number of paths; defaults to the configured count.
	Seed          *int64 `json:"seed"`          // Seed makes the projection reproducible.
}

// CorrelationRequest only needs the instruments and the window.
type CorrelationRequest struct {
	Portfolio []PortfolioItem `json:"portfolio"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Currency  string          `json:"currency"`
}

// AnalyzeRequest runs every analysis over one normalized series.
type AnalyzeRequest struct {
	MonteCarloRequest
	Strategies []string `json:"strategies"`
}

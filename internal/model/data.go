package model

// ImportResult summarises a CSV price import. PartialMonth names the incomplete trailing month that was left out, if any.
type ImportResult struct {
	IndexCode    string `json:"indexCode"`
	Imported     int    `json:"imported"`
	Skipped      int    `json:"skipped"`
	PartialMonth string `json:"partialMonth,omitempty"`
}

// RefreshResponse represents the outcome of a market data refresh. Success is
// false only when every targeted series failed.
type RefreshResponse struct {
	Success       bool            `json:"success"`
	UpdatedSeries []UpdatedSeries `json:"updatedSeries"`
	Errors        []RefreshError  `json:"errors"`
	TotalUpdated  int             `json:"totalUpdated"`
	TotalErrors   int             `json:"totalErrors"`
}

// UpdatedSeries is one index or currency pair that received new month-end points.
type UpdatedSeries struct {
	Key         string `json:"key"`    // Index code or currency pair, e.g. "EUR/CZK"
	Symbol      string `json:"symbol"` // Yahoo symbol that was queried
	PointsAdded int    `json:"pointsAdded"`
}

// RefreshError is a series that could not be refreshed.
type RefreshError struct {
	Key    string `json:"key"`
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

package request

// SetExchangeRateRequest is the request body for creating or updating an exchange rate.
type SetExchangeRateRequest struct {
	Date         string `json:"date"`         // Date is the exchange rate date in YYYY-MM-DD format.
	FromCurrency string `json:"fromCurrency"` // FromCurrency is the source currency code (e.g. "USD").
	ToCurrency   string `json:"toCurrency"`   // ToCurrency is the target currency code (e.g. "EUR").
	Rate         string `json:"rate"`         // Rate is the exchange rate as a decimal string.
}

// SetIndexPriceRequest is the request body for creating or updating an index close.
type SetIndexPriceRequest struct {
	Date      string `json:"date"`      // Date is the price date in YYYY-MM-DD format.
	IndexCode string `json:"indexCode"` // IndexCode is the code of a mapped index.
	Price     string `json:"price"`     // Price is the close as a decimal string.
}

// RefreshRequest optionally narrows a market data refresh.
type RefreshRequest struct {
	IndexCodes []string `json:"indexCodes"` // IndexCodes limits the indexes refreshed; empty means all.
	FXPairs    []string `json:"fxPairs"`    // FXPairs limits the pairs refreshed, e.g. "EUR/CZK"; empty means all configured.
	Full       bool     `json:"full"`       // Full reloads the whole history instead of the months since the last stored point.
}

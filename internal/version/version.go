// Package version holds build information of the running binary.
package version

// Version is the application version. Overridden at build time with
// -ldflags "-X github.com/ndewijer/Portfolio-Backtest-Backend/internal/version.Version=..."
var Version = "dev"

// Features lists the optional capabilities this build serves.
func Features() map[string]bool {
	return map[string]bool{
		"simulate":             true,
		"rebalancing_compare":  true,
		"monte_carlo":          true,
		"correlation":          true,
		"combined_analysis":    true,
		"inflation_adjustment": true,
		"market_data_refresh":  true,
		"csv_price_import":     true,
	}
}

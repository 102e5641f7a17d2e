package handlers

import (
	"net/http"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/validation"
)

// BacktestHandler handles HTTP requests for the backtest analyses.
// It serves as the HTTP layer adapter, validating request bodies and
// delegating the computation to the BacktestService.
type BacktestHandler struct {
	backtestService *service.BacktestService
	maxSimulations  int
}

// NewBacktestHandler creates a new BacktestHandler. maxSimulations caps the
// Monte Carlo path count a request may ask for.
func NewBacktestHandler(backtestService *service.BacktestService, maxSimulations int) *BacktestHandler {
	return &BacktestHandler{
		backtestService: backtestService,
		maxSimulations:  maxSimulations,
	}
}

// Simulate handles POST requests to backtest a portfolio.
//
// Endpoint: POST /api/backtest/simulate
// Request Body: BacktestRequest (portfolio, startDate, endDate, initialAmount, and optionally
// currency, rebalancingStrategy, contributions and inflationRate)
// Response: 200 OK with evolution, summary, returns, risk, horizons and inflation
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if an index code is unknown
// Error: 422 Unprocessable Entity if an instrument lacks data in the window
// Error: 500 Internal Server Error if the simulation fails
func (h *BacktestHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.BacktestRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateBacktest(req); err != nil {
		respondValidation(w, err)
		return
	}

	result, err := h.backtestService.Simulate(r.Context(), req)
	if err != nil {
		respondBacktestError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Rebalancing handles POST requests to compare rebalancing strategies.
//
// Endpoint: POST /api/backtest/rebalancing
// Request Body: RebalancingRequest (BacktestRequest plus optional strategies and includeEvolution)
// Response: 200 OK with strategies ranked by CAGR
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if an index code is unknown
// Error: 422 Unprocessable Entity if an instrument lacks data in the window
// Error: 500 Internal Server Error if the comparison fails
func (h *BacktestHandler) Rebalancing(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.RebalancingRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateRebalancing(req); err != nil {
		respondValidation(w, err)
		return
	}

	comparison, err := h.backtestService.CompareRebalancing(r.Context(), req)
	if err != nil {
		respondBacktestError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, comparison)
}

// MonteCarlo handles POST requests to project a portfolio forward.
//
// Endpoint: POST /api/backtest/monte-carlo
// Request Body: MonteCarloRequest (BacktestRequest plus optional forecastYears, simulations and seed)
// Response: 200 OK with chartData, stats, finalValues and assumption
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if an index code is unknown
// Error: 422 Unprocessable Entity if an instrument lacks data in the window
// Error: 500 Internal Server Error if the projection fails
func (h *BacktestHandler) MonteCarlo(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.MonteCarloRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateMonteCarlo(req, h.maxSimulations); err != nil {
		respondValidation(w, err)
		return
	}

	projection, err := h.backtestService.MonteCarlo(r.Context(), req)
	if err != nil {
		respondBacktestError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, projection)
}

// Correlation handles POST requests for the pairwise correlation of the
// portfolio's instruments.
//
// Endpoint: POST /api/backtest/correlation
// Request Body: CorrelationRequest (portfolio, startDate, endDate, optional currency)
// Response: 200 OK with correlations and etfNames
// Error: 400 Bad Request if validation fails or fewer than two instruments are given
// Error: 404 Not Found if an index code is unknown
// Error: 422 Unprocessable Entity if an instrument lacks data in the window
// Error: 500 Internal Server Error if the computation fails
func (h *BacktestHandler) Correlation(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.CorrelationRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateCorrelation(req); err != nil {
		respondValidation(w, err)
		return
	}

	matrix, err := h.backtestService.Correlation(r.Context(), req)
	if err != nil {
		respondBacktestError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, matrix)
}

// Analyze handles POST requests running every analysis of a portfolio in one call.
//
// Endpoint: POST /api/backtest/analyze
// Request Body: AnalyzeRequest (MonteCarloRequest plus optional strategies)
// Response: 200 OK with simulation, rebalancing, monteCarlo and correlation (null for one instrument)
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if an index code is unknown
// Error: 422 Unprocessable Entity if an instrument lacks data in the window
// Error: 500 Internal Server Error if any analysis fails
func (h *BacktestHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.AnalyzeRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateAnalyze(req, h.maxSimulations); err != nil {
		respondValidation(w, err)
		return
	}

	result, err := h.backtestService.Analyze(r.Context(), req)
	if err != nil {
		respondBacktestError(w, r, err)
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

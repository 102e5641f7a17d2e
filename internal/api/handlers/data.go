package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/request"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/validation"
)

// maxImportBytes caps CSV uploads.
const maxImportBytes = 10 << 20

// DataHandler handles HTTP requests maintaining the stored market data.
type DataHandler struct {
	dataService    *service.DataService
	refreshService *service.RefreshService
}

// NewDataHandler creates a new DataHandler with the provided service dependencies.
func NewDataHandler(dataService *service.DataService, refreshService *service.RefreshService) *DataHandler {
	return &DataHandler{
		dataService:    dataService,
		refreshService: refreshService,
	}
}

// GetExchangeRate handles GET requests for the stored rate of a pair on a date.
//
// Endpoint: GET /api/data/exchange-rate?fromCurrency=&toCurrency=&date=
// Response: 200 OK with ExchangeRate
// Error: 400 Bad Request if a parameter is missing or malformed
// Error: 404 Not Found if no rate is stored
// Error: 500 Internal Server Error if retrieval fails
func (h *DataHandler) GetExchangeRate(w http.ResponseWriter, r *http.Request) {
	from := strings.ToUpper(r.URL.Query().Get("fromCurrency"))
	to := strings.ToUpper(r.URL.Query().Get("toCurrency"))
	if !validation.IsCurrency(from) || !validation.IsCurrency(to) {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidCurrency.Error(), "fromCurrency and toCurrency must be three-letter codes")
		return
	}

	date, err := validation.ParseTime(r.URL.Query().Get("date"))
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidDate.Error(), err.Error())
		return
	}

	rate, err := h.dataService.GetExchangeRate(r.Context(), from, to, date)
	if err != nil {
		if errors.Is(err, apperrors.ErrExchangeRateNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrExchangeRateNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveExchangeRate.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, rate)
}

// SetExchangeRate handles PUT requests creating or replacing an exchange rate.
//
// Endpoint: PUT /api/data/exchange-rate
// Request Body: SetExchangeRateRequest (date, fromCurrency, toCurrency, rate)
// Response: 200 OK with the stored ExchangeRate
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 500 Internal Server Error if the update fails
func (h *DataHandler) SetExchangeRate(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.SetExchangeRateRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateUpdateExchangeRate(req); err != nil {
		respondValidation(w, err)
		return
	}

	rate, err := h.dataService.SetExchangeRate(r.Context(), req)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToUpdateExchangeRate.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, rate)
}

// SetIndexPrice handles PUT requests creating or replacing an index close.
//
// Endpoint: PUT /api/data/index-price
// Request Body: SetIndexPriceRequest (date, indexCode, price)
// Response: 200 OK with the stored IndexPrice
// Error: 400 Bad Request if validation fails or request body is invalid
// Error: 404 Not Found if the index doesn't exist
// Error: 500 Internal Server Error if the update fails
func (h *DataHandler) SetIndexPrice(w http.ResponseWriter, r *http.Request) {
	req, err := parseJSON[request.SetIndexPriceRequest](r)
	if err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if err := validation.ValidateUpdateIndexPrice(req); err != nil {
		respondValidation(w, err)
		return
	}

	price, err := h.dataService.SetIndexPrice(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrIndexNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToUpdateIndexPrice.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, price)
}

// ImportIndexPrices handles POST requests importing a CSV price history.
// The CSV is either the raw request body or the "file" part of a multipart form.
//
// Endpoint: POST /api/data/index-price/import?indexCode=
// Request Body: CSV with a header row naming date and close (or price) columns
// Response: 200 OK with ImportResult
// Error: 400 Bad Request if indexCode is invalid or the CSV has no usable rows or headers
// Error: 404 Not Found if the index doesn't exist
// Error: 500 Internal Server Error if the import fails
func (h *DataHandler) ImportIndexPrices(w http.ResponseWriter, r *http.Request) {
	indexCode := r.URL.Query().Get("indexCode")
	if err := validation.ValidateIndexCode(indexCode); err != nil {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidIndexCode.Error(), err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid upload", err.Error())
			return
		}
		defer file.Close()
		body = file
	}

	result, err := h.dataService.ImportIndexPrices(r.Context(), indexCode, body)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrIndexNotFound):
			response.RespondError(w, http.StatusNotFound, apperrors.ErrIndexNotFound.Error(), err.Error())
		case errors.Is(err, apperrors.ErrInvalidCSVHeaders), errors.Is(err, apperrors.ErrNoData):
			response.RespondError(w, http.StatusBadRequest, apperrors.ErrFailedToImportIndexPrices.Error(), err.Error())
		default:
			response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToImportIndexPrices.Error(), err.Error())
		}
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

// Refresh handles POST requests pulling new market data from Yahoo Finance.
// An empty body refreshes every index and configured currency pair.
//
// Endpoint: POST /api/data/refresh
// Request Body: RefreshRequest (optional indexCodes, fxPairs, full)
// Response: 200 OK with RefreshResponse, also when individual series failed
// Error: 400 Bad Request if validation fails
// Error: 404 Not Found if a requested index doesn't exist
// Error: 500 Internal Server Error if the refresh could not start
func (h *DataHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req request.RefreshRequest
	if r.ContentLength != 0 {
		var err error
		req, err = parseJSON[request.RefreshRequest](r)
		if err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	if err := validation.ValidateRefresh(req); err != nil {
		respondValidation(w, err)
		return
	}

	result, err := h.refreshService.Refresh(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrIndexNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRefreshMarketData.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/service"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/validation"
)

// IndexHandler handles HTTP requests for the index catalog and instrument search.
type IndexHandler struct {
	indexService *service.IndexService
}

// NewIndexHandler creates a new IndexHandler with the provided service dependency.
func NewIndexHandler(indexService *service.IndexService) *IndexHandler {
	return &IndexHandler{
		indexService: indexService,
	}
}

// Indexes handles GET requests listing every index and the span of its data.
//
// Endpoint: GET /api/backtest/indexes
// Response: 200 OK with array of IndexSummary
// Error: 500 Internal Server Error if retrieval fails
func (h *IndexHandler) Indexes(w http.ResponseWriter, r *http.Request) {
	indexes, err := h.indexService.ListIndexes(r.Context())
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveIndexes.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, indexes)
}

// Index handles GET requests for the stored history of one index.
//
// Endpoint: GET /api/backtest/indexes/{indexCode}
// Query params: startDate, endDate (YYYY-MM-DD, optional)
// Response: 200 OK with IndexHistory
// Error: 400 Bad Request if the index code (validated by middleware) or dates are invalid
// Error: 404 Not Found if the index doesn't exist
// Error: 500 Internal Server Error if retrieval fails
func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	indexCode := chi.URLParam(r, "indexCode")

	var start, end time.Time
	var err error
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		if start, err = validation.ParseTime(raw); err != nil {
			response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidDate.Error(), err.Error())
			return
		}
	}
	if raw := r.URL.Query().Get("endDate"); raw != "" {
		if end, err = validation.ParseTime(raw); err != nil {
			response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidDate.Error(), err.Error())
			return
		}
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidDateRange.Error(), "startDate must not be after endDate")
		return
	}

	history, err := h.indexService.GetIndexHistory(r.Context(), indexCode, start, end)
	if err != nil {
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			response.RespondError(w, http.StatusNotFound, apperrors.ErrIndexNotFound.Error(), err.Error())
			return
		}
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRetrieveIndex.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, history)
}

// Search handles GET requests looking instruments up by name, ISIN or index code.
// Terms shorter than two characters return an empty list.
//
// Endpoint: GET /api/backtest/search?q=&limit=
// Response: 200 OK with array of Instrument
// Error: 400 Bad Request if limit is not a number
// Error: 500 Internal Server Error if the search fails
func (h *IndexHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid limit", err.Error())
			return
		}
	}

	instruments, err := h.indexService.SearchInstruments(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToSearchInstruments.Error(), err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, instruments)
}

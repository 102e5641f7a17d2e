package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/backtest"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/validation"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// StatusClientClosedRequest is logged when the client went away before the
// response was ready. Nothing is written to the connection.
const StatusClientClosedRequest = 499

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON: %v", err)
		}
	}
}

// parseJSON decodes the request body into T. Unknown fields are rejected.
func parseJSON[T any](r *http.Request) (T, error) {
	var req T
	if r.Body == nil {
		return req, errors.New("request body is required")
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return req, fmt.Errorf("failed to decode request body: %w", err)
	}
	return req, nil
}

var sanitize = strings.NewReplacer("\n", "", "\r", "").Replace

// respondValidation sends 400 with the offending fields as details.
func respondValidation(w http.ResponseWriter, err error) {
	var fieldErr *validation.Error
	if errors.As(err, &fieldErr) {
		response.RespondError(w, http.StatusBadRequest, "validation failed", fieldErr.Fields)
		return
	}
	response.RespondError(w, http.StatusBadRequest, "validation failed", err.Error())
}

// respondBacktestError maps an analysis failure to its status code.
//
// Status mapping:
//   - validation.Error, backtest.InputValidationError: 400 with field details
//   - backtest.InsufficientInstrumentsError: 400
//   - backtest.DataGapError: 422 with the missing instrument and range
//   - apperrors.ErrIndexNotFound: 404
//   - context.DeadlineExceeded: 504
//   - context.Canceled: nothing is written, 499 is logged
//   - anything else: 500
func respondBacktestError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		fieldErr    *validation.Error
		inputErr    *backtest.InputValidationError
		tooFewErr   *backtest.InsufficientInstrumentsError
		dataGapErr  *backtest.DataGapError
		errorDetail = err.Error()
	)

	switch {
	case errors.As(err, &fieldErr):
		response.RespondError(w, http.StatusBadRequest, "validation failed", fieldErr.Fields)
	case errors.As(err, &inputErr):
		response.RespondError(w, http.StatusBadRequest, "validation failed", inputErr.Fields)
	case errors.As(err, &tooFewErr):
		response.RespondError(w, http.StatusBadRequest, "not enough instruments", errorDetail)
	case errors.As(err, &dataGapErr):
		response.RespondError(w, http.StatusUnprocessableEntity, "insufficient historical data", map[string]string{
			"instrument":  dataGapErr.Instrument,
			"missingFrom": dataGapErr.MissingFrom.Format("2006-01-02"),
			"missingTo":   dataGapErr.MissingTo.Format("2006-01-02"),
			"message":     errorDetail,
		})
	case errors.Is(err, apperrors.ErrIndexNotFound):
		response.RespondError(w, http.StatusNotFound, apperrors.ErrIndexNotFound.Error(), errorDetail)
	case errors.Is(err, context.DeadlineExceeded):
		response.RespondError(w, http.StatusGatewayTimeout, "backtest timed out", errorDetail)
	case errors.Is(err, context.Canceled):
		log.Printf("%s %s %d client closed request", r.Method, sanitize(r.URL.Path), StatusClientClosedRequest)
	default:
		log.Printf("Backtest failed: %v", err)
		response.RespondError(w, http.StatusInternalServerError, apperrors.ErrFailedToRunBacktest.Error(), errorDetail)
	}
}

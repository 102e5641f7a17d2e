// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/response"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/apperrors"
	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/validation"
)

// ValidateIndexCodeMiddleware validates that the indexCode URL parameter is present
// and well formed (lowercase letters, digits and underscores).
// Returns 400 Bad Request if the index code is missing or invalid.
//
// Example usage in router:
//
//	r.Route("/indexes/{indexCode}", func(r chi.Router) {
//	    r.Use(middleware.ValidateIndexCodeMiddleware)
//	    r.Get("/", handler.Index)
//	})
func ValidateIndexCodeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "indexCode")

		if code == "" {
			response.RespondError(w, http.StatusBadRequest, "index code is required", "")
			return
		}

		if err := validation.ValidateIndexCode(code); err != nil {
			response.RespondError(w, http.StatusBadRequest, apperrors.ErrInvalidIndexCode.Error(), err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

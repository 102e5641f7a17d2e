package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/ndewijer/Portfolio-Backtest-Backend/internal/api/response"
)

// timeTokenWindow is the lifetime of a time token. The token of the previous
// window is still accepted so a token issued just before a boundary works.
const timeTokenWindow = 5 * time.Minute

// APIKeyMiddleware protects data maintenance routes. A request must carry the
// key from INTERNAL_API_KEY in X-API-Key and a current time token, as produced
// by GenerateTimeToken, in X-Time-Token.
//
// Returns 500 if INTERNAL_API_KEY is not set and 401 for a missing or wrong
// key or token.
func APIKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := os.Getenv("INTERNAL_API_KEY")
		if apiKey == "" {
			response.RespondError(w, http.StatusInternalServerError, "Internal server error", "Authentication not loaded")
			return
		}

		providedKey := r.Header.Get("X-API-Key")
		if providedKey == "" {
			response.RespondError(w, http.StatusUnauthorized, "Unauthorized", "Missing API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
			response.RespondError(w, http.StatusUnauthorized, "Unauthorized", "Invalid API key")
			return
		}

		timeToken := r.Header.Get("X-Time-Token")
		if timeToken == "" {
			response.RespondError(w, http.StatusUnauthorized, "Unauthorized", "Missing Time token")
			return
		}
		if !validTimeToken(apiKey, timeToken, time.Now()) {
			response.RespondError(w, http.StatusUnauthorized, "Unauthorized", "Time token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GenerateTimeToken returns the time token for apiKey valid now.
func GenerateTimeToken(apiKey string) string {
	return timeToken(apiKey, time.Now().Unix()/int64(timeTokenWindow.Seconds()))
}

func validTimeToken(apiKey, token string, now time.Time) bool {
	window := now.Unix() / int64(timeTokenWindow.Seconds())
	for _, w := range []int64{window, window - 1} {
		if hmac.Equal([]byte(token), []byte(timeToken(apiKey, w))) {
			return true
		}
	}
	return false
}

func timeToken(apiKey string, window int64) string {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write([]byte(strconv.FormatInt(window, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

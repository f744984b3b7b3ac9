package gatekeeper

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"banking-service/internal/util"
)

// rateLimitErrorBody is the 429 response contract.
type rateLimitErrorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Status        int    `json:"status"`
	Path          string `json:"path"`
	RateLimitType string `json:"rateLimitType"`
}

// deniedBody is the 401/403/404 response contract: a message and an
// ISO-8601 timestamp, never an internal error verbatim.
type deniedBody struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		util.Error("Failed to write response body", util.ErrorField(err))
	}
}

// WriteDenied writes the structured denial body used for 401, 403 and 404.
func WriteDenied(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, deniedBody{
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeRateLimited(w http.ResponseWriter, r *http.Request, policy Policy, retryAfter time.Duration) {
	w.Header().Set("Retry-After", formatSeconds(retryAfter))
	w.Header().Set("X-RateLimit-Type", policy.Name)
	writeJSON(w, http.StatusTooManyRequests, rateLimitErrorBody{
		Error:         "Too Many Requests",
		Message:       "Rate limit exceeded. Please try again later.",
		Status:        http.StatusTooManyRequests,
		Path:          r.URL.Path,
		RateLimitType: policy.Name,
	})
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

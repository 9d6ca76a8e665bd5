package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writeJSONMessagesError writes an Anthropic error envelope with the HTTP
// status the error type implies. A retry hint becomes a Retry-After header
// rounded up to whole seconds.
func writeJSONMessagesError(ctx context.Context, w http.ResponseWriter, errResp *types.ErrorResponse) {
	var status int
	switch errResp.Err.Type {
	case types.ErrorTypeInvalidRequest:
		status = http.StatusBadRequest
	case types.ErrorTypeAuthentication:
		status = http.StatusUnauthorized
	case types.ErrorTypePermission:
		status = http.StatusForbidden
	case types.ErrorTypeNotFound:
		status = http.StatusNotFound
	case types.ErrorTypeRequestTooLarge:
		status = http.StatusRequestEntityTooLarge
	case types.ErrorTypeRateLimit:
		status = http.StatusTooManyRequests
	case types.ErrorTypeOverloaded:
		// Anthropic reports overload as 529, outside the stdlib constants.
		status = 529
	default:
		status = http.StatusInternalServerError
	}

	if errResp.RetryAfter > 0 {
		secs := int64((errResp.RetryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}

	writeJSON(ctx, w, errResp, status)
}

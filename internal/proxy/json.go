package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nr1etech/xcorplatform-client/internal/credentials"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

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

// writeJSONError writes a JSON error response with the given status code.
// Similar to http.Error but returns JSON instead of plain text.
func writeJSONError(ctx context.Context, w http.ResponseWriter, message string, status int) {
	writeJSON(ctx, w, ErrorResponse{Error: message}, status)
}

// upstreamErrorHandler reports round-trip failures to the client. A failure
// to authenticate against the platform is answered with 401 so callers can
// distinguish it from an unreachable platform (502) and retry accordingly.
func upstreamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var authErr *credentials.AuthenticationError
	if errors.As(err, &authErr) {
		slog.ErrorContext(ctx, "platform authentication failed", "error", err)
		writeJSONError(ctx, w, "could not authenticate to platform", http.StatusUnauthorized)
		return
	}

	slog.ErrorContext(ctx, "platform request failed", "error", err)
	writeJSONError(ctx, w, "platform unreachable", http.StatusBadGateway)
}

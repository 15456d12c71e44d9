package credentials

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TransportError indicates the token endpoint could not be reached at all:
// connection failure, DNS failure, or a timed-out exchange.
type TransportError struct {
	err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("token endpoint unreachable: %v", e.err)
}

func (e *TransportError) Unwrap() error { return e.err }

// ProtocolError indicates the token endpoint responded, but with a
// non-success status or a body missing the required fields.
type ProtocolError struct {
	// StatusCode is the HTTP status of the response, or zero if the failure
	// occurred before a status was received.
	StatusCode int

	// Reason is a short human-readable description. It never contains
	// credentials; response bodies are reduced to their OAuth error code.
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token endpoint returned %d: %s", e.StatusCode, e.Reason)
	}
	return "token endpoint response invalid: " + e.Reason
}

// AuthenticationError is returned by Manager.AccessToken when a token fetch
// is required, fails, and no previously cached token is available to fall
// back on. Callers can use errors.As to distinguish authentication failures
// from ordinary API-call errors.
type AuthenticationError struct {
	err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("could not authenticate: %v", e.err)
}

func (e *AuthenticationError) Unwrap() error { return e.err }

// errorReason extracts a loggable description from a token endpoint error
// body. Standard OAuth error responses carry an "error" code and optional
// "error_description"; anything else is truncated rather than echoed in full.
func errorReason(body []byte) string {
	var payload struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		if payload.Description != "" {
			return payload.Error + ": " + payload.Description
		}
		return payload.Error
	}

	const maxReasonLen = 128
	reason := strings.TrimSpace(string(body))
	if len(reason) > maxReasonLen {
		// Drop any rune split by the cut rather than emit invalid UTF-8.
		reason = strings.ToValidUTF8(reason[:maxReasonLen], "") + "..."
	}
	if reason == "" {
		return "empty response body"
	}
	return reason
}

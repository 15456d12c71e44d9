package credentials

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestErrorReason(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "oauth error with description",
			body: `{"error": "invalid_client", "error_description": "unknown client"}`,
			want: "invalid_client: unknown client",
		},
		{
			name: "oauth error without description",
			body: `{"error": "invalid_scope"}`,
			want: "invalid_scope",
		},
		{
			name: "plain text",
			body: "  upstream exploded\n",
			want: "upstream exploded",
		},
		{
			name: "empty body",
			body: "",
			want: "empty response body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorReason([]byte(tt.body)); got != tt.want {
				t.Errorf("errorReason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorReasonTruncatesOnRuneBoundary(t *testing.T) {
	// 60 three-byte runes: the 128-byte cut lands mid-rune.
	body := strings.Repeat("€", 60)

	reason := errorReason([]byte(body))

	if !utf8.ValidString(reason) {
		t.Errorf("truncated reason is not valid UTF-8: %q", reason)
	}
	if !strings.HasSuffix(reason, "...") {
		t.Errorf("reason = %q, want truncation marker", reason)
	}
	if len(reason) > 128+len("...") {
		t.Errorf("reason is %d bytes, want at most %d", len(reason), 128+len("..."))
	}
}

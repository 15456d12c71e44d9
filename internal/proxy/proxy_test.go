package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/nr1etech/xcorplatform-client/internal/credentials"
)

func TestProxyAuthenticatesAndSanitizesRequests(t *testing.T) {
	var captured http.Header
	var capturedPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		capturedPath = r.URL.Path
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer upstream.Close()

	p, err := New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-proxy"}), upstream.URL+"/v1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	front := httptest.NewServer(p)
	defer front.Close()

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, front.URL+"/reports/daily", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	// Client-supplied credentials and unknown headers must not pass through.
	req.Header.Set("Authorization", "Bearer client-own-token")
	req.Header.Set("X-Internal-Secret", "leak")
	req.Header.Set("Accept", "application/json")

	resp, err := front.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if capturedPath != "/v1/reports/daily" {
		t.Errorf("upstream path = %q, want %q", capturedPath, "/v1/reports/daily")
	}
	if got := captured.Get("Authorization"); got != "Bearer tok-proxy" {
		t.Errorf("Authorization = %q, want proxy-issued bearer token", got)
	}
	if captured.Get("X-Internal-Secret") != "" {
		t.Error("disallowed header passed through to upstream")
	}
	if got := captured.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want pass-through", got)
	}
	if captured.Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id on outbound request")
	}
}

func TestProxyPreservesEncodedPathSegments(t *testing.T) {
	var capturedEscaped string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedEscaped = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer upstream.Close()

	p, err := New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-proxy"}), upstream.URL+"/v1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	front := httptest.NewServer(p)
	defer front.Close()

	// %2F must stay encoded; decoding it would split one segment into two.
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, front.URL+"/reports/2026%2F01", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := front.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if capturedEscaped != "/v1/reports/2026%2F01" {
		t.Errorf("upstream escaped path = %q, want %q", capturedEscaped, "/v1/reports/2026%2F01")
	}
}

// refusingExchanger simulates a token endpoint rejecting the credentials.
type refusingExchanger struct{}

func (refusingExchanger) Exchange(ctx context.Context) (*credentials.Grant, error) {
	return nil, &credentials.ProtocolError{StatusCode: 401, Reason: "invalid_client"}
}

func TestProxyDistinguishesAuthFailureFromUpstreamFailure(t *testing.T) {
	mgr, err := credentials.New(credentials.Config{
		ClientID:           "c",
		DisableAutoRefresh: true,
	}, credentials.WithExchanger(refusingExchanger{}))
	if err != nil {
		t.Fatalf("credentials.New: %v", err)
	}
	defer func() { _ = mgr.Close() }()

	p, err := New(mgr.TokenSource(), "https://api.xcorplatform.example")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	front := httptest.NewServer(p)
	defer front.Close()

	resp, err := front.Client().Get(front.URL + "/reports/daily")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for authentication failure", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, body)
	}
	if !strings.Contains(errResp.Error, "authenticate") {
		t.Errorf("error = %q, want an authentication message", errResp.Error)
	}
}

func TestNewRejectsInvalidUpstream(t *testing.T) {
	if _, err := New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), "://bad"); err == nil {
		t.Error("expected error for unparseable URL")
	}
	if _, err := New(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), "/just/a/path"); err == nil {
		t.Error("expected error for URL without host")
	}
}

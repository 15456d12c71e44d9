package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultExchangeTimeout bounds a single token endpoint exchange, including
// exchanges triggered during shutdown where no caller deadline applies.
const defaultExchangeTimeout = 30 * time.Second

// maxResponseBytes caps how much of a token endpoint response is read.
// Well-formed token responses are a few hundred bytes.
const maxResponseBytes = 1 << 20

// ExchangerOption configures an HTTPExchanger.
type ExchangerOption func(*HTTPExchanger)

// WithHTTPClient sets a custom HTTP client for token endpoint exchanges,
// e.g. for proxies or custom timeouts. If not provided, a client with a
// 30 second timeout is used.
func WithHTTPClient(client *http.Client) ExchangerOption {
	return func(e *HTTPExchanger) {
		e.client = client
	}
}

// HTTPExchanger exchanges client credentials for an access token over HTTP,
// per RFC 6749 section 4.4: a form-encoded POST answered with a JSON body
// carrying access_token and expires_in.
type HTTPExchanger struct {
	tokenURL string
	form     string
	client   *http.Client
}

// Compile-time check that HTTPExchanger implements Exchanger.
var _ Exchanger = (*HTTPExchanger)(nil)

// NewHTTPExchanger creates an HTTPExchanger for the given credential set.
func NewHTTPExchanger(cfg Config, opts ...ExchangerOption) *HTTPExchanger {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", cfg.ClientID)
	form.Set("client_secret", cfg.ClientSecret)
	if len(cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(cfg.Scopes, " "))
	}

	e := &HTTPExchanger{
		tokenURL: cfg.TokenURL,
		form:     form.Encode(),
		client:   &http.Client{Timeout: defaultExchangeTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exchange implements Exchanger. Transport-level failures are returned as
// *TransportError; non-success statuses and unusable bodies as
// *ProtocolError. The error never contains the client secret.
func (e *HTTPExchanger) Exchange(ctx context.Context) (*Grant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(e.form))
	if err != nil {
		return nil, &TransportError{err: fmt.Errorf("building token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		// err from http.Client.Do wraps the URL but not the form body, so
		// the secret cannot leak through it.
		return nil, &TransportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{err: fmt.Errorf("reading token response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Reason: errorReason(body)}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Reason: "malformed token response body"}
	}
	if payload.AccessToken == "" {
		return nil, &ProtocolError{StatusCode: resp.StatusCode, Reason: "token response missing access_token"}
	}

	return &Grant{
		AccessToken: payload.AccessToken,
		ExpiresIn:   time.Duration(payload.ExpiresIn) * time.Second,
	}, nil
}

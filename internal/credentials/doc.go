// Package credentials manages bearer access tokens for the XCor Platform
// client-credentials grant.
//
// The Manager owns all token state: it caches the current access token,
// refetches it when the expiry margin has been consumed, and keeps it fresh
// in the background so callers rarely pay the latency of a synchronous
// exchange.
//
// # Usage
//
//	mgr, err := credentials.New(credentials.Config{
//		ClientID:     "svc-reporting",
//		ClientSecret: secret,
//		TokenURL:     "https://auth.xcorplatform.com/oauth/token",
//		Scopes:       []string{"platform:read", "platform:write"},
//	})
//	// mgr.TokenSource() plugs into oauth2.Transport for outbound requests.
//
// Concurrent callers of AccessToken share a single in-flight exchange; the
// manager never issues duplicate network calls for the same expiry.
package credentials

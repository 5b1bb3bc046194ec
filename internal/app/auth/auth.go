/*
Package auth resolves account credentials to the session auth token the PM
protocol logs in with.

The token is the value of a response cookie scoped to the auth subdomain,
set by an ordinary HTML login form post. Absence of that cookie means the
credentials are invalid.
*/
package auth

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatango/internal/pkg/logx"
)

// CookieName is the response cookie carrying the auth token.
const CookieName = "auth.chatango.com"

// fetchAttempts is how many times a transport-level login failure is
// retried before giving up.
const fetchAttempts = 3

// Gateway resolves credentials to an auth token. An empty token with a nil
// error means the credentials are invalid.
type Gateway interface {
	FetchToken(username, password string) (string, error)
}

// HTTPGateway is the production Gateway, posting the login form over HTTP.
type HTTPGateway struct {
	// LoginURL is the form endpoint.
	LoginURL string

	// Client is the HTTP client used for the post. A default client with
	// a timeout is used when nil.
	Client *http.Client
}

// NewHTTPGateway constructs a gateway for the given login endpoint.
func NewHTTPGateway(loginURL string) *HTTPGateway {
	return &HTTPGateway{
		LoginURL: loginURL,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchToken posts the login form and extracts the auth cookie value.
func (g *HTTPGateway) FetchToken(username, password string) (string, error) {
	form := url.Values{
		"user_id":     {username},
		"password":    {password},
		"storecookie": {"on"},
		"checkerrors": {"yes"},
	}

	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		resp, err := g.client().PostForm(g.LoginURL, form)
		if err != nil {
			lastErr = err
			logx.Warn("Auth token fetch failed, retrying", "attempt", attempt)
			time.Sleep(time.Second)
			continue
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		return tokenFromHeaders(resp.Header), nil
	}

	return "", fmt.Errorf("auth token fetch failed after %d attempts: %w", fetchAttempts, lastErr)
}

func (g *HTTPGateway) client() *http.Client {
	if g.Client != nil {
		return g.Client
	}
	return http.DefaultClient
}

// tokenFromHeaders scans the Set-Cookie headers for the auth cookie and
// returns its value, or the empty string.
func tokenFromHeaders(header http.Header) string {
	for _, cookie := range header.Values("Set-Cookie") {
		if !strings.HasPrefix(cookie, CookieName+"=") {
			continue
		}
		value := cookie[len(CookieName)+1:]
		if i := strings.IndexByte(value, ';'); i >= 0 {
			value = value[:i]
		}
		return value
	}
	return ""
}

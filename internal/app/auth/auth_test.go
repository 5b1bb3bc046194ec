package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "on", r.PostFormValue("storecookie"))
		assert.Equal(t, "yes", r.PostFormValue("checkerrors"))

		if r.PostFormValue("user_id") == "alice" && r.PostFormValue("password") == "pw" {
			w.Header().Add("Set-Cookie", "id=abc; path=/")
			w.Header().Add("Set-Cookie", "auth.chatango.com=tok123; domain=.chatango.com; path=/")
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchToken(t *testing.T) {
	srv := loginServer(t)
	g := NewHTTPGateway(srv.URL)

	token, err := g.FetchToken("alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "tok123", token)
}

func TestFetchTokenInvalidCredentials(t *testing.T) {
	srv := loginServer(t)
	g := NewHTTPGateway(srv.URL)

	token, err := g.FetchToken("alice", "wrong")
	require.NoError(t, err, "a rejected login is not a transport failure")
	assert.Empty(t, token)
}

func TestTokenFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Add("Set-Cookie", "other=1; path=/")
	assert.Empty(t, tokenFromHeaders(h))

	h.Add("Set-Cookie", "auth.chatango.com=abc123")
	assert.Equal(t, "abc123", tokenFromHeaders(h))

	h = http.Header{}
	h.Add("Set-Cookie", "auth.chatango.com=xyz; HttpOnly")
	assert.Equal(t, "xyz", tokenFromHeaders(h))
}

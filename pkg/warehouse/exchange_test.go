package warehouse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExchanger_Exchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "sess-tok", r.FormValue("subject_token"))
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:token-exchange", r.FormValue("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"wh-token"}`))
	}))
	defer srv.Close()

	ex := NewHTTPExchanger(srv.URL, nil)
	tok, err := ex.Exchange(context.Background(), "sess-tok")
	require.NoError(t, err)
	assert.Equal(t, "wh-token", tok.Token)
	assert.Equal(t, "oauth", tok.Authenticator)
}

func TestHTTPExchanger_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ex := NewHTTPExchanger(srv.URL, nil)
	_, err := ex.Exchange(context.Background(), "sess-tok")
	assert.Error(t, err)
}

func TestHTTPExchanger_EmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ex := NewHTTPExchanger(srv.URL, nil)
	_, err := ex.Exchange(context.Background(), "sess-tok")
	assert.Error(t, err)
}

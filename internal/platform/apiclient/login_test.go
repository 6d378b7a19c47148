package apiclient

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/harvester-e2e/internal/document"
)

func TestLogin(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3-public/localProviders/local":
			assert.Equal(t, "login", r.URL.Query().Get("action"))
			assert.Empty(t, r.Header.Get("Authorization"))
			data, _ := io.ReadAll(r.Body)
			body, err := document.Decode(data)
			if assert.NoError(t, err) {
				assert.Equal(t, "user-abc", body.GetString("username"))
				assert.Equal(t, "json", body.GetString("responseType"))
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"token":"token-user"}`)
		default:
			assert.Equal(t, "Bearer token-user", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"type":"collection","data":[{"id":"p-1"}]}`)
		}
	}))

	user, err := c.Login(context.Background(), "user-abc", "secret")
	require.NoError(t, err)

	code, doc, err := user.Resource("v3/projects").List(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, doc.Items(), 1)
}

func TestLogin_Rejected(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","code":"Unauthorized"}`)
	}))

	_, err := c.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 401")
}

func TestLogin_NoToken(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{}`)
	}))

	_, err := c.Login(context.Background(), "admin", "pw")
	assert.ErrorContains(t, err, "no token")
}

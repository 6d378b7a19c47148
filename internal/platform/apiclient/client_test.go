package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/harvester-e2e/internal/document"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New("ftp://harvester.local")
	assert.Error(t, err)

	_, err = New("://nope")
	assert.Error(t, err)
}

func TestDo_DecodesAndAuthenticates(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/harvester/settings/server-version", r.URL.Path)
		_, _ = io.WriteString(w, `{"id":"server-version","value":"v1.2.1"}`)
	}), WithToken("token-abc"))

	code, doc, err := c.Do(context.Background(), http.MethodGet, "v1/harvester/settings/server-version", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "v1.2.1", doc.GetString("value"))
}

func TestDo_NonSuccessIsNotAnError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"type":"error","status":404,"code":"NotFound"}`)
	}))

	code, doc, err := c.Do(context.Background(), http.MethodGet, "/v1/anything/missing", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NotFound", doc.GetString("code"))
}

func TestDo_NonJSONBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>502 Bad Gateway</html>\n")
	}))

	code, doc, err := c.Do(context.Background(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "<html>502 Bad Gateway</html>", doc.GetString("message"))
}

func TestDo_TransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, _, err = c.Do(context.Background(), http.MethodGet, "/v1", nil)
	assert.Error(t, err)
}

func TestDo_Bodies(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		got []map[string]any
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var m map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		mu.Lock()
		got = append(got, m)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))

	ctx := context.Background()
	_, _, err := c.Do(ctx, http.MethodPost, "/a", document.Document{"kind": "doc"})
	require.NoError(t, err)
	_, _, err = c.Do(ctx, http.MethodPost, "/a", []byte(`{"kind":"raw"}`))
	require.NoError(t, err)
	_, _, err = c.Do(ctx, http.MethodPost, "/a", struct {
		Kind string `json:"kind"`
	}{Kind: "struct"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, "doc", got[0]["kind"])
	assert.Equal(t, "raw", got[1]["kind"])
	assert.Equal(t, "struct", got[2]["kind"])
}

func TestDo_AbsoluteURL(t *testing.T) {
	t.Parallel()

	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"path":"`+r.URL.Path+`"}`)
	}))
	t.Cleanup(other.Close)

	c, err := New("https://harvester.invalid")
	require.NoError(t, err)

	fetch := c.FetchURL(other.URL + "/v1/harvester/networks/default/vlan-network-100")
	code, doc, err := fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "/v1/harvester/networks/default/vlan-network-100", doc.GetString("path"))
}

func TestResource_Paths(t *testing.T) {
	t.Parallel()

	type call struct{ method, uri string }
	var (
		mu    sync.Mutex
		calls []call
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, call{r.Method, r.URL.RequestURI()})
		mu.Unlock()
		_, _ = io.WriteString(w, `{}`)
	}))

	ctx := context.Background()
	images := c.Resource("/v1/harvester/harvesterhci.io.virtualmachineimages/")
	assert.Equal(t, "/v1/harvester/harvesterhci.io.virtualmachineimages", images.Path())

	_, _, _ = images.List(ctx, url.Values{"limit": {"10"}})
	_, _, _ = images.Get(ctx, "default/ubuntu")
	_, _, _ = images.Create(ctx, document.Document{})
	_, _, _ = images.Update(ctx, "default/ubuntu", document.Document{})
	_, _, _ = images.Delete(ctx, "default/ubuntu")
	_, _, _ = c.Resource("v3/clusters").Action(ctx, "c-abc", "generateKubeconfig", nil)
	_, _, _ = images.Sub("default").List(ctx, nil)
	_, _, _ = images.Fetch("default/ubuntu")(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []call{
		{"GET", "/v1/harvester/harvesterhci.io.virtualmachineimages?limit=10"},
		{"GET", "/v1/harvester/harvesterhci.io.virtualmachineimages/default/ubuntu"},
		{"POST", "/v1/harvester/harvesterhci.io.virtualmachineimages"},
		{"PUT", "/v1/harvester/harvesterhci.io.virtualmachineimages/default/ubuntu"},
		{"DELETE", "/v1/harvester/harvesterhci.io.virtualmachineimages/default/ubuntu"},
		{"POST", "/v3/clusters/c-abc?action=generateKubeconfig"},
		{"GET", "/v1/harvester/harvesterhci.io.virtualmachineimages/default"},
		{"GET", "/v1/harvester/harvesterhci.io.virtualmachineimages/default/ubuntu"},
	}, calls)
}

func TestWithCredentials(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		auth []string
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = io.WriteString(w, `{}`)
	}), WithToken("admin"))

	user := c.WithCredentials("user-token")
	_, _, _ = user.Do(context.Background(), http.MethodGet, "/v3/projects", nil)
	_, _, _ = c.Do(context.Background(), http.MethodGet, "/v3/projects", nil)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer user-token", "Bearer admin"}, auth)
}

func TestWithInsecureSkipVerify(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	t.Cleanup(srv.Close)

	strict, err := New(srv.URL)
	require.NoError(t, err)
	_, _, err = strict.Do(context.Background(), http.MethodGet, "/", nil)
	assert.Error(t, err, "self-signed certificate is rejected by default")

	lax, err := New(srv.URL, WithInsecureSkipVerify(true))
	require.NoError(t, err)
	_, doc, err := lax.Do(context.Background(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	assert.True(t, doc.GetBool("ok"))
}

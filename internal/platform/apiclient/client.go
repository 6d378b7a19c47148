package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/json"

	"github.com/imamik/harvester-e2e/internal/document"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodySize    = 16 << 20
	userAgent      = "harvester-e2e"
)

// Client issues authenticated requests against one API endpoint.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	log        logr.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithInsecureSkipVerify disables TLS verification when skip is true.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		if !skip {
			return
		}
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // Test clusters use self-signed certificates
		c.httpClient = &http.Client{Transport: tr, Timeout: defaultTimeout}
	}
}

// WithLogger sets the request logger. Requests are logged at V(2).
func WithLogger(l logr.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a client for the API rooted at endpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q must be an http or https URL", endpoint)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the base URL.
func (c *Client) Endpoint() string {
	return c.baseURL.String()
}

// WithCredentials returns a copy of the client that authenticates with token.
func (c *Client) WithCredentials(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Do sends a request and decodes the JSON response. path is either relative
// to the endpoint or an absolute URL such as a links.view value. body may be
// nil, a []byte, or any JSON-serializable value.
func (c *Client) Do(ctx context.Context, method, path string, body any) (int, document.Document, error) {
	code, raw, err := c.DoRaw(ctx, method, path, body)
	if err != nil {
		return code, nil, err
	}

	doc, err := document.Decode(raw)
	if err != nil {
		// Proxies answer with HTML or plain text; keep the body for diagnostics.
		doc = document.Document{"message": strings.TrimSpace(string(raw))}
	}
	return code, doc, nil
}

// DoRaw sends a request and returns the undecoded response body.
func (c *Client) DoRaw(ctx context.Context, method, path string, body any) (int, []byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response of %s %s: %w", method, req.URL.Path, err)
	}

	c.log.V(2).Info("API request", "method", method, "url", req.URL.String(),
		"status", resp.StatusCode, "duration", time.Since(start).String())
	return resp.StatusCode, data, nil
}

func (c *Client) resolve(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	case document.Document:
		data, err := b.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/util/converge"
)

// Resource is a collection endpoint such as
// /v1/harvester/harvesterhci.io.virtualmachineimages. Items are addressed
// by id, which is either "name" or "namespace/name".
type Resource struct {
	client *Client
	path   string
}

// Resource returns the collection at path.
func (c *Client) Resource(path string) *Resource {
	return &Resource{client: c, path: "/" + strings.Trim(path, "/")}
}

// Path returns the collection path.
func (r *Resource) Path() string {
	return r.path
}

// ItemPath returns the path of the item with the given id.
func (r *Resource) ItemPath(id string) string {
	return r.path + "/" + strings.Trim(id, "/")
}

// Sub returns a nested collection, for example a namespace-scoped listing.
func (r *Resource) Sub(segment string) *Resource {
	return r.client.Resource(r.ItemPath(segment))
}

// List fetches the collection. params may be nil.
func (r *Resource) List(ctx context.Context, params url.Values) (int, document.Document, error) {
	p := r.path
	if len(params) > 0 {
		p += "?" + params.Encode()
	}
	return r.client.Do(ctx, http.MethodGet, p, nil)
}

// Get fetches one item.
func (r *Resource) Get(ctx context.Context, id string) (int, document.Document, error) {
	return r.client.Do(ctx, http.MethodGet, r.ItemPath(id), nil)
}

// Create posts a new item to the collection.
func (r *Resource) Create(ctx context.Context, body any) (int, document.Document, error) {
	return r.client.Do(ctx, http.MethodPost, r.path, body)
}

// Update replaces an item.
func (r *Resource) Update(ctx context.Context, id string, body any) (int, document.Document, error) {
	return r.client.Do(ctx, http.MethodPut, r.ItemPath(id), body)
}

// Delete removes an item.
func (r *Resource) Delete(ctx context.Context, id string) (int, document.Document, error) {
	return r.client.Do(ctx, http.MethodDelete, r.ItemPath(id), nil)
}

// Action invokes a Rancher-style action (POST <item>?action=<name>).
func (r *Resource) Action(ctx context.Context, id, action string, body any) (int, document.Document, error) {
	return r.client.Do(ctx, http.MethodPost, r.ItemPath(id)+"?action="+url.QueryEscape(action), body)
}

// Fetch returns a converge fetch that GETs the item.
func (r *Resource) Fetch(id string) converge.Fetch {
	return func(ctx context.Context) (int, document.Document, error) {
		return r.Get(ctx, id)
	}
}

// FetchURL returns a converge fetch that GETs an absolute or relative URL,
// typically a links.view value.
func (c *Client) FetchURL(link string) converge.Fetch {
	return func(ctx context.Context) (int, document.Document, error) {
		return c.Do(ctx, http.MethodGet, link, nil)
	}
}

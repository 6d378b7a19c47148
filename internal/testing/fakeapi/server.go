// Package fakeapi is an in-memory stand-in for the Harvester and Rancher
// REST APIs.
//
// Collections are registered with a [Behavior] that controls how items
// converge (ready after N reads), how deletes are blocked, and how long a
// deleted item stays visible. Requests are recorded so tests can assert on
// exact fetch counts.
package fakeapi

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"

	"k8s.io/apimachinery/pkg/util/json"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/platform/apiclient"
)

// ActionFunc handles POST <item>?action=<name>.
type ActionFunc func(item, body document.Document) (int, document.Document)

// Behavior controls how items of a collection evolve.
type Behavior struct {
	// OnCreate mutates a new item before it is stored, e.g. to set an
	// initial status.
	OnCreate func(doc document.Document)
	// ReadyAfter is the number of item GETs after which Converge is applied.
	ReadyAfter int
	// Converge mutates the item into its ready state.
	Converge func(doc document.Document)
	// CreateCode overrides the status returned on create (default 201).
	CreateCode int
	// DeleteBlocked is the number of DELETEs answered with 400 before the
	// delete is accepted.
	DeleteBlocked int
	// GoneAfter is the number of GETs a deleted item remains visible.
	GoneAfter int
	// Actions are invoked for POST <item>?action=<name>.
	Actions map[string]ActionFunc
}

// Request is a recorded API call.
type Request struct {
	Method string
	Path   string
}

type item struct {
	doc      document.Document
	gets     int
	ready    bool
	deleting bool
	goneIn   int
}

type collection struct {
	path     string
	behavior Behavior
	items    map[string]*item
	blocked  map[string]int
}

// Server is the fake API.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	mux         *http.ServeMux
	collections map[string]*collection
	requests    []Request
}

// New starts a fake API server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		mux:         http.NewServeMux(),
		collections: map[string]*collection{},
	}
	s.mux.HandleFunc("/", s.serveCollection)
	s.Server = httptest.NewServer(http.HandlerFunc(s.record))
	t.Cleanup(s.Server.Close)
	return s
}

// Client returns an API client pointed at the server.
func (s *Server) Client(t testing.TB, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	c, err := apiclient.New(s.URL, append([]apiclient.Option{apiclient.WithToken("fake-token")}, opts...)...)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return c
}

// Collection registers a collection path with its behavior.
func (s *Server) Collection(path string, b Behavior) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path = "/" + strings.Trim(path, "/")
	s.collections[path] = &collection{
		path:     path,
		behavior: b,
		items:    map[string]*item{},
		blocked:  map[string]int{},
	}
}

// Route registers a custom handler, taking precedence over collections.
func (s *Server) Route(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, h)
}

// Seed stores an item as if it had been created and converged.
func (s *Server) Seed(path string, doc document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.mustCollection(path)
	id := c.assignID(doc, s.URL)
	c.items[id] = &item{doc: doc, ready: true}
}

// Object returns a copy of a stored item.
func (s *Server) Object(path, id string) (document.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.mustCollection(path)
	it, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return clone(it.doc), true
}

// Mutate applies fn to a stored item.
func (s *Server) Mutate(path, id string, fn func(doc document.Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.mustCollection(path).items[id]; ok {
		fn(it.doc)
	}
}

// Remove deletes a stored item immediately, as a controller finishing a
// cascade would.
func (s *Server) Remove(path, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mustCollection(path).items, id)
}

// Len returns the number of stored items in a collection.
func (s *Server) Len(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mustCollection(path).items)
}

// Requests returns the recorded calls.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many recorded calls match method and path exactly.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path})
	s.mu.Unlock()
	s.mux.ServeHTTP(w, r)
}

func (s *Server) mustCollection(path string) *collection {
	c, ok := s.collections["/"+strings.Trim(path, "/")]
	if !ok {
		panic(fmt.Sprintf("fakeapi: collection %s not registered", path))
	}
	return c
}

// lookup finds the longest registered collection prefix of path.
func (s *Server) lookup(path string) (*collection, string) {
	var best *collection
	for p, c := range s.collections {
		if path != p && !strings.HasPrefix(path, p+"/") {
			continue
		}
		if best == nil || len(p) > len(best.path) {
			best = c
		}
	}
	if best == nil {
		return nil, ""
	}
	return best, strings.Trim(strings.TrimPrefix(path, best.path), "/")
}

func (s *Server) serveCollection(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, id := s.lookup(r.URL.Path)
	if c == nil {
		writeJSON(w, http.StatusNotFound, notFound(r.URL.Path))
		return
	}

	var body document.Document
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		if doc, err := document.Decode(data); err == nil {
			body = doc
		} else {
			writeJSON(w, http.StatusUnprocessableEntity, document.Document{"type": "error", "message": err.Error()})
			return
		}
	}

	switch {
	case r.Method == http.MethodPost && id == "":
		s.create(w, c, body)
	case r.Method == http.MethodGet && (id == "" || c.isNamespace(id)):
		c.list(w, id)
	case r.Method == http.MethodGet:
		c.get(w, id)
	case r.Method == http.MethodPut:
		c.update(w, id, body)
	case r.Method == http.MethodDelete:
		c.remove(w, id)
	case r.Method == http.MethodPost && r.URL.Query().Get("action") != "":
		c.action(w, id, r.URL.Query().Get("action"), body)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, document.Document{"type": "error", "message": r.Method + " not allowed"})
	}
}

func (s *Server) create(w http.ResponseWriter, c *collection, body document.Document) {
	if body == nil {
		body = document.Document{}
	}
	if name := body.GetString("metadata.name"); name == "" && body.GetString("metadata.generateName") != "" {
		_ = body.Set("metadata.name", fmt.Sprintf("%s%05d", body.GetString("metadata.generateName"), len(s.requests)))
	}
	if body.Name() == "" {
		// Norman collections (node pools, role bindings) let the server pick ids.
		body["name"] = fmt.Sprintf("%s-%05d", path.Base(c.path), len(s.requests))
	}

	id := c.assignID(body, s.URL)
	if _, exists := c.items[id]; exists {
		writeJSON(w, http.StatusConflict, document.Document{"type": "error", "code": "AlreadyExists", "message": id + " already exists"})
		return
	}

	if c.behavior.OnCreate != nil {
		c.behavior.OnCreate(body)
	}
	c.items[id] = &item{doc: body}
	if c.behavior.ReadyAfter == 0 && c.behavior.Converge == nil {
		c.items[id].ready = true
	}

	code := c.behavior.CreateCode
	if code == 0 {
		code = http.StatusCreated
	}
	writeJSON(w, code, body)
}

func (c *collection) assignID(doc document.Document, base string) string {
	id := doc.Name()
	if ns := doc.GetString("metadata.namespace"); ns != "" {
		id = ns + "/" + id
	}
	doc["id"] = id
	_ = doc.Set("links.view", base+c.path+"/"+id)
	return id
}

func (c *collection) isNamespace(id string) bool {
	if strings.Contains(id, "/") {
		return false
	}
	if _, ok := c.items[id]; ok {
		return false
	}
	for _, it := range c.items {
		if it.doc.GetString("metadata.namespace") == id {
			return true
		}
	}
	return false
}

func (c *collection) list(w http.ResponseWriter, namespace string) {
	ids := make([]string, 0, len(c.items))
	for id, it := range c.items {
		if namespace != "" && it.doc.GetString("metadata.namespace") != namespace {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data := make([]any, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]any(clone(c.items[id].doc)))
	}
	writeJSON(w, http.StatusOK, document.Document{"type": "collection", "data": data})
}

func (c *collection) get(w http.ResponseWriter, id string) {
	it, ok := c.items[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, notFound(id))
		return
	}

	if it.deleting {
		if it.goneIn <= 0 {
			delete(c.items, id)
			writeJSON(w, http.StatusNotFound, notFound(id))
			return
		}
		it.goneIn--
	}

	it.gets++
	if !it.ready && it.gets >= c.behavior.ReadyAfter {
		if c.behavior.Converge != nil {
			c.behavior.Converge(it.doc)
		}
		it.ready = true
	}
	writeJSON(w, http.StatusOK, it.doc)
}

func (c *collection) update(w http.ResponseWriter, id string, body document.Document) {
	it, ok := c.items[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, notFound(id))
		return
	}
	body["id"] = id
	body["links"] = it.doc["links"]
	it.doc = body
	writeJSON(w, http.StatusOK, body)
}

func (c *collection) remove(w http.ResponseWriter, id string) {
	it, ok := c.items[id]
	if !ok || (it.deleting && it.goneIn <= 0) {
		writeJSON(w, http.StatusNotFound, notFound(id))
		return
	}

	if c.blocked[id] < c.behavior.DeleteBlocked {
		c.blocked[id]++
		writeJSON(w, http.StatusBadRequest, document.Document{
			"type":    "error",
			"code":    "InvalidBodyContent",
			"message": id + " is still in use",
		})
		return
	}

	if c.behavior.GoneAfter > 0 {
		if !it.deleting {
			it.deleting = true
			it.goneIn = c.behavior.GoneAfter
			_ = it.doc.Set("metadata.deletionTimestamp", "2024-01-01T00:00:00Z")
		}
	} else {
		delete(c.items, id)
	}
	writeJSON(w, http.StatusOK, it.doc)
}

func (c *collection) action(w http.ResponseWriter, id, name string, body document.Document) {
	it, ok := c.items[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, notFound(id))
		return
	}
	fn, ok := c.behavior.Actions[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, document.Document{"type": "error", "message": "unknown action " + name})
		return
	}
	code, out := fn(it.doc, body)
	writeJSON(w, code, out)
}

func notFound(what string) document.Document {
	return document.Document{"type": "error", "status": int64(404), "code": "NotFound", "message": what + " not found"}
}

// WriteJSON writes doc with the given status. It is exported for custom
// routes.
func WriteJSON(w http.ResponseWriter, code int, doc any) {
	writeJSON(w, code, doc)
}

func writeJSON(w http.ResponseWriter, code int, doc any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(doc)
}

func clone(doc document.Document) document.Document {
	data, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	out, _ := document.Decode(data)
	return out
}

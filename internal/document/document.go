package document

import (
	"bytes"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/util/json"
	"k8s.io/client-go/util/jsonpath"
)

// maxStringLen bounds the rendering used in error messages and logs.
const maxStringLen = 512

// Document is a decoded JSON object as returned by the API.
type Document map[string]any

// Decode parses a JSON object. An empty body decodes to a nil Document.
func Decode(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return Document(m), nil
}

// Encode renders the document as JSON.
func (d Document) Encode() ([]byte, error) {
	return json.Marshal(map[string]any(d))
}

// From converts a typed object (for example a corev1.PersistentVolumeClaim)
// into a Document.
func From(obj any) (Document, error) {
	m, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("convert to document: %w", err)
	}
	return Document(m), nil
}

// Into converts the document into a typed object. Unknown fields are ignored.
func (d Document) Into(obj any) error {
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(d, obj); err != nil {
		return fmt.Errorf("convert document: %w", err)
	}
	return nil
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// Get returns the value at a dotted path.
func (d Document) Get(path string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, found, err := unstructured.NestedFieldNoCopy(d, splitPath(path)...)
	if err != nil || !found {
		return nil, false
	}
	return v, true
}

// Has reports whether a non-nil value exists at path.
func (d Document) Has(path string) bool {
	v, ok := d.Get(path)
	return ok && v != nil
}

// GetString returns the string at path, or "" if missing or not a string.
func (d Document) GetString(path string) string {
	v, _ := d.Get(path)
	s, _ := v.(string)
	return s
}

// GetBool returns the bool at path, or false if missing or not a bool.
func (d Document) GetBool(path string) bool {
	v, _ := d.Get(path)
	b, _ := v.(bool)
	return b
}

// GetInt64 returns the integer at path. Floats with an integral value are
// accepted since some endpoints render counters as 100.0.
func (d Document) GetInt64(path string) (int64, bool) {
	v, ok := d.Get(path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// GetMap returns the object at path as a Document.
func (d Document) GetMap(path string) Document {
	v, _ := d.Get(path)
	m, _ := v.(map[string]any)
	return Document(m)
}

// GetSlice returns the array at path.
func (d Document) GetSlice(path string) []any {
	v, _ := d.Get(path)
	s, _ := v.([]any)
	return s
}

// Items returns the entries of a collection response. Rancher collections
// use "data", Kubernetes lists use "items".
func (d Document) Items() []Document {
	raw := d.GetSlice("data")
	if raw == nil {
		raw = d.GetSlice("items")
	}

	items := make([]Document, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]any); ok {
			items = append(items, Document(m))
		}
	}
	return items
}

// Set stores value at a dotted path, creating intermediate objects.
func (d Document) Set(path string, value any) error {
	fields := splitPath(path)
	if len(fields) == 0 {
		return fmt.Errorf("empty path")
	}

	cur := map[string]any(d)
	for i, f := range fields[:len(fields)-1] {
		next, ok := cur[f]
		if !ok || next == nil {
			m := map[string]any{}
			cur[f] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is %T, not an object", strings.Join(fields[:i+1], "."), next)
		}
		cur = m
	}
	cur[fields[len(fields)-1]] = value
	return nil
}

// Name returns metadata.name, falling back to the top-level name used by
// the Rancher v3 API.
func (d Document) Name() string {
	if n := d.GetString("metadata.name"); n != "" {
		return n
	}
	return d.GetString("name")
}

// Namespace returns metadata.namespace.
func (d Document) Namespace() string {
	if ns := d.GetString("metadata.namespace"); ns != "" {
		return ns
	}
	return d.GetString("namespaceId")
}

// ID returns the API id, or namespace/name when the id is absent.
func (d Document) ID() string {
	if id := d.GetString("id"); id != "" {
		return id
	}
	if ns := d.Namespace(); ns != "" {
		return ns + "/" + d.Name()
	}
	return d.Name()
}

// Annotation returns a metadata annotation. Annotation keys contain dots,
// so they cannot be reached with a dotted path.
func (d Document) Annotation(key string) string {
	s, _ := d.GetMap("metadata.annotations")[key].(string)
	return s
}

// Label returns a metadata label.
func (d Document) Label(key string) string {
	s, _ := d.GetMap("metadata.labels")[key].(string)
	return s
}

// JSONPath evaluates a kubectl-style template such as "{.status.phase}".
func (d Document) JSONPath(template string) (string, error) {
	jp := jsonpath.New("document")
	if err := jp.Parse(template); err != nil {
		return "", fmt.Errorf("parse jsonpath %q: %w", template, err)
	}

	var buf bytes.Buffer
	if err := jp.Execute(&buf, map[string]any(d)); err != nil {
		return "", fmt.Errorf("evaluate jsonpath %q: %w", template, err)
	}
	return buf.String(), nil
}

// String renders the document compactly for diagnostics.
func (d Document) String() string {
	if d == nil {
		return "<nil>"
	}
	data, err := d.Encode()
	if err != nil {
		return fmt.Sprintf("<unencodable document: %v>", err)
	}
	if len(data) > maxStringLen {
		return string(data[:maxStringLen]) + "..."
	}
	return string(data)
}

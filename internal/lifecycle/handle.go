package lifecycle

import (
	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/util/converge"
)

// Handle identifies a remote resource and knows how to fetch it.
type Handle struct {
	Name      string
	Namespace string
	Fetch     converge.Fetch
}

// HandleFor builds a handle from a created document.
func HandleFor(doc document.Document, fetch converge.Fetch) Handle {
	return Handle{Name: doc.Name(), Namespace: doc.GetString("metadata.namespace"), Fetch: fetch}
}

// ID returns "namespace/name", or just the name for cluster-scoped
// resources.
func (h Handle) ID() string {
	if h.Namespace == "" {
		return h.Name
	}
	return h.Namespace + "/" + h.Name
}

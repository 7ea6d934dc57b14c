package manager

import (
	"encoding/json"
	"sync"
)

// TemplateRegistry holds opaque task template blobs by id. Workers fetch
// templates on demand via templateRequest; the engine never inspects the
// blob contents.
type TemplateRegistry struct {
	mu        sync.RWMutex
	templates map[string]json.RawMessage
}

func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[string]json.RawMessage),
	}
}

// Register stores a template blob under the given id, replacing any
// previous version.
func (r *TemplateRegistry) Register(templateID string, data json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[templateID] = data
}

// Get returns the template blob, or ErrTemplateNotFound.
func (r *TemplateRegistry) Get(templateID string) (json.RawMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.templates[templateID]
	if !ok {
		return nil, NewErrTemplateNotFound(templateID)
	}
	return data, nil
}

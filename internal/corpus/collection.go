package corpus

import (
	"sync"
)

// Collection is the live, growing corpus. Readers take immutable snapshots;
// writers append under the lock.
type Collection struct {
	mu      sync.RWMutex
	docs    []Document
	names   map[string]struct{}
	current *Corpus
	version uint64
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{
		names:   make(map[string]struct{}),
		current: &Corpus{},
	}
}

// Add appends documents whose names are not yet present and returns how many
// were added. Re-adding a known name is a no-op so replayed ingest events are
// harmless.
func (c *Collection) Add(docs ...Document) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, d := range docs {
		if d.Name == "" {
			continue
		}
		if _, exists := c.names[d.Name]; exists {
			continue
		}
		c.names[d.Name] = struct{}{}
		c.docs = append(c.docs, d)
		added++
	}
	if added > 0 {
		// Snapshots share the backing array but never see past their length.
		c.current = &Corpus{docs: c.docs[:len(c.docs):len(c.docs)]}
		c.version++
	}
	return added
}

// Snapshot returns the current immutable corpus.
func (c *Collection) Snapshot() *Corpus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Version increases every time Add changes the corpus.
func (c *Collection) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Current returns the snapshot together with the version it belongs to.
func (c *Collection) Current() (*Corpus, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.version
}

// Has reports whether a document named name has been added.
func (c *Collection) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.names[name]
	return ok
}

// Len returns the number of documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

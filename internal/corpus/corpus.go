package corpus

import (
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// Corpus is an ordered, immutable collection of uniquely named documents.
type Corpus struct {
	docs      []Document
	indexOnce sync.Once
	index     map[string]int
}

// New builds a corpus. Names must be non-empty and unique.
func New(docs ...Document) (*Corpus, error) {
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.Name) == "" {
			return nil, apperrors.InvalidInput("document %d has no name", i)
		}
		if _, dup := seen[d.Name]; dup {
			return nil, apperrors.Newf(apperrors.ErrDocumentExists, 409, "duplicate document name %q", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return &Corpus{docs: append([]Document(nil), docs...)}, nil
}

// Len returns the number of documents.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.docs)
}

// Doc returns the i-th document.
func (c *Corpus) Doc(i int) Document {
	return c.docs[i]
}

// Docs returns a copy of the document slice.
func (c *Corpus) Docs() []Document {
	return append([]Document(nil), c.docs...)
}

// Names returns document names in corpus order.
func (c *Corpus) Names() []string {
	names := make([]string, len(c.docs))
	for i, d := range c.docs {
		names[i] = d.Name
	}
	return names
}

// Lookup finds a document by name.
func (c *Corpus) Lookup(name string) (Document, bool) {
	c.indexOnce.Do(func() {
		c.index = make(map[string]int, len(c.docs))
		for i, d := range c.docs {
			c.index[d.Name] = i
		}
	})
	i, ok := c.index[name]
	if !ok {
		return Document{}, false
	}
	return c.docs[i], true
}

// Subset returns the documents for which keep reports true, in order.
func (c *Corpus) Subset(keep func(Document) bool) *Corpus {
	out := make([]Document, 0, len(c.docs))
	for _, d := range c.docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return &Corpus{docs: out}
}

// HasVar reports whether any document carries the metadata key.
func (c *Corpus) HasVar(key string) bool {
	for _, d := range c.docs {
		if _, ok := d.meta[key]; ok {
			return true
		}
	}
	return false
}

// VarValues returns the distinct values of key in order of first appearance.
func (c *Corpus) VarValues(key string) []string {
	seen := make(map[string]struct{})
	var values []string
	for _, d := range c.docs {
		v, ok := d.meta[key]
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values
}

// Tokens tokenizes every document with opts.
func (c *Corpus) Tokens(opts tokenizer.Options) [][]tokenizer.Token {
	out := make([][]tokenizer.Token, len(c.docs))
	for i, d := range c.docs {
		out[i] = tokenizer.Tokenize(d.Text, opts)
	}
	return out
}

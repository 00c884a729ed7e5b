// Package corpus holds the documents every analysis starts from. Documents
// are immutable once constructed; a Corpus is an ordered, immutable view over
// them, and a Collection is the concurrency-safe holder of the live corpus.
package corpus

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// Document is a text plus its metadata variables (Year, President, ...).
type Document struct {
	ID        string
	Name      string
	Text      string
	CreatedAt time.Time
	meta      map[string]string
}

// NewDocument copies meta so later changes by the caller cannot reach the
// document.
func NewDocument(name, text string, meta map[string]string) Document {
	return Document{
		Name: name,
		Text: text,
		meta: maps.Clone(meta),
	}
}

// Var returns the value of a metadata variable.
func (d Document) Var(key string) (string, bool) {
	v, ok := d.meta[key]
	return v, ok
}

// Meta returns a copy of the metadata variables.
func (d Document) Meta() map[string]string {
	return maps.Clone(d.meta)
}

// VarKeys returns the metadata keys in sorted order.
func (d Document) VarKeys() []string {
	return slices.Sorted(maps.Keys(d.meta))
}

type documentJSON struct {
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name"`
	Text      string            `json:"text"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := documentJSON{ID: d.ID, Name: d.Name, Text: d.Text, Meta: d.meta}
	if !d.CreatedAt.IsZero() {
		out.CreatedAt = &d.CreatedAt
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = NewDocument(in.Name, in.Text, in.Meta)
	d.ID = in.ID
	if in.CreatedAt != nil {
		d.CreatedAt = *in.CreatedAt
	}
	return nil
}

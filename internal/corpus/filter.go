package corpus

import (
	"slices"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// Range bounds a numeric metadata variable. Both ends are inclusive and
// either may be nil.
type Range struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Filter selects documents by name and metadata. All conditions must hold.
type Filter struct {
	Names  []string            `json:"names,omitempty" yaml:"names,omitempty"`
	Equals map[string][]string `json:"equals,omitempty" yaml:"equals,omitempty"`
	Ranges map[string]Range    `json:"ranges,omitempty" yaml:"ranges,omitempty"`
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return len(f.Names) == 0 && len(f.Equals) == 0 && len(f.Ranges) == 0
}

// Filter applies f. Referencing a metadata key no document carries is an
// invalid-group error; a filter that matches nothing is an empty-result error.
func (c *Corpus) Filter(f Filter) (*Corpus, error) {
	if f.IsZero() {
		return c, nil
	}
	for key := range f.Equals {
		if !c.HasVar(key) {
			return nil, apperrors.InvalidGroup("no document has metadata variable %q", key)
		}
	}
	for key := range f.Ranges {
		if !c.HasVar(key) {
			return nil, apperrors.InvalidGroup("no document has metadata variable %q", key)
		}
	}
	out := c.Subset(func(d Document) bool {
		if len(f.Names) > 0 && !slices.Contains(f.Names, d.Name) {
			return false
		}
		for key, allowed := range f.Equals {
			v, ok := d.Var(key)
			if !ok || !slices.Contains(allowed, v) {
				return false
			}
		}
		for key, r := range f.Ranges {
			v, ok := d.Var(key)
			if !ok {
				return false
			}
			x, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return false
			}
			if r.Min != nil && x < *r.Min {
				return false
			}
			if r.Max != nil && x > *r.Max {
				return false
			}
		}
		return true
	})
	if out.Len() == 0 {
		return nil, apperrors.EmptyResult("filter matched no documents")
	}
	return out, nil
}

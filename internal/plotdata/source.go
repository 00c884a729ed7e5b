// Package plotdata projects statistics and model fits onto plain coordinate
// tables for an external renderer. Nothing here draws; a Table is the whole
// output.
package plotdata

import (
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/kwic"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/scaling"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/textstat"
)

// Kind names what a Source holds and what a Table shows.
type Kind string

const (
	KindFrequency     Kind = "frequency"
	KindKeyness       Kind = "keyness"
	KindScaleDocs     Kind = "scale_documents"
	KindScaleFeatures Kind = "scale_features"
	KindDispersion    Kind = "dispersion"
	KindWordcloud     Kind = "wordcloud"
)

// Level selects which side of a scaling fit to plot.
type Level string

const (
	LevelDocuments Level = "documents"
	LevelFeatures  Level = "features"
)

// Source is the input of Project. Build one with FromFrequency, FromKeyness,
// FromScaling or FromDispersion.
type Source struct {
	kind      Kind
	frequency []textstat.FrequencyRecord
	keyness   *textstat.KeynessResult
	fit       *scaling.Fit
	hits      []kwic.Hit
}

// FromFrequency wraps ranked frequency records.
func FromFrequency(records []textstat.FrequencyRecord) Source {
	return Source{kind: KindFrequency, frequency: records}
}

// FromKeyness wraps a keyness result.
func FromKeyness(res *textstat.KeynessResult) Source {
	return Source{kind: KindKeyness, keyness: res}
}

// FromScaling wraps a fitted model at the documents or features level.
func FromScaling(fit *scaling.Fit, level Level) Source {
	if level == LevelFeatures {
		return Source{kind: KindScaleFeatures, fit: fit}
	}
	return Source{kind: KindScaleDocs, fit: fit}
}

// FromDispersion wraps located pattern occurrences.
func FromDispersion(hits []kwic.Hit) Source {
	return Source{kind: KindDispersion, hits: hits}
}

// Kind returns the plot kind Project produces for s.
func (s Source) Kind() Kind { return s.kind }

// Positions reports whether the source places items on a continuous axis.
func (s Source) Positions() bool {
	return s.fit != nil || s.hits != nil
}

// Occurrences reports whether every item is one occurrence in a document.
func (s Source) Occurrences() bool {
	return s.hits != nil
}

// GroupLabels reports whether items carry a grouping label.
func (s Source) GroupLabels() bool {
	switch {
	case s.hits != nil:
		return true
	case s.fit != nil:
		for _, d := range s.fit.Docs {
			if len(d.Vars) > 0 {
				return true
			}
		}
	case s.frequency != nil:
		for _, r := range s.frequency {
			if r.Group != "" {
				return true
			}
		}
	}
	return false
}

// StandardErrors reports whether positions come with standard errors.
func (s Source) StandardErrors() bool {
	if s.fit == nil || s.kind != KindScaleDocs {
		return false
	}
	for _, d := range s.fit.Docs {
		if d.SE != nil {
			return true
		}
	}
	return false
}

// Signed reports whether item statistics carry a direction.
func (s Source) Signed() bool {
	return s.keyness != nil
}

// Package scaling fits one-dimensional scaling models to a document-feature
// matrix: Wordscores (supervised), Wordfish (Poisson scaling) and
// correspondence analysis. Every model returns a Fit whose document and
// feature estimates the plot projector consumes.
package scaling

import (
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/dfm"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

type Model string

const (
	ModelWordscores Model = "wordscores"
	ModelWordfish   Model = "wordfish"
	ModelCA         Model = "ca"
)

// Estimate is the fitted position of one document.
type Estimate struct {
	Name     string            `json:"name"`
	Position float64           `json:"position"`
	SE       *float64          `json:"se,omitempty"`
	Vars     map[string]string `json:"vars,omitempty"`
}

// FeatureEstimate is the fitted position of one feature. Weight is the
// feature's fixed effect (ψ) under Wordfish, its reference frequency under
// Wordscores and its mass under CA.
type FeatureEstimate struct {
	Feature  string  `json:"feature"`
	Position float64 `json:"position"`
	Weight   float64 `json:"weight"`
}

type Fit struct {
	Model      Model             `json:"model"`
	Docs       []Estimate        `json:"docs"`
	Features   []FeatureEstimate `json:"features"`
	Iterations int               `json:"iterations,omitempty"`
	LogLik     float64           `json:"loglik,omitempty"`
}

// Doc returns the estimate for the named document.
func (f *Fit) Doc(name string) (Estimate, bool) {
	for _, e := range f.Docs {
		if e.Name == name {
			return e, true
		}
	}
	return Estimate{}, false
}

// Feature returns the estimate for feature.
func (f *Fit) Feature(feature string) (FeatureEstimate, bool) {
	for _, e := range f.Features {
		if e.Feature == feature {
			return e, true
		}
	}
	return FeatureEstimate{}, false
}

func requireCounts(m *dfm.Matrix) error {
	if m.Scheme() != dfm.SchemeCount {
		return apperrors.InvalidInput("scaling models need raw counts, matrix is weighted by %s", m.Scheme())
	}
	return nil
}

// dropEmpty removes all-zero columns and rejects all-zero rows.
func dropEmpty(m *dfm.Matrix) (*dfm.Matrix, error) {
	for i, s := range m.RowSums() {
		if s == 0 {
			return nil, apperrors.EmptyResult("document %s has no features", m.Docnames()[i])
		}
	}
	return dfm.Trim(m, dfm.TrimOptions{})
}

func checkDir(dir [2]int, n int) error {
	if dir[0] < 0 || dir[1] < 0 || dir[0] >= n || dir[1] >= n || dir[0] == dir[1] {
		return apperrors.InvalidInput("direction %v must name two distinct documents out of %d", dir, n)
	}
	return nil
}

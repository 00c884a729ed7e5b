package textstat

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/dfm"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// Measure selects the keyness statistic.
type Measure string

const (
	MeasureChi2  Measure = "chi2"
	MeasureLR    Measure = "lr"
	MeasureExact Measure = "exact"
	MeasurePMI   Measure = "pmi"
)

// Correction adjusts chi2 and lr for small samples. CorrectionDefault means
// Yates for chi2 and Williams for lr.
type Correction string

const (
	CorrectionDefault  Correction = ""
	CorrectionNone     Correction = "none"
	CorrectionYates    Correction = "yates"
	CorrectionWilliams Correction = "williams"
)

// Direction says which side a feature is over-represented in.
type Direction string

const (
	DirectionTarget    Direction = "target"
	DirectionReference Direction = "reference"
	DirectionNone      Direction = "none"
)

// KeynessOptions selects the compared rows and the statistic.
type KeynessOptions struct {
	// Target names the row compared against the reference.
	Target string
	// Reference names the comparison row. Empty means the sum of every
	// other row.
	Reference  string
	Measure    Measure
	Correction Correction
}

// KeynessRecord is the association of one feature with the target. A
// positive Statistic means over-represented in the target. P is nil for
// measures without a test.
type KeynessRecord struct {
	Feature    string    `json:"feature"`
	Statistic  float64   `json:"statistic"`
	P          *float64  `json:"p,omitempty"`
	NTarget    float64   `json:"n_target"`
	NReference float64   `json:"n_reference"`
	Direction  Direction `json:"direction"`
}

// KeynessResult holds the records of one comparison, sorted by the absolute
// statistic.
type KeynessResult struct {
	Target    string          `json:"target"`
	Reference string          `json:"reference"`
	Measure   Measure         `json:"measure"`
	Records   []KeynessRecord `json:"records"`
}

// ParseMeasure maps a configuration value to a Measure. The empty string is
// MeasureChi2.
func ParseMeasure(s string) (Measure, error) {
	switch Measure(s) {
	case "", MeasureChi2:
		return MeasureChi2, nil
	case MeasureLR, MeasureExact, MeasurePMI:
		return Measure(s), nil
	}
	return "", apperrors.InvalidInput("unknown keyness measure %q", s)
}

// Keyness scores every feature of m by its association with the target row.
// Records are ordered by decreasing absolute statistic, ties in column order.
// Features absent from both target and reference are left out.
func Keyness(m *dfm.Matrix, opts KeynessOptions) (*KeynessResult, error) {
	measure, err := ParseMeasure(string(opts.Measure))
	if err != nil {
		return nil, err
	}
	switch opts.Correction {
	case CorrectionDefault, CorrectionNone, CorrectionYates, CorrectionWilliams:
	default:
		return nil, apperrors.InvalidInput("unknown correction %q", opts.Correction)
	}
	if m.Scheme() != dfm.SchemeCount {
		return nil, apperrors.InvalidInput("keyness needs raw counts, matrix is weighted by %s", m.Scheme())
	}
	ti := m.RowIndex(opts.Target)
	if ti < 0 {
		return nil, apperrors.InvalidGroup("target %q is not a row of the matrix", opts.Target)
	}

	target := m.Dense(ti)
	reference := make([]float64, m.NFeat())
	refLabel := opts.Reference
	switch {
	case opts.Reference == opts.Target:
		return nil, apperrors.InvalidGroup("target and reference are both %q", opts.Target)
	case opts.Reference != "":
		ri := m.RowIndex(opts.Reference)
		if ri < 0 {
			return nil, apperrors.InvalidGroup("reference %q is not a row of the matrix", opts.Reference)
		}
		reference = m.Dense(ri)
	default:
		if m.NRow() < 2 {
			return nil, apperrors.InvalidGroup("no rows left to form a reference for %q", opts.Target)
		}
		for i := 0; i < m.NRow(); i++ {
			if i == ti {
				continue
			}
			for _, c := range m.Row(i) {
				reference[c.Col] += c.Value
			}
		}
		refLabel = "reference"
	}

	var targetTotal, refTotal float64
	for j := range target {
		targetTotal += target[j]
		refTotal += reference[j]
	}

	features := m.Features()
	records := make([]KeynessRecord, 0, len(features))
	for j, f := range features {
		a, c := target[j], reference[j]
		if a == 0 && c == 0 {
			continue
		}
		t := table{a: a, b: targetTotal - a, c: c, d: refTotal - c}
		stat, p := t.score(measure, opts.Correction)
		rec := KeynessRecord{
			Feature:    f,
			Statistic:  stat,
			P:          p,
			NTarget:    a,
			NReference: c,
			Direction:  DirectionNone,
		}
		if stat > 0 {
			rec.Direction = DirectionTarget
		} else if stat < 0 {
			rec.Direction = DirectionReference
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, apperrors.EmptyResult("no feature occurs in target or reference")
	}
	slices.SortStableFunc(records, func(x, y KeynessRecord) int {
		ax, ay := math.Abs(x.Statistic), math.Abs(y.Statistic)
		switch {
		case ax > ay:
			return -1
		case ax < ay:
			return 1
		}
		return 0
	})

	return &KeynessResult{
		Target:    opts.Target,
		Reference: refLabel,
		Measure:   measure,
		Records:   records,
	}, nil
}

// table is a 2x2 contingency table: a = feature in target, b = other
// features in target, c = feature in reference, d = other features in
// reference.
type table struct {
	a, b, c, d float64
}

func (t table) n() float64 { return t.a + t.b + t.c + t.d }

func (t table) sign() float64 {
	switch det := t.a*t.d - t.b*t.c; {
	case det > 0:
		return 1
	case det < 0:
		return -1
	}
	return 0
}

func (t table) degenerate() bool {
	return t.a+t.b == 0 || t.c+t.d == 0 || t.a+t.c == 0 || t.b+t.d == 0
}

func (t table) score(measure Measure, corr Correction) (float64, *float64) {
	switch measure {
	case MeasureLR:
		g2 := t.likelihoodRatio(corr)
		return t.sign() * g2, chiSquaredP(g2)
	case MeasureExact:
		return t.logOddsRatio(), ptr(t.fisherP())
	case MeasurePMI:
		return t.pmi(), nil
	default:
		x2 := t.chiSquared(corr)
		return t.sign() * x2, chiSquaredP(x2)
	}
}

func (t table) chiSquared(corr Correction) float64 {
	if t.degenerate() {
		return 0
	}
	n := t.n()
	diff := math.Abs(t.a*t.d - t.b*t.c)
	if corr == CorrectionDefault || corr == CorrectionYates {
		diff = math.Max(0, diff-n/2)
	}
	return n * diff * diff / ((t.a + t.b) * (t.c + t.d) * (t.a + t.c) * (t.b + t.d))
}

func (t table) likelihoodRatio(corr Correction) float64 {
	if t.degenerate() {
		return 0
	}
	n := t.n()
	r1, r2 := t.a+t.b, t.c+t.d
	c1, c2 := t.a+t.c, t.b+t.d
	g2 := 0.0
	for _, cell := range [...][2]float64{
		{t.a, r1 * c1 / n},
		{t.b, r1 * c2 / n},
		{t.c, r2 * c1 / n},
		{t.d, r2 * c2 / n},
	} {
		if cell[0] > 0 {
			g2 += cell[0] * math.Log(cell[0]/cell[1])
		}
	}
	g2 *= 2
	if corr == CorrectionDefault || corr == CorrectionWilliams {
		q := 1 + (n/r1+n/r2-1)*(n/c1+n/c2-1)/(6*n)
		g2 /= q
	}
	return math.Max(g2, 0)
}

// logOddsRatio adds 0.5 to every cell so empty cells stay finite.
func (t table) logOddsRatio() float64 {
	return math.Log((t.a + 0.5) * (t.d + 0.5) / ((t.b + 0.5) * (t.c + 0.5)))
}

// pmi is log(observed / expected) of the target cell, smoothed by 0.5.
func (t table) pmi() float64 {
	if t.degenerate() {
		return 0
	}
	expected := (t.a + t.b) * (t.a + t.c) / t.n()
	return math.Log((t.a + 0.5) / (expected + 0.5))
}

// fisherP is the two-sided Fisher exact p-value: the total probability of
// every table with the same margins that is no more likely than t.
func (t table) fisherP() float64 {
	a, b, c, d := math.Round(t.a), math.Round(t.b), math.Round(t.c), math.Round(t.d)
	r1, c1 := a+b, a+c
	n := a + b + c + d
	lo := math.Max(0, r1+c1-n)
	hi := math.Min(r1, c1)

	logP := func(x float64) float64 {
		return lchoose(c1, x) + lchoose(n-c1, r1-x) - lchoose(n, r1)
	}
	observed := logP(a)
	const relErr = 1 + 1e-7
	p := 0.0
	for x := lo; x <= hi; x++ {
		if lp := logP(x); lp <= observed+math.Log(relErr) {
			p += math.Exp(lp)
		}
	}
	return math.Min(p, 1)
}

func lchoose(n, k float64) float64 {
	ln, _ := math.Lgamma(n + 1)
	lk, _ := math.Lgamma(k + 1)
	lnk, _ := math.Lgamma(n - k + 1)
	return ln - lk - lnk
}

func chiSquaredP(x float64) *float64 {
	p := distuv.ChiSquared{K: 1}.Survival(x)
	return &p
}

func ptr(v float64) *float64 { return &v }

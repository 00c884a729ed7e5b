package scaling

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/dfm"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

type Rescaling string

const (
	RescaleNone Rescaling = ""
	// RescaleLBG stretches virgin scores to the spread of the reference
	// scores (Laver, Benoit and Garry 2003).
	RescaleLBG Rescaling = "lbg"
	// RescaleMV maps the predicted scores of the two most extreme reference
	// texts back onto their reference values (Martin and Vanberg 2008).
	RescaleMV Rescaling = "mv"
)

type WordscoresOptions struct {
	Rescaling Rescaling
	// Smooth is added to every reference count before scoring words.
	Smooth float64
}

// Wordscores scores words from reference texts with known positions and then
// scores every row of m from its scored words. Rows without any scored word
// are left out of the fit. refScores maps row names to reference positions.
func Wordscores(m *dfm.Matrix, refScores map[string]float64, opts WordscoresOptions) (*Fit, error) {
	if err := requireCounts(m); err != nil {
		return nil, err
	}
	if len(refScores) < 2 {
		return nil, apperrors.InvalidInput("wordscores needs at least two reference texts, got %d", len(refScores))
	}

	refs := make([]int, 0, len(refScores))
	for name := range refScores {
		i := m.RowIndex(name)
		if i < 0 {
			return nil, apperrors.InvalidGroup("reference text %q is not a row of the matrix", name)
		}
		refs = append(refs, i)
	}
	sort.Ints(refs)
	isRef := make(map[int]bool, len(refs))
	for _, i := range refs {
		isRef[i] = true
	}

	names := m.Docnames()
	features := m.Features()
	nf := m.NFeat()

	// Relative frequency of each word within each reference text.
	relFreq := make([][]float64, len(refs))
	for r, i := range refs {
		row := m.Dense(i)
		total := 0.0
		for j := range row {
			row[j] += opts.Smooth
			total += row[j]
		}
		if total == 0 {
			return nil, apperrors.DivisionByZero("reference text %s is empty", names[i])
		}
		for j := range row {
			row[j] /= total
		}
		relFreq[r] = row
	}

	wordScore := make([]float64, nf)
	scored := make([]bool, nf)
	refFreq := make([]float64, nf)
	for j := 0; j < nf; j++ {
		sum := 0.0
		for r := range refs {
			sum += relFreq[r][j]
			refFreq[j] += m.Value(refs[r], j)
		}
		if sum == 0 {
			continue
		}
		scored[j] = true
		for r, i := range refs {
			wordScore[j] += relFreq[r][j] / sum * refScores[names[i]]
		}
	}

	fit := &Fit{Model: ModelWordscores}
	for j, f := range features {
		if scored[j] {
			fit.Features = append(fit.Features, FeatureEstimate{Feature: f, Position: wordScore[j], Weight: refFreq[j]})
		}
	}
	if len(fit.Features) == 0 {
		return nil, apperrors.EmptyResult("no word occurs in the reference texts")
	}

	var virgin []float64
	for i := 0; i < m.NRow(); i++ {
		n := 0.0
		for _, c := range m.Row(i) {
			if scored[c.Col] {
				n += c.Value
			}
		}
		if n == 0 {
			continue
		}
		score := 0.0
		for _, c := range m.Row(i) {
			if scored[c.Col] {
				score += c.Value / n * wordScore[c.Col]
			}
		}
		variance := 0.0
		for _, c := range m.Row(i) {
			if scored[c.Col] {
				d := wordScore[c.Col] - score
				variance += c.Value / n * d * d
			}
		}
		se := math.Sqrt(variance) / math.Sqrt(n)
		fit.Docs = append(fit.Docs, Estimate{Name: names[i], Position: score, SE: &se, Vars: m.Docvars(i)})
		if !isRef[i] {
			virgin = append(virgin, score)
		}
	}

	switch opts.Rescaling {
	case RescaleNone:
	case RescaleLBG:
		if err := rescaleLBG(fit, refScores, virgin); err != nil {
			return nil, err
		}
	case RescaleMV:
		if err := rescaleMV(fit, refScores); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.InvalidInput("unknown rescaling %q", opts.Rescaling)
	}
	return fit, nil
}

func rescaleLBG(fit *Fit, refScores map[string]float64, virgin []float64) error {
	if len(virgin) < 2 {
		return apperrors.InvalidInput("lbg rescaling needs at least two virgin texts, got %d", len(virgin))
	}
	ref := make(stats.Float64Data, 0, len(refScores))
	for _, s := range refScores {
		ref = append(ref, s)
	}
	refSD, err := stats.StandardDeviationSample(ref)
	if err != nil {
		return apperrors.InvalidInput("reference scores: %v", err)
	}
	mean, err := stats.Mean(virgin)
	if err != nil {
		return apperrors.InvalidInput("virgin scores: %v", err)
	}
	sd, err := stats.StandardDeviationSample(virgin)
	if err != nil {
		return apperrors.InvalidInput("virgin scores: %v", err)
	}
	if sd == 0 {
		return apperrors.DivisionByZero("virgin scores do not vary")
	}
	factor := refSD / sd
	for k := range fit.Docs {
		e := &fit.Docs[k]
		e.Position = (e.Position-mean)*factor + mean
		if e.SE != nil {
			se := *e.SE * factor
			e.SE = &se
		}
	}
	return nil
}

func rescaleMV(fit *Fit, refScores map[string]float64) error {
	var lowName, highName string
	for name, s := range refScores {
		if lowName == "" || s < refScores[lowName] || (s == refScores[lowName] && name < lowName) {
			lowName = name
		}
		if highName == "" || s > refScores[highName] || (s == refScores[highName] && name < highName) {
			highName = name
		}
	}
	low, okLow := fit.Doc(lowName)
	high, okHigh := fit.Doc(highName)
	if !okLow || !okHigh || high.Position == low.Position {
		return apperrors.DivisionByZero("extreme reference texts have equal predicted scores")
	}
	factor := (refScores[highName] - refScores[lowName]) / (high.Position - low.Position)
	for k := range fit.Docs {
		e := &fit.Docs[k]
		e.Position = (e.Position-low.Position)*factor + refScores[lowName]
		if e.SE != nil {
			se := *e.SE * math.Abs(factor)
			e.SE = &se
		}
	}
	return nil
}

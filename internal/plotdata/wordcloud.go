package plotdata

import (
	"math"
	"slices"

	"github.com/montanaflynn/stats"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/textstat"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// WordcloudOptions controls Wordcloud. Zero values take the defaults in
// brackets.
type WordcloudOptions struct {
	MaxWords int     // [100]
	MinCount float64 // [1]
	MinSize  float64 // [0.5]
	MaxSize  float64 // [4]
	// Comparison assigns each word to the group in which its relative
	// frequency most exceeds its mean over all groups.
	Comparison bool
}

func (o *WordcloudOptions) defaults() {
	if o.MaxWords <= 0 {
		o.MaxWords = 100
	}
	if o.MinCount <= 0 {
		o.MinCount = 1
	}
	if o.MinSize <= 0 {
		o.MinSize = 0.5
	}
	if o.MaxSize <= o.MinSize {
		o.MaxSize = max(4, o.MinSize*8)
	}
}

type cloudWord struct {
	feature string
	group   string
	weight  float64
	freq    float64
}

// Wordcloud sizes words by the square root of their weight, scaled into
// [MinSize, MaxSize]. X is the word's rank and Y its frequency; placement
// is left to the renderer.
func Wordcloud(records []textstat.FrequencyRecord, opts WordcloudOptions) (*Table, error) {
	opts.defaults()

	var words []cloudWord
	if opts.Comparison {
		var err error
		if words, err = comparisonWords(records, opts.MinCount); err != nil {
			return nil, err
		}
	} else {
		words = plainWords(records, opts.MinCount)
	}
	if len(words) == 0 {
		return nil, apperrors.EmptyResult("no word reaches a count of %g", opts.MinCount)
	}

	slices.SortStableFunc(words, func(a, b cloudWord) int {
		switch {
		case a.weight > b.weight:
			return -1
		case a.weight < b.weight:
			return 1
		}
		return 0
	})
	if len(words) > opts.MaxWords {
		words = words[:opts.MaxWords]
	}

	roots := make(stats.Float64Data, len(words))
	for i, w := range words {
		roots[i] = math.Sqrt(w.weight)
	}
	lo, _ := stats.Min(roots)
	hi, _ := stats.Max(roots)

	t := &Table{Kind: KindWordcloud, XLabel: "Rank", YLabel: "Frequency"}
	for i, w := range words {
		size := opts.MaxSize
		if hi > lo {
			size = opts.MinSize + (opts.MaxSize-opts.MinSize)*(roots[i]-lo)/(hi-lo)
		}
		t.Points = append(t.Points, Point{
			Label: w.feature,
			Group: w.group,
			X:     float64(i + 1),
			Y:     w.freq,
			Size:  size,
		})
	}
	return t, nil
}

// plainWords sums frequencies over groups.
func plainWords(records []textstat.FrequencyRecord, minCount float64) []cloudWord {
	idx := make(map[string]int)
	var words []cloudWord
	for _, r := range records {
		i, ok := idx[r.Feature]
		if !ok {
			i = len(words)
			idx[r.Feature] = i
			words = append(words, cloudWord{feature: r.Feature})
		}
		words[i].freq += r.Frequency
	}
	out := words[:0]
	for _, w := range words {
		if w.freq >= minCount {
			w.weight = w.freq
			out = append(out, w)
		}
	}
	return out
}

func comparisonWords(records []textstat.FrequencyRecord, minCount float64) ([]cloudWord, error) {
	var groups, features []string
	rel := make(map[string]map[string]float64)
	freq := make(map[string]map[string]float64)
	for _, r := range records {
		if r.Group == "" {
			return nil, apperrors.InvalidGroup("comparison wordcloud needs grouped frequencies")
		}
		if !slices.Contains(groups, r.Group) {
			groups = append(groups, r.Group)
		}
		if _, ok := rel[r.Feature]; !ok {
			features = append(features, r.Feature)
			rel[r.Feature] = make(map[string]float64)
			freq[r.Feature] = make(map[string]float64)
		}
		rel[r.Feature][r.Group] += r.RelFreq
		freq[r.Feature][r.Group] += r.Frequency
	}
	if len(groups) < 2 {
		return nil, apperrors.InvalidGroup("comparison wordcloud needs at least two groups, got %d", len(groups))
	}

	var words []cloudWord
	for _, f := range features {
		total := 0.0
		row := make(stats.Float64Data, len(groups))
		for g, name := range groups {
			row[g] = rel[f][name]
			total += freq[f][name]
		}
		if total < minCount {
			continue
		}
		mean, err := stats.Mean(row)
		if err != nil {
			return nil, err
		}
		best, excess := -1, 0.0
		for g, p := range row {
			if d := p - mean; d > excess {
				best, excess = g, d
			}
		}
		if best < 0 {
			continue
		}
		words = append(words, cloudWord{
			feature: f,
			group:   groups[best],
			weight:  excess,
			freq:    freq[f][groups[best]],
		})
	}
	return words, nil
}

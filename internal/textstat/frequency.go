// Package textstat computes feature statistics over a document-feature
// matrix: ranked frequencies, optionally per group, and keyness of a target
// row against a reference. All functions are pure and safe for concurrent
// use over shared matrices.
package textstat

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/dfm"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// FrequencyOptions controls Frequency. N <= 0 keeps every feature.
type FrequencyOptions struct {
	N      int
	Groups string
}

// FrequencyRecord is the aggregate of one feature within one group. Group is
// empty when the statistics were not grouped.
type FrequencyRecord struct {
	Feature   string  `json:"feature"`
	Frequency float64 `json:"frequency"`
	Rank      int     `json:"rank"`
	DocFreq   int     `json:"docfreq"`
	RelFreq   float64 `json:"rel_freq"`
	Group     string  `json:"group,omitempty"`
}

type rowGroup struct {
	label string
	rows  []int
}

// Frequency sums feature values per group and ranks them by descending
// frequency. Ties keep matrix column order. Ranks run 1..k within each group.
// Features that sum to zero in a group are not reported.
func Frequency(m *dfm.Matrix, opts FrequencyOptions) ([]FrequencyRecord, error) {
	groups, err := groupRows(m, opts.Groups)
	if err != nil {
		return nil, err
	}

	features := m.Features()
	var out []FrequencyRecord
	for _, g := range groups {
		freq := make([]float64, m.NFeat())
		df := make([]int, m.NFeat())
		total := 0.0
		for _, i := range g.rows {
			for _, c := range m.Row(i) {
				freq[c.Col] += c.Value
				total += c.Value
				if c.Value > 0 {
					df[c.Col]++
				}
			}
		}

		cols := make([]int, 0, len(freq))
		for j, f := range freq {
			if f != 0 {
				cols = append(cols, j)
			}
		}
		slices.SortStableFunc(cols, func(a, b int) int {
			switch {
			case freq[a] > freq[b]:
				return -1
			case freq[a] < freq[b]:
				return 1
			}
			return 0
		})
		if opts.N > 0 && len(cols) > opts.N {
			cols = cols[:opts.N]
		}

		for rank, j := range cols {
			rec := FrequencyRecord{
				Feature:   features[j],
				Frequency: freq[j],
				Rank:      rank + 1,
				DocFreq:   df[j],
				Group:     g.label,
			}
			if total != 0 {
				rec.RelFreq = freq[j] / total
			}
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, apperrors.EmptyResult("no feature has a non-zero frequency")
	}
	return out, nil
}

// groupRows partitions row indexes by the value of key, in order of first
// appearance. An empty key yields one unlabelled group of every row.
func groupRows(m *dfm.Matrix, key string) ([]rowGroup, error) {
	if key == "" {
		all := make([]int, m.NRow())
		for i := range all {
			all[i] = i
		}
		return []rowGroup{{rows: all}}, nil
	}
	if !m.HasDocvar(key) {
		return nil, apperrors.InvalidGroup("no row has variable %q", key)
	}
	idx := make(map[string]int)
	var groups []rowGroup
	for i := 0; i < m.NRow(); i++ {
		v, ok := m.Docvar(i, key)
		if !ok {
			continue
		}
		g, seen := idx[v]
		if !seen {
			g = len(groups)
			idx[v] = g
			groups = append(groups, rowGroup{label: v})
		}
		groups[g].rows = append(groups[g].rows, i)
	}
	return groups, nil
}

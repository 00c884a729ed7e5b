package dfm

import (
	"maps"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// BuildOptions controls matrix construction.
type BuildOptions struct {
	Tokens tokenizer.Options
	// Groups sums rows that share this document variable before trimming.
	Groups string
	Trim   TrimOptions
}

// TrimOptions holds column thresholds. Zero disables a maximum.
type TrimOptions struct {
	MinTermFreq float64
	MinDocFreq  int
	MaxTermFreq float64
	MaxDocFreq  int
}

func (o TrimOptions) isZero() bool {
	return o == TrimOptions{}
}

// Build tokenizes every document of c and counts features. Grouping, when
// requested, happens before trimming.
func Build(c *corpus.Corpus, opts BuildOptions) (*Matrix, error) {
	if c.Len() == 0 {
		return nil, apperrors.EmptyResult("corpus has no documents")
	}
	if opts.Groups != "" && !c.HasVar(opts.Groups) {
		return nil, apperrors.InvalidGroup("no document has variable %q", opts.Groups)
	}

	featIdx := make(map[string]int)
	var features []string
	docnames := make([]string, c.Len())
	docvars := make([]map[string]string, c.Len())
	rows := make([][]Cell, c.Len())

	for i, tokens := range c.Tokens(opts.Tokens) {
		d := c.Doc(i)
		docnames[i] = d.Name
		docvars[i] = d.Meta()

		counts := make(map[int]float64)
		for _, tok := range tokens {
			j, ok := featIdx[tok.Text]
			if !ok {
				j = len(features)
				featIdx[tok.Text] = j
				features = append(features, tok.Text)
			}
			counts[j]++
		}
		rows[i] = cellsFromMap(counts)
	}
	if len(features) == 0 {
		return nil, apperrors.EmptyResult("no tokens left after filtering")
	}

	m := newMatrix(docnames, docvars, features, rows)
	var err error
	if opts.Groups != "" {
		if m, err = Group(m, opts.Groups); err != nil {
			return nil, err
		}
	}
	if !opts.Trim.isZero() {
		if m, err = Trim(m, opts.Trim); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func cellsFromMap(counts map[int]float64) []Cell {
	cols := slices.Sorted(maps.Keys(counts))
	cells := make([]Cell, len(cols))
	for k, j := range cols {
		cells[k] = Cell{Col: j, Value: counts[j]}
	}
	return cells
}

// Group sums rows that share the value of key. Groups appear in order of
// first appearance and are named after the value. Rows without the variable
// are dropped. Variables that are constant within a group are kept.
func Group(m *Matrix, key string) (*Matrix, error) {
	if !m.HasDocvar(key) {
		return nil, apperrors.InvalidGroup("no row has variable %q", key)
	}
	groupIdx := make(map[string]int)
	var names []string
	var sums []map[int]float64
	var vars []map[string]string

	for i, row := range m.rows {
		value, ok := m.docvars[i][key]
		if !ok {
			continue
		}
		g, seen := groupIdx[value]
		if !seen {
			g = len(names)
			groupIdx[value] = g
			names = append(names, value)
			sums = append(sums, make(map[int]float64))
			vars = append(vars, maps.Clone(m.docvars[i]))
		} else {
			for k, v := range vars[g] {
				if m.docvars[i][k] != v {
					delete(vars[g], k)
				}
			}
		}
		for _, c := range row {
			sums[g][c.Col] += c.Value
		}
	}

	rows := make([][]Cell, len(sums))
	for g, s := range sums {
		rows[g] = cellsFromMap(s)
	}
	out := newMatrix(names, vars, m.features, rows)
	out.weighted = m.weighted
	return out, nil
}

// Trim drops columns whose totals or document frequencies fall outside the
// thresholds. Columns that sum to zero are always dropped.
func Trim(m *Matrix, opts TrimOptions) (*Matrix, error) {
	sums := m.ColSums()
	df := m.DocFreq()
	out := m.selectColumns(func(j int) bool {
		switch {
		case sums[j] <= 0:
			return false
		case sums[j] < opts.MinTermFreq:
			return false
		case df[j] < opts.MinDocFreq:
			return false
		case opts.MaxTermFreq > 0 && sums[j] > opts.MaxTermFreq:
			return false
		case opts.MaxDocFreq > 0 && df[j] > opts.MaxDocFreq:
			return false
		}
		return true
	})
	if out.NFeat() == 0 {
		return nil, apperrors.EmptyResult("trimming removed every feature")
	}
	return out, nil
}

// Select keeps (keep=true) or removes (keep=false) the features matching any
// of the glob patterns.
func Select(m *Matrix, patterns []string, keep bool) (*Matrix, error) {
	out := m.selectColumns(func(j int) bool {
		for _, p := range patterns {
			if tokenizer.Match(p, m.features[j]) {
				return keep
			}
		}
		return !keep
	})
	if out.NFeat() == 0 {
		return nil, apperrors.EmptyResult("no features left after selection")
	}
	return out, nil
}

// Package dfm implements the document-feature matrix: a sparse table of
// feature counts (or weights) with one row per document or document group
// and one column per feature, in first-seen order.
//
// Row and column labels never change once a Matrix exists. Every operation
// that alters values or shape returns a new Matrix.
package dfm

import (
	"maps"
	"slices"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// Cell is one non-zero entry of a row.
type Cell struct {
	Col   int
	Value float64
}

// Matrix is a sparse document-feature matrix.
type Matrix struct {
	docnames []string
	docvars  []map[string]string
	features []string
	featIdx  map[string]int
	rows     [][]Cell
	weighted Scheme
}

func newMatrix(docnames []string, docvars []map[string]string, features []string, rows [][]Cell) *Matrix {
	idx := make(map[string]int, len(features))
	for j, f := range features {
		idx[f] = j
	}
	if docvars == nil {
		docvars = make([]map[string]string, len(docnames))
	}
	return &Matrix{
		docnames: docnames,
		docvars:  docvars,
		features: features,
		featIdx:  idx,
		rows:     rows,
		weighted: SchemeCount,
	}
}

// FromCounts builds a matrix from dense counts, one slice per row. docvars may
// be nil. Negative counts are rejected.
func FromCounts(docnames, features []string, counts [][]float64, docvars []map[string]string) (*Matrix, error) {
	if len(counts) != len(docnames) {
		return nil, apperrors.InvalidInput("%d rows of counts for %d documents", len(counts), len(docnames))
	}
	if docvars != nil && len(docvars) != len(docnames) {
		return nil, apperrors.InvalidInput("%d docvar rows for %d documents", len(docvars), len(docnames))
	}
	if err := checkUnique("document", docnames); err != nil {
		return nil, err
	}
	if err := checkUnique("feature", features); err != nil {
		return nil, err
	}
	rows := make([][]Cell, len(counts))
	for i, row := range counts {
		if len(row) != len(features) {
			return nil, apperrors.InvalidInput("row %s has %d values for %d features", docnames[i], len(row), len(features))
		}
		for j, v := range row {
			if v < 0 {
				return nil, apperrors.InvalidInput("negative count for %s in %s", features[j], docnames[i])
			}
			if v != 0 {
				rows[i] = append(rows[i], Cell{Col: j, Value: v})
			}
		}
	}
	var vars []map[string]string
	if docvars != nil {
		vars = make([]map[string]string, len(docvars))
		for i, dv := range docvars {
			vars[i] = maps.Clone(dv)
		}
	}
	return newMatrix(slices.Clone(docnames), vars, slices.Clone(features), rows), nil
}

func checkUnique(kind string, labels []string) error {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			return apperrors.InvalidInput("duplicate %s label %q", kind, l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

// NRow returns the number of documents or groups.
func (m *Matrix) NRow() int { return len(m.docnames) }

// NFeat returns the number of feature columns.
func (m *Matrix) NFeat() int { return len(m.features) }

// Docnames returns the row labels.
func (m *Matrix) Docnames() []string { return slices.Clone(m.docnames) }

// Features returns the column labels.
func (m *Matrix) Features() []string { return slices.Clone(m.features) }

// Scheme reports the weighting applied to the values.
func (m *Matrix) Scheme() Scheme { return m.weighted }

// Docvar returns a row variable.
func (m *Matrix) Docvar(i int, key string) (string, bool) {
	v, ok := m.docvars[i][key]
	return v, ok
}

// Docvars returns a copy of the variables of row i.
func (m *Matrix) Docvars(i int) map[string]string {
	return maps.Clone(m.docvars[i])
}

// HasDocvar reports whether any row carries key.
func (m *Matrix) HasDocvar(key string) bool {
	for _, dv := range m.docvars {
		if _, ok := dv[key]; ok {
			return true
		}
	}
	return false
}

// RowIndex returns the index of the named row or -1.
func (m *Matrix) RowIndex(name string) int {
	return slices.Index(m.docnames, name)
}

// FeatureIndex returns the column of feature or -1.
func (m *Matrix) FeatureIndex(feature string) int {
	j, ok := m.featIdx[feature]
	if !ok {
		return -1
	}
	return j
}

// Value returns cell (i, j).
func (m *Matrix) Value(i, j int) float64 {
	row := m.rows[i]
	k := sort.Search(len(row), func(k int) bool { return row[k].Col >= j })
	if k < len(row) && row[k].Col == j {
		return row[k].Value
	}
	return 0
}

// Row returns the non-zero cells of row i ordered by column. The slice must
// not be modified.
func (m *Matrix) Row(i int) []Cell {
	return m.rows[i]
}

// Dense returns row i with a value for every column.
func (m *Matrix) Dense(i int) []float64 {
	out := make([]float64, len(m.features))
	for _, c := range m.rows[i] {
		out[c.Col] = c.Value
	}
	return out
}

// RowSums returns the total of each row.
func (m *Matrix) RowSums() []float64 {
	out := make([]float64, len(m.rows))
	for i, row := range m.rows {
		for _, c := range row {
			out[i] += c.Value
		}
	}
	return out
}

// ColSums returns the total of each feature over all rows.
func (m *Matrix) ColSums() []float64 {
	out := make([]float64, len(m.features))
	for _, row := range m.rows {
		for _, c := range row {
			out[c.Col] += c.Value
		}
	}
	return out
}

// DocFreq counts, per feature, the rows in which it is non-zero.
func (m *Matrix) DocFreq() []int {
	out := make([]int, len(m.features))
	for _, row := range m.rows {
		for _, c := range row {
			if c.Value > 0 {
				out[c.Col]++
			}
		}
	}
	return out
}

// TopFeatures returns the n features with the largest column sums, ties in
// column order. n <= 0 returns every feature.
func (m *Matrix) TopFeatures(n int) []string {
	sums := m.ColSums()
	order := make([]int, len(sums))
	for j := range order {
		order[j] = j
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case sums[a] > sums[b]:
			return -1
		case sums[a] < sums[b]:
			return 1
		}
		return 0
	})
	if n > 0 && n < len(order) {
		order = order[:n]
	}
	out := make([]string, len(order))
	for k, j := range order {
		out[k] = m.features[j]
	}
	return out
}

// SubsetRows keeps the rows for which keep reports true.
func (m *Matrix) SubsetRows(keep func(i int) bool) (*Matrix, error) {
	var names []string
	var vars []map[string]string
	var rows [][]Cell
	for i := range m.docnames {
		if !keep(i) {
			continue
		}
		names = append(names, m.docnames[i])
		vars = append(vars, m.docvars[i])
		rows = append(rows, m.rows[i])
	}
	if len(names) == 0 {
		return nil, apperrors.EmptyResult("no rows selected")
	}
	out := newMatrix(names, vars, m.features, rows)
	out.weighted = m.weighted
	return out, nil
}

// selectColumns keeps the columns for which keep reports true and renumbers
// the cells.
func (m *Matrix) selectColumns(keep func(j int) bool) *Matrix {
	remap := make([]int, len(m.features))
	var features []string
	for j, f := range m.features {
		if keep(j) {
			remap[j] = len(features)
			features = append(features, f)
		} else {
			remap[j] = -1
		}
	}
	rows := make([][]Cell, len(m.rows))
	for i, row := range m.rows {
		for _, c := range row {
			if nj := remap[c.Col]; nj >= 0 {
				rows[i] = append(rows[i], Cell{Col: nj, Value: c.Value})
			}
		}
	}
	out := newMatrix(m.docnames, m.docvars, features, rows)
	out.weighted = m.weighted
	return out
}

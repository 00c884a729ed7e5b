package dfm

import (
	"fmt"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// Scheme names a weighting of the cell values.
type Scheme string

const (
	SchemeCount    Scheme = "count"
	SchemeProp     Scheme = "prop"
	SchemeBoolean  Scheme = "boolean"
	SchemeLogCount Scheme = "logcount"
)

// ParseScheme maps a configuration value to a Scheme. The empty string is
// SchemeCount.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case "", SchemeCount:
		return SchemeCount, nil
	case SchemeProp, SchemeBoolean, SchemeLogCount:
		return Scheme(s), nil
	}
	return "", apperrors.InvalidInput("unknown weight scheme %q", s)
}

// Weight returns a copy of m with rescaled values. Under SchemeProp each row
// is divided by its sum and then multiplied by k (k = 100 gives "per 100
// words"); k <= 0 means 1. A row that sums to zero under SchemeProp is an
// error. m itself is never modified. SchemeCount is the identity and returns
// m with its existing scheme, so weighted values are never relabelled as
// counts.
func Weight(m *Matrix, scheme Scheme, k float64) (*Matrix, error) {
	if scheme == "" {
		scheme = SchemeCount
	}
	if k <= 0 {
		k = 1
	}
	if _, err := ParseScheme(string(scheme)); err != nil {
		return nil, err
	}
	if scheme == SchemeCount {
		return m, nil
	}

	sums := m.RowSums()
	rows := make([][]Cell, len(m.rows))
	for i, row := range m.rows {
		if scheme == SchemeProp && sums[i] == 0 {
			return nil, apperrors.DivisionByZero("row %s sums to zero", m.docnames[i])
		}
		out := make([]Cell, 0, len(row))
		for _, c := range row {
			v := c.Value
			switch scheme {
			case SchemeProp:
				v = v / sums[i] * k
			case SchemeBoolean:
				if v > 0 {
					v = 1
				}
			case SchemeLogCount:
				if v > 0 {
					v = 1 + math.Log10(v)
				}
			}
			if v != 0 {
				out = append(out, Cell{Col: c.Col, Value: v})
			}
		}
		rows[i] = out
	}
	w := newMatrix(m.docnames, m.docvars, m.features, rows)
	w.weighted = scheme
	return w, nil
}

func (s Scheme) String() string {
	if s == "" {
		return string(SchemeCount)
	}
	return string(s)
}

// Describe labels an axis for values weighted with s and k.
func Describe(s Scheme, k float64) string {
	switch s {
	case SchemeProp:
		if k > 0 && k != 1 {
			return fmt.Sprintf("frequency per %g words", k)
		}
		return "relative frequency"
	case SchemeBoolean:
		return "document presence"
	case SchemeLogCount:
		return "log frequency"
	}
	return "frequency"
}

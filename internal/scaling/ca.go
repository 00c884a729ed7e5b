package scaling

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/dfm"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

type CAOptions struct {
	// Dir orients the first dimension as in WordfishOptions.
	Dir [2]int
}

// CA returns the first dimension of a correspondence analysis of m, in
// standard coordinates. Documents get no standard errors.
func CA(m *dfm.Matrix, opts CAOptions) (*Fit, error) {
	if err := requireCounts(m); err != nil {
		return nil, err
	}
	m, err := dropEmpty(m)
	if err != nil {
		return nil, err
	}
	nr, nf := m.NRow(), m.NFeat()
	if nr < 2 || nf < 2 {
		return nil, apperrors.InvalidInput("correspondence analysis needs at least two documents and two features")
	}
	if opts.Dir == ([2]int{}) {
		opts.Dir = [2]int{0, 1}
	}
	if err := checkDir(opts.Dir, nr); err != nil {
		return nil, err
	}

	rowSums, colSums := m.RowSums(), m.ColSums()
	total := 0.0
	for _, s := range rowSums {
		total += s
	}
	r := make([]float64, nr)
	c := make([]float64, nf)
	for i := range r {
		r[i] = rowSums[i] / total
	}
	for j := range c {
		c[j] = colSums[j] / total
	}

	s := mat.NewDense(nr, nf, nil)
	for i := 0; i < nr; i++ {
		for j := 0; j < nf; j++ {
			p := m.Value(i, j) / total
			e := r[i] * c[j]
			s.Set(i, j, (p-e)/math.Sqrt(e))
		}
	}
	var svd mat.SVD
	if !svd.Factorize(s, mat.SVDThin) {
		return nil, apperrors.New(apperrors.ErrInternal, 500, "singular value decomposition did not converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rowCoord := make([]float64, nr)
	for i := range rowCoord {
		rowCoord[i] = u.At(i, 0) / math.Sqrt(r[i])
	}
	sign := 1.0
	if rowCoord[opts.Dir[0]] > rowCoord[opts.Dir[1]] {
		sign = -1
	}

	fit := &Fit{Model: ModelCA}
	for i, name := range m.Docnames() {
		fit.Docs = append(fit.Docs, Estimate{Name: name, Position: sign * rowCoord[i], Vars: m.Docvars(i)})
	}
	for j, f := range m.Features() {
		fit.Features = append(fit.Features, FeatureEstimate{
			Feature:  f,
			Position: sign * v.At(j, 0) / math.Sqrt(c[j]),
			Weight:   c[j],
		})
	}
	return fit, nil
}

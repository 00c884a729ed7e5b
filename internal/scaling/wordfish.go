package scaling

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/dfm"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

const (
	defaultMaxIter = 200
	defaultTol     = 1e-7
	// betaPriorSD regularises feature discrimination parameters.
	betaPriorSD = 3.0
)

type WordfishOptions struct {
	// Dir names two row indexes; the fit is oriented so that
	// θ[Dir[0]] < θ[Dir[1]]. The zero value means rows 0 and 1.
	Dir     [2]int
	MaxIter int
	Tol     float64
}

// wordfish holds the parameters of log λ_ij = α_i + ψ_j + β_j θ_i.
type wordfish struct {
	y     [][]float64
	alpha []float64
	theta []float64
	psi   []float64
	beta  []float64
}

// Wordfish fits the Poisson scaling model of Slapin and Proksch. θ is
// standardised to mean zero and unit variance, and α of the first document is
// fixed at zero. Standard errors come from the curvature of each document's
// likelihood in (α, θ).
func Wordfish(m *dfm.Matrix, opts WordfishOptions) (*Fit, error) {
	if err := requireCounts(m); err != nil {
		return nil, err
	}
	m, err := dropEmpty(m)
	if err != nil {
		return nil, err
	}
	if m.NRow() < 2 || m.NFeat() < 2 {
		return nil, apperrors.InvalidInput("wordfish needs at least two documents and two features")
	}
	if opts.Dir == ([2]int{}) {
		opts.Dir = [2]int{0, 1}
	}
	if err := checkDir(opts.Dir, m.NRow()); err != nil {
		return nil, err
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = defaultMaxIter
	}
	if opts.Tol <= 0 {
		opts.Tol = defaultTol
	}

	w := newWordfish(m)
	prev := w.logLik()
	iter := 0
	for iter < opts.MaxIter {
		iter++
		for i := range w.theta {
			w.updateDoc(i)
		}
		for j := range w.psi {
			w.updateFeature(j)
		}
		w.standardize()
		ll := w.logLik()
		if math.Abs(ll-prev) <= opts.Tol*math.Abs(prev) {
			prev = ll
			break
		}
		prev = ll
	}

	if w.theta[opts.Dir[0]] > w.theta[opts.Dir[1]] {
		for i := range w.theta {
			w.theta[i] = -w.theta[i]
		}
		for j := range w.beta {
			w.beta[j] = -w.beta[j]
		}
	}

	names := m.Docnames()
	features := m.Features()
	fit := &Fit{Model: ModelWordfish, Iterations: iter, LogLik: prev}
	for i, name := range names {
		e := Estimate{Name: name, Position: w.theta[i], Vars: m.Docvars(i)}
		if se, ok := w.thetaSE(i); ok {
			e.SE = &se
		}
		fit.Docs = append(fit.Docs, e)
	}
	for j, f := range features {
		fit.Features = append(fit.Features, FeatureEstimate{Feature: f, Position: w.beta[j], Weight: w.psi[j]})
	}
	return fit, nil
}

// newWordfish sets starting values: α from row totals, ψ from column means
// and (θ, β) from the leading singular pair of the residual log counts.
func newWordfish(m *dfm.Matrix) *wordfish {
	nr, nf := m.NRow(), m.NFeat()
	w := &wordfish{
		y:     make([][]float64, nr),
		alpha: make([]float64, nr),
		theta: make([]float64, nr),
		psi:   make([]float64, nf),
		beta:  make([]float64, nf),
	}
	rowSums := m.RowSums()
	colSums := m.ColSums()
	for i := range w.y {
		w.y[i] = m.Dense(i)
		w.alpha[i] = math.Log(rowSums[i] / rowSums[0])
	}
	for j := range w.psi {
		w.psi[j] = math.Log(colSums[j] / float64(nr))
	}

	resid := mat.NewDense(nr, nf, nil)
	for i := 0; i < nr; i++ {
		for j := 0; j < nf; j++ {
			resid.Set(i, j, math.Log(w.y[i][j]+1)-w.alpha[i]-w.psi[j])
		}
	}
	var svd mat.SVD
	if svd.Factorize(resid, mat.SVDThin) {
		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)
		s := svd.Values(nil)
		for i := range w.theta {
			w.theta[i] = u.At(i, 0)
		}
		for j := range w.beta {
			w.beta[j] = s[0] * v.At(j, 0)
		}
	}
	w.standardize()
	return w
}

func (w *wordfish) eta(i, j int) float64 {
	return w.alpha[i] + w.psi[j] + w.beta[j]*w.theta[i]
}

func (w *wordfish) logLik() float64 {
	ll := 0.0
	for i := range w.y {
		for j, y := range w.y[i] {
			e := w.eta(i, j)
			ll += y*e - math.Exp(e)
		}
	}
	for _, b := range w.beta {
		ll -= b * b / (2 * betaPriorSD * betaPriorSD)
	}
	return ll
}

func (w *wordfish) docLogLik(i int, alpha, theta float64) float64 {
	ll := 0.0
	for j, y := range w.y[i] {
		e := alpha + w.psi[j] + w.beta[j]*theta
		ll += y*e - math.Exp(e)
	}
	return ll
}

func (w *wordfish) featureLogLik(j int, psi, beta float64) float64 {
	ll := -beta * beta / (2 * betaPriorSD * betaPriorSD)
	for i := range w.y {
		e := w.alpha[i] + psi + beta*w.theta[i]
		ll += w.y[i][j]*e - math.Exp(e)
	}
	return ll
}

// updateDoc takes one damped Newton step in (α_i, θ_i). α_0 stays at zero.
func (w *wordfish) updateDoc(i int) {
	var ga, gt, haa, hat, htt float64
	for j, y := range w.y[i] {
		lambda := math.Exp(w.eta(i, j))
		r := y - lambda
		ga += r
		gt += r * w.beta[j]
		haa += lambda
		hat += lambda * w.beta[j]
		htt += lambda * w.beta[j] * w.beta[j]
	}
	var da, dt float64
	if i == 0 {
		if htt == 0 {
			return
		}
		dt = gt / htt
	} else {
		var ok bool
		if da, dt, ok = solve2(haa, hat, htt, ga, gt); !ok {
			return
		}
	}
	base := w.docLogLik(i, w.alpha[i], w.theta[i])
	for step := 1.0; step > 1e-4; step /= 2 {
		a, t := w.alpha[i]+step*da, w.theta[i]+step*dt
		if w.docLogLik(i, a, t) >= base {
			w.alpha[i], w.theta[i] = a, t
			return
		}
	}
}

// updateFeature takes one damped Newton step in (ψ_j, β_j).
func (w *wordfish) updateFeature(j int) {
	prec := 1 / (betaPriorSD * betaPriorSD)
	gb := -w.beta[j] * prec
	hbb := prec
	var gp, hpp, hpb float64
	for i := range w.y {
		lambda := math.Exp(w.eta(i, j))
		r := w.y[i][j] - lambda
		gp += r
		gb += r * w.theta[i]
		hpp += lambda
		hpb += lambda * w.theta[i]
		hbb += lambda * w.theta[i] * w.theta[i]
	}
	dp, db, ok := solve2(hpp, hpb, hbb, gp, gb)
	if !ok {
		return
	}
	base := w.featureLogLik(j, w.psi[j], w.beta[j])
	for step := 1.0; step > 1e-4; step /= 2 {
		p, b := w.psi[j]+step*dp, w.beta[j]+step*db
		if w.featureLogLik(j, p, b) >= base {
			w.psi[j], w.beta[j] = p, b
			return
		}
	}
}

// standardize rescales θ to mean 0 and sd 1, compensating in ψ and β so the
// fitted rates do not change.
func (w *wordfish) standardize() {
	mean, err := stats.Mean(w.theta)
	if err != nil {
		return
	}
	sd, err := stats.StandardDeviationSample(w.theta)
	if err != nil || sd == 0 {
		return
	}
	for i := range w.theta {
		w.theta[i] = (w.theta[i] - mean) / sd
	}
	for j := range w.beta {
		w.psi[j] += w.beta[j] * mean
		w.beta[j] *= sd
	}
}

// thetaSE is the θ entry of the inverse information matrix in (α_i, θ_i).
func (w *wordfish) thetaSE(i int) (float64, bool) {
	var a, b, c float64
	for j := range w.y[i] {
		lambda := math.Exp(w.eta(i, j))
		a += lambda
		b += lambda * w.beta[j]
		c += lambda * w.beta[j] * w.beta[j]
	}
	det := a*c - b*b
	if det <= 0 || a <= 0 {
		return 0, false
	}
	return math.Sqrt(a / det), true
}

// solve2 solves [[a b] [b c]] x = g for a positive definite system.
func solve2(a, b, c, g1, g2 float64) (float64, float64, bool) {
	det := a*c - b*b
	if det <= 0 || math.IsNaN(det) {
		return 0, 0, false
	}
	return (c*g1 - b*g2) / det, (a*g2 - b*g1) / det, true
}

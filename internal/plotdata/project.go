package plotdata

import (
	"encoding/csv"
	"io"
	"slices"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/kwic"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/scaling"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/textstat"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// Scale is the x-axis mode of a dispersion plot.
type Scale string

const (
	// ScaleAuto is absolute for a single document and relative otherwise.
	ScaleAuto     Scale = "auto"
	ScaleAbsolute Scale = "absolute"
	ScaleRelative Scale = "relative"
)

// ParseScale maps a configuration value to a Scale. The empty string is
// ScaleAuto.
func ParseScale(s string) (Scale, error) {
	switch Scale(s) {
	case "", ScaleAuto:
		return ScaleAuto, nil
	case ScaleAbsolute, ScaleRelative:
		return Scale(s), nil
	}
	return "", apperrors.InvalidInput("unknown scale %q", s)
}

const (
	defaultKeynessN   = 20
	defaultConfidence = 0.95
)

// Options tunes Project. Fields that do not apply to a source are ignored.
type Options struct {
	Scale Scale
	// N caps a keyness plot at N features per direction.
	N int
	// Highlight flags documents or features by name.
	Highlight []string
	// GroupBy labels scale-plot documents with this document variable.
	GroupBy string
	// Confidence sets the interval width of scale plots.
	Confidence float64
}

// Point is one mark. Lower and Upper are set only when SE is.
type Point struct {
	Label     string   `json:"label"`
	Group     string   `json:"group,omitempty"`
	Facet     string   `json:"facet,omitempty"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	SE        *float64 `json:"se,omitempty"`
	Lower     *float64 `json:"lower,omitempty"`
	Upper     *float64 `json:"upper,omitempty"`
	Highlight bool     `json:"highlight,omitempty"`
	Size      float64  `json:"size,omitempty"`
}

// Table is the plot-ready projection of a Source.
type Table struct {
	Kind   Kind    `json:"kind"`
	XLabel string  `json:"x_label"`
	YLabel string  `json:"y_label"`
	Points []Point `json:"points"`
}

// Project maps src to coordinates. The projection is chosen from what the
// source can provide, not from how it was built.
func Project(src Source, opts Options) (*Table, error) {
	switch {
	case src.Occurrences():
		return projectDispersion(src.hits, opts)
	case src.Positions():
		return projectScale(src, opts)
	case src.Signed():
		return projectKeyness(src.keyness, opts)
	case src.frequency != nil:
		return projectFrequency(src.frequency)
	}
	return nil, apperrors.EmptyResult("nothing to project")
}

func projectDispersion(hits []kwic.Hit, opts Options) (*Table, error) {
	if len(hits) == 0 {
		return nil, apperrors.EmptyResult("no occurrences to plot")
	}
	scale := opts.Scale
	if scale == "" {
		scale = ScaleAuto
	}

	var patterns, docs []string
	for _, h := range hits {
		if !slices.Contains(patterns, h.Pattern) {
			patterns = append(patterns, h.Pattern)
		}
		if !slices.Contains(docs, h.Docname) {
			docs = append(docs, h.Docname)
		}
	}
	single := len(docs) == 1
	if scale == ScaleAuto {
		scale = ScaleRelative
		if single {
			scale = ScaleAbsolute
		}
	}

	t := &Table{Kind: KindDispersion, XLabel: "Token index", YLabel: "Keyword"}
	if scale == ScaleRelative {
		t.XLabel = "Relative token index"
	}
	for _, h := range hits {
		x := float64(h.Position)
		if scale == ScaleRelative {
			if h.NTokens == 0 {
				return nil, apperrors.DivisionByZero("document %s has no tokens", h.Docname)
			}
			x /= float64(h.NTokens)
		}
		p := Point{
			Label: h.Keyword,
			Group: h.Pattern,
			Facet: h.Docname,
			X:     x,
			Y:     float64(slices.Index(patterns, h.Pattern)),
		}
		if single && len(patterns) > 1 {
			p.Facet = h.Pattern
		}
		t.Points = append(t.Points, p)
	}
	return t, nil
}

func projectScale(src Source, opts Options) (*Table, error) {
	fit := src.fit
	highlight := make(map[string]bool, len(opts.Highlight))
	for _, h := range opts.Highlight {
		highlight[h] = false
	}

	var t *Table
	if src.kind == KindScaleFeatures {
		t = &Table{Kind: KindScaleFeatures, XLabel: "Estimated feature score", YLabel: "Feature weight"}
		for _, f := range fit.Features {
			_, hl := highlight[f.Feature]
			if hl {
				highlight[f.Feature] = true
			}
			t.Points = append(t.Points, Point{Label: f.Feature, X: f.Position, Y: f.Weight, Highlight: hl})
		}
	} else {
		conf := opts.Confidence
		if conf <= 0 || conf >= 1 {
			conf = defaultConfidence
		}
		z := distuv.UnitNormal.Quantile(0.5 + conf/2)

		docs := slices.Clone(fit.Docs)
		slices.SortStableFunc(docs, func(a, b scaling.Estimate) int {
			switch {
			case a.Position < b.Position:
				return -1
			case a.Position > b.Position:
				return 1
			}
			return 0
		})
		grouped := false
		t = &Table{Kind: KindScaleDocs, XLabel: "Estimated position", YLabel: "Document"}
		for k, d := range docs {
			_, hl := highlight[d.Name]
			if hl {
				highlight[d.Name] = true
			}
			p := Point{Label: d.Name, X: d.Position, Y: float64(k), Highlight: hl}
			if opts.GroupBy != "" {
				if v, ok := d.Vars[opts.GroupBy]; ok {
					p.Group = v
					grouped = true
				}
			}
			if d.SE != nil {
				se := *d.SE
				lo, hi := d.Position-z*se, d.Position+z*se
				p.SE, p.Lower, p.Upper = &se, &lo, &hi
			}
			t.Points = append(t.Points, p)
		}
		if opts.GroupBy != "" && !grouped {
			return nil, apperrors.InvalidGroup("documents carry no variable %q", opts.GroupBy)
		}
	}

	for _, name := range opts.Highlight {
		if !highlight[name] {
			return nil, apperrors.UnknownFeature("%q is not in the fitted model", name)
		}
	}
	return t, nil
}

func projectKeyness(res *textstat.KeynessResult, opts Options) (*Table, error) {
	n := opts.N
	if n <= 0 {
		n = defaultKeynessN
	}
	var pos, neg []textstat.KeynessRecord
	for _, r := range res.Records {
		switch {
		case r.Statistic > 0 && len(pos) < n:
			pos = append(pos, r)
		case r.Statistic < 0 && len(neg) < n:
			neg = append(neg, r)
		}
	}
	if len(pos)+len(neg) == 0 {
		return nil, apperrors.EmptyResult("no feature is associated with either side")
	}

	t := &Table{Kind: KindKeyness, XLabel: string(res.Measure), YLabel: "Feature"}
	y := 0
	for _, r := range pos {
		t.Points = append(t.Points, Point{Label: r.Feature, Group: res.Target, X: r.Statistic, Y: float64(y)})
		y++
	}
	for _, r := range neg {
		t.Points = append(t.Points, Point{Label: r.Feature, Group: res.Reference, X: r.Statistic, Y: float64(y)})
		y++
	}
	return t, nil
}

func projectFrequency(records []textstat.FrequencyRecord) (*Table, error) {
	if len(records) == 0 {
		return nil, apperrors.EmptyResult("no frequency records")
	}
	t := &Table{Kind: KindFrequency, XLabel: "Rank", YLabel: "Frequency"}
	for _, r := range records {
		t.Points = append(t.Points, Point{
			Label: r.Feature,
			Facet: r.Group,
			X:     float64(r.Rank),
			Y:     r.Frequency,
		})
	}
	return t, nil
}

// WriteCSV writes the points of t with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"label", "group", "facet", "x", "y", "se", "lower", "upper", "highlight", "size"}); err != nil {
		return err
	}
	opt := func(v *float64) string {
		if v == nil {
			return ""
		}
		return formatFloat(*v)
	}
	for _, p := range t.Points {
		rec := []string{
			p.Label, p.Group, p.Facet,
			formatFloat(p.X), formatFloat(p.Y),
			opt(p.SE), opt(p.Lower), opt(p.Upper),
			strconv.FormatBool(p.Highlight), formatFloat(p.Size),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

package analysis

import (
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/dfm"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/kwic"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/plotdata"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/scaling"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/textstat"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// Pipeline overrides the configured pipeline defaults for one request. Nil
// pointers and empty strings keep the default.
type Pipeline struct {
	Filter          corpus.Filter `json:"filter"`
	RemoveStopwords *bool         `json:"remove_stopwords,omitempty"`
	// Stopwords are removed in addition to the English list.
	Stopwords     []string `json:"stopwords,omitempty"`
	RemovePunct   *bool    `json:"remove_punct,omitempty"`
	RemoveNumbers *bool    `json:"remove_numbers,omitempty"`
	Stem          *bool    `json:"stem,omitempty"`
	MinTermFreq   *int     `json:"min_termfreq,omitempty"`
	MinDocFreq    *int     `json:"min_docfreq,omitempty"`
	WeightScheme  string   `json:"weight_scheme,omitempty"`
	WeightScale   float64  `json:"weight_scale,omitempty"`
	Groups        *string  `json:"groups,omitempty"`
	N             *int     `json:"n,omitempty"`
	Scale         string   `json:"scale,omitempty"`
}

// resolved is a Pipeline merged over the defaults.
type resolved struct {
	filter corpus.Filter
	tokens tokenizer.Options
	trim   dfm.TrimOptions
	scheme dfm.Scheme
	k      float64
	groups string
	n      int
	scale  plotdata.Scale
}

func (p Pipeline) resolve(def config.PipelineConfig) (resolved, error) {
	r := resolved{
		filter: p.Filter,
		groups: def.Groups,
		n:      def.N,
		k:      def.WeightScale,
	}

	removeStop := def.RemoveStopwords
	if p.RemoveStopwords != nil {
		removeStop = *p.RemoveStopwords
	}
	extra := append(append([]string(nil), def.Stopwords...), p.Stopwords...)
	switch {
	case removeStop:
		r.tokens.Stopwords = tokenizer.English().Union(tokenizer.NewStopwordSet(extra...))
	case len(extra) > 0:
		r.tokens.Stopwords = tokenizer.NewStopwordSet(extra...)
	}
	r.tokens.RemovePunct = boolOr(p.RemovePunct, def.RemovePunct)
	r.tokens.RemoveNumbers = boolOr(p.RemoveNumbers, def.RemoveNumbers)
	r.tokens.Stem = boolOr(p.Stem, def.Stem)

	r.trim.MinTermFreq = float64(intOr(p.MinTermFreq, def.MinTermFreq))
	r.trim.MinDocFreq = intOr(p.MinDocFreq, def.MinDocFreq)
	if r.trim.MinTermFreq < 0 || r.trim.MinDocFreq < 0 {
		return r, apperrors.InvalidInput("trimming thresholds must be non-negative")
	}

	scheme := def.WeightScheme
	if p.WeightScheme != "" {
		scheme = p.WeightScheme
	}
	var err error
	if r.scheme, err = dfm.ParseScheme(scheme); err != nil {
		return r, err
	}
	if p.WeightScale != 0 {
		r.k = p.WeightScale
	}

	if p.Groups != nil {
		r.groups = *p.Groups
	}
	if p.N != nil {
		if *p.N < 0 {
			return r, apperrors.InvalidInput("n must be non-negative, got %d", *p.N)
		}
		r.n = *p.N
	}

	scale := def.Scale
	if p.Scale != "" {
		scale = p.Scale
	}
	if r.scale, err = plotdata.ParseScale(scale); err != nil {
		return r, err
	}
	return r, nil
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

type FrequencyRequest struct {
	Pipeline
}

type FrequencyResponse struct {
	Records []textstat.FrequencyRecord `json:"records"`
	Plot    *plotdata.Table            `json:"plot"`
}

// KeynessRequest compares Target with Reference. Both name matrix rows,
// which are group labels when Groups is set and document names otherwise.
type KeynessRequest struct {
	Pipeline
	Target     string `json:"target"`
	Reference  string `json:"reference,omitempty"`
	Measure    string `json:"measure,omitempty"`
	Correction string `json:"correction,omitempty"`
}

type KeynessResponse struct {
	*textstat.KeynessResult
	Plot *plotdata.Table `json:"plot"`
}

type DispersionRequest struct {
	Pipeline
	Patterns []string `json:"patterns"`
	Window   int      `json:"window,omitempty"`
}

type DispersionResponse struct {
	Hits []kwic.Hit      `json:"hits"`
	Plot *plotdata.Table `json:"plot"`
}

// ScaleRequest fits Model. RefScores is required by wordscores and ignored
// otherwise.
type ScaleRequest struct {
	Pipeline
	Model      string             `json:"model"`
	RefScores  map[string]float64 `json:"ref_scores,omitempty"`
	Rescaling  string             `json:"rescaling,omitempty"`
	Smooth     float64            `json:"smooth,omitempty"`
	Dir        [2]int             `json:"dir,omitempty"`
	MaxIter    int                `json:"max_iter,omitempty"`
	Level      string             `json:"level,omitempty"`
	Highlight  []string           `json:"highlight,omitempty"`
	GroupBy    string             `json:"group_by,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
}

type ScaleResponse struct {
	Fit  *scaling.Fit    `json:"fit"`
	Plot *plotdata.Table `json:"plot"`
}

type WordcloudRequest struct {
	Pipeline
	MaxWords   int     `json:"max_words,omitempty"`
	MinCount   float64 `json:"min_count,omitempty"`
	MinSize    float64 `json:"min_size,omitempty"`
	MaxSize    float64 `json:"max_size,omitempty"`
	Comparison bool    `json:"comparison,omitempty"`
}

type WordcloudResponse struct {
	Plot *plotdata.Table `json:"plot"`
}

// CorpusEntry describes one document of the live corpus.
type CorpusEntry struct {
	Name    string            `json:"name"`
	NTokens int               `json:"ntokens"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type CorpusResponse struct {
	Version   uint64        `json:"version"`
	Documents []CorpusEntry `json:"documents"`
}

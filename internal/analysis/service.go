// Package analysis runs the text pipeline behind the HTTP API: it filters
// the live corpus, builds and weights a feature matrix, computes statistics
// or fits a scaling model, and projects the result onto a plot table.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/dfm"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/kwic"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/plotdata"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/scaling"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/textstat"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/tracing"
)

const (
	OpFrequency  = "frequency"
	OpKeyness    = "keyness"
	OpDispersion = "dispersion"
	OpScale      = "scale"
	OpWordcloud  = "wordcloud"
)

type Service struct {
	docs     *corpus.Collection
	defaults config.PipelineConfig
	cache    *ResultCache
	metrics  *metrics.Metrics
	trace    bool
}

// Option configures optional Service dependencies.
type Option func(*Service)

func WithCache(c *ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracing logs the span tree of every request.
func WithTracing(enabled bool) Option {
	return func(s *Service) { s.trace = enabled }
}

func NewService(docs *corpus.Collection, defaults config.PipelineConfig, opts ...Option) *Service {
	s := &Service{
		docs:     docs,
		defaults: defaults,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the result cache, or nil when caching is off.
func (s *Service) Cache() *ResultCache { return s.cache }

func (s *Service) Frequency(ctx context.Context, req FrequencyRequest) (*FrequencyResponse, bool, error) {
	return run(ctx, s, OpFrequency, req, func(ctx context.Context, c *corpus.Corpus) (*FrequencyResponse, error) {
		p, err := req.resolve(s.defaults)
		if err != nil {
			return nil, err
		}
		m, err := s.matrix(ctx, c, p, "")
		if err != nil {
			return nil, err
		}
		var records []textstat.FrequencyRecord
		err = tracing.Stage(ctx, "frequency", func(context.Context) error {
			records, err = textstat.Frequency(m, textstat.FrequencyOptions{N: p.n, Groups: p.groups})
			return err
		})
		if err != nil {
			return nil, err
		}
		table, err := project(ctx, plotdata.FromFrequency(records), plotdata.Options{})
		if err != nil {
			return nil, err
		}
		table.YLabel = dfm.Describe(p.scheme, p.k)
		return &FrequencyResponse{Records: records, Plot: table}, nil
	})
}

func (s *Service) Keyness(ctx context.Context, req KeynessRequest) (*KeynessResponse, bool, error) {
	return run(ctx, s, OpKeyness, req, func(ctx context.Context, c *corpus.Corpus) (*KeynessResponse, error) {
		if req.Target == "" {
			return nil, apperrors.InvalidInput("target is required")
		}
		measure, err := textstat.ParseMeasure(req.Measure)
		if err != nil {
			return nil, err
		}
		p, err := req.resolve(s.defaults)
		if err != nil {
			return nil, err
		}
		m, err := s.matrix(ctx, c, p, p.groups)
		if err != nil {
			return nil, err
		}
		var res *textstat.KeynessResult
		err = tracing.Stage(ctx, "keyness", func(context.Context) error {
			res, err = textstat.Keyness(m, textstat.KeynessOptions{
				Target:     req.Target,
				Reference:  req.Reference,
				Measure:    measure,
				Correction: textstat.Correction(req.Correction),
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		table, err := project(ctx, plotdata.FromKeyness(res), plotdata.Options{N: p.n})
		if err != nil {
			return nil, err
		}
		return &KeynessResponse{KeynessResult: res, Plot: table}, nil
	})
}

func (s *Service) Dispersion(ctx context.Context, req DispersionRequest) (*DispersionResponse, bool, error) {
	return run(ctx, s, OpDispersion, req, func(ctx context.Context, c *corpus.Corpus) (*DispersionResponse, error) {
		if len(req.Patterns) == 0 {
			return nil, apperrors.InvalidInput("at least one pattern is required")
		}
		p, err := req.resolve(s.defaults)
		if err != nil {
			return nil, err
		}
		if c, err = filter(ctx, c, p.filter); err != nil {
			return nil, err
		}
		var hits []kwic.Hit
		err = tracing.Stage(ctx, "locate", func(context.Context) error {
			hits, err = kwic.Locate(c, req.Patterns, kwic.Options{Window: req.Window})
			return err
		})
		if err != nil {
			return nil, err
		}
		table, err := project(ctx, plotdata.FromDispersion(hits), plotdata.Options{Scale: p.scale})
		if err != nil {
			return nil, err
		}
		return &DispersionResponse{Hits: hits, Plot: table}, nil
	})
}

func (s *Service) Scale(ctx context.Context, req ScaleRequest) (*ScaleResponse, bool, error) {
	return run(ctx, s, OpScale, req, func(ctx context.Context, c *corpus.Corpus) (*ScaleResponse, error) {
		level := plotdata.Level(req.Level)
		switch level {
		case "":
			level = plotdata.LevelDocuments
		case plotdata.LevelDocuments, plotdata.LevelFeatures:
		default:
			return nil, apperrors.InvalidInput("unknown level %q", req.Level)
		}
		p, err := req.resolve(s.defaults)
		if err != nil {
			return nil, err
		}
		m, err := s.matrix(ctx, c, p, p.groups)
		if err != nil {
			return nil, err
		}
		var fit *scaling.Fit
		err = tracing.Stage(ctx, "fit", func(context.Context) error {
			switch scaling.Model(req.Model) {
			case scaling.ModelWordscores:
				fit, err = scaling.Wordscores(m, req.RefScores, scaling.WordscoresOptions{
					Rescaling: scaling.Rescaling(req.Rescaling),
					Smooth:    req.Smooth,
				})
			case scaling.ModelWordfish:
				fit, err = scaling.Wordfish(m, scaling.WordfishOptions{Dir: req.Dir, MaxIter: req.MaxIter})
			case scaling.ModelCA:
				fit, err = scaling.CA(m, scaling.CAOptions{Dir: req.Dir})
			default:
				err = apperrors.InvalidInput("unknown model %q", req.Model)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		table, err := project(ctx, plotdata.FromScaling(fit, level), plotdata.Options{
			Highlight:  req.Highlight,
			GroupBy:    req.GroupBy,
			Confidence: req.Confidence,
		})
		if err != nil {
			return nil, err
		}
		return &ScaleResponse{Fit: fit, Plot: table}, nil
	})
}

func (s *Service) Wordcloud(ctx context.Context, req WordcloudRequest) (*WordcloudResponse, bool, error) {
	return run(ctx, s, OpWordcloud, req, func(ctx context.Context, c *corpus.Corpus) (*WordcloudResponse, error) {
		p, err := req.resolve(s.defaults)
		if err != nil {
			return nil, err
		}
		groups := ""
		if req.Comparison {
			if p.groups == "" {
				return nil, apperrors.InvalidGroup("a comparison wordcloud needs groups")
			}
			groups = p.groups
		}
		m, err := s.matrix(ctx, c, p, "")
		if err != nil {
			return nil, err
		}
		var table *plotdata.Table
		err = tracing.Stage(ctx, "wordcloud", func(context.Context) error {
			records, err := textstat.Frequency(m, textstat.FrequencyOptions{Groups: groups})
			if err != nil {
				return err
			}
			table, err = plotdata.Wordcloud(records, plotdata.WordcloudOptions{
				MaxWords:   req.MaxWords,
				MinCount:   req.MinCount,
				MinSize:    req.MinSize,
				MaxSize:    req.MaxSize,
				Comparison: req.Comparison,
			})
			return err
		})
		if err != nil {
			return nil, err
		}
		return &WordcloudResponse{Plot: table}, nil
	})
}

// Corpus lists the documents of the live corpus.
func (s *Service) Corpus(ctx context.Context) *CorpusResponse {
	c, version := s.docs.Current()
	resp := &CorpusResponse{Version: version, Documents: make([]CorpusEntry, 0, c.Len())}
	for _, d := range c.Docs() {
		resp.Documents = append(resp.Documents, CorpusEntry{
			Name:    d.Name,
			NTokens: tokenizer.Count(d.Text),
			Meta:    d.Meta(),
		})
	}
	return resp
}

// run executes compute on the current corpus snapshot, through the cache
// when one is configured, and records metrics for the operation.
func run[T any](ctx context.Context, s *Service, op string, req any, compute func(context.Context, *corpus.Corpus) (*T, error)) (*T, bool, error) {
	start := time.Now()
	log := logger.FromContext(ctx)
	c, version := s.docs.Current()

	ctx, tr := tracing.Start(ctx, op, logger.RequestID(ctx))
	tr.Set("corpus_version", version)
	defer func() {
		tr.Finish()
		if s.metrics != nil {
			for _, st := range tr.Stages() {
				s.metrics.AnalysisStageSeconds.WithLabelValues(op, st.Name).Observe(st.Duration.Seconds())
			}
		}
		if s.trace {
			tr.Log(ctx, log)
		}
	}()

	var (
		out *T
		hit bool
		err error
	)
	if s.cache == nil {
		out, err = compute(ctx, c)
	} else {
		out, hit, err = cached(ctx, s.cache, op, version, req, func() (*T, error) { return compute(ctx, c) })
	}

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
		log.Warn("analysis failed", "operation", op, "error", err)
	case hit:
		outcome = "cached"
	}
	if s.metrics != nil {
		s.metrics.AnalysisTotal.WithLabelValues(op, outcome).Inc()
		s.metrics.AnalysisLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, false, err
	}
	log.Info("analysis completed",
		"operation", op,
		"corpus_version", version,
		"cache_hit", hit,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return out, hit, nil
}

func cached[T any](ctx context.Context, cache *ResultCache, op string, version uint64, req any, compute func() (*T, error)) (*T, bool, error) {
	key, err := cache.Key(op, version, req)
	if err != nil {
		return nil, false, err
	}
	data, hit, err := cache.GetOrCompute(ctx, key, func() ([]byte, error) {
		out, err := compute()
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	})
	if err != nil {
		return nil, false, err
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, false, fmt.Errorf("decoding cached %s result: %w", op, err)
	}
	return out, hit, nil
}

// matrix filters c, builds the matrix with the resolved pipeline and weights
// it. groups sums rows by that document variable.
func (s *Service) matrix(ctx context.Context, c *corpus.Corpus, p resolved, groups string) (*dfm.Matrix, error) {
	c, err := filter(ctx, c, p.filter)
	if err != nil {
		return nil, err
	}
	var m *dfm.Matrix
	err = tracing.Stage(ctx, "build", func(context.Context) error {
		m, err = dfm.Build(c, dfm.BuildOptions{Tokens: p.tokens, Groups: groups, Trim: p.trim})
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.MatrixRows.Observe(float64(m.NRow()))
		s.metrics.MatrixFeatures.Observe(float64(m.NFeat()))
	}
	if p.scheme == dfm.SchemeCount {
		return m, nil
	}
	err = tracing.Stage(ctx, "weight", func(context.Context) error {
		m, err = dfm.Weight(m, p.scheme, p.k)
		return err
	})
	return m, err
}

func filter(ctx context.Context, c *corpus.Corpus, f corpus.Filter) (*corpus.Corpus, error) {
	if f.IsZero() {
		return c, nil
	}
	var out *corpus.Corpus
	err := tracing.Stage(ctx, "filter", func(context.Context) error {
		var err error
		out, err = c.Filter(f)
		return err
	})
	return out, err
}

func project(ctx context.Context, src plotdata.Source, opts plotdata.Options) (*plotdata.Table, error) {
	var t *plotdata.Table
	err := tracing.Stage(ctx, "project", func(context.Context) error {
		var err error
		t, err = plotdata.Project(src, opts)
		return err
	})
	return t, err
}

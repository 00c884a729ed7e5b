package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
)

// pipelineFlags holds the per-command overrides of the configured pipeline.
// Only flags the user actually set override the config.
type pipelineFlags struct {
	cmd *cobra.Command

	docs        []string
	where       []string
	ranges      []string
	noStopwords bool
	keepStop    bool
	stopwords   []string
	keepPunct   bool
	noNumbers   bool
	stem        bool
	minTermFreq int
	minDocFreq  int
	weight      string
	weightScale float64
	groups      string
	n           int
	scale       string
}

func addPipelineFlags(cmd *cobra.Command) *pipelineFlags {
	p := &pipelineFlags{cmd: cmd}
	f := cmd.Flags()
	f.StringSliceVar(&p.docs, "docs", nil, "only use these documents")
	f.StringArrayVar(&p.where, "where", nil, "keep documents whose variable equals a value, as key=value (repeatable)")
	f.StringArrayVar(&p.ranges, "range", nil, "keep documents whose numeric variable lies in a range, as key=min:max (repeatable)")
	f.BoolVar(&p.noStopwords, "remove-stopwords", false, "remove English stopwords")
	f.BoolVar(&p.keepStop, "keep-stopwords", false, "keep stopwords even if the config removes them")
	f.StringSliceVar(&p.stopwords, "stopwords", nil, "extra words to remove")
	f.BoolVar(&p.keepPunct, "keep-punct", false, "keep punctuation tokens")
	f.BoolVar(&p.noNumbers, "remove-numbers", false, "remove number tokens")
	f.BoolVar(&p.stem, "stem", false, "stem tokens")
	f.IntVar(&p.minTermFreq, "min-termfreq", 0, "drop features with fewer occurrences")
	f.IntVar(&p.minDocFreq, "min-docfreq", 0, "drop features found in fewer documents")
	f.StringVar(&p.weight, "weight", "", "weighting scheme: count|prop|boolean|logcount")
	f.Float64Var(&p.weightScale, "weight-scale", 0, "multiplier for prop weighting")
	f.StringVar(&p.groups, "groups", "", "document variable to group rows by")
	f.IntVarP(&p.n, "top", "n", 0, "number of features to report")
	f.StringVar(&p.scale, "scale", "", "dispersion x-axis: auto|absolute|relative")
	cmd.MarkFlagsMutuallyExclusive("remove-stopwords", "keep-stopwords")
	return p
}

func (p *pipelineFlags) changed(name string) bool {
	return p.cmd.Flags().Changed(name)
}

func (p *pipelineFlags) pipeline() (analysis.Pipeline, error) {
	var out analysis.Pipeline

	filter, err := p.filter()
	if err != nil {
		return out, err
	}
	out.Filter = filter

	switch {
	case p.changed("remove-stopwords"):
		out.RemoveStopwords = ptr(true)
	case p.changed("keep-stopwords"):
		out.RemoveStopwords = ptr(false)
	}
	out.Stopwords = p.stopwords
	if p.changed("keep-punct") {
		out.RemovePunct = ptr(!p.keepPunct)
	}
	if p.changed("remove-numbers") {
		out.RemoveNumbers = ptr(p.noNumbers)
	}
	if p.changed("stem") {
		out.Stem = ptr(p.stem)
	}
	if p.changed("min-termfreq") {
		out.MinTermFreq = ptr(p.minTermFreq)
	}
	if p.changed("min-docfreq") {
		out.MinDocFreq = ptr(p.minDocFreq)
	}
	if p.changed("groups") {
		out.Groups = ptr(p.groups)
	}
	if p.changed("top") {
		out.N = ptr(p.n)
	}
	out.WeightScheme = p.weight
	out.WeightScale = p.weightScale
	out.Scale = p.scale
	return out, nil
}

func (p *pipelineFlags) filter() (corpus.Filter, error) {
	f := corpus.Filter{Names: p.docs}
	for _, w := range p.where {
		key, value, ok := strings.Cut(w, "=")
		if !ok || key == "" {
			return f, fmt.Errorf("--where %q: want key=value", w)
		}
		if f.Equals == nil {
			f.Equals = make(map[string][]string)
		}
		f.Equals[key] = append(f.Equals[key], value)
	}
	for _, r := range p.ranges {
		key, bounds, ok := strings.Cut(r, "=")
		lo, hi, ok2 := strings.Cut(bounds, ":")
		if !ok || !ok2 || key == "" {
			return f, fmt.Errorf("--range %q: want key=min:max", r)
		}
		var rng corpus.Range
		var err error
		if rng.Min, err = parseBound(lo); err != nil {
			return f, fmt.Errorf("--range %q: %w", r, err)
		}
		if rng.Max, err = parseBound(hi); err != nil {
			return f, fmt.Errorf("--range %q: %w", r, err)
		}
		if f.Ranges == nil {
			f.Ranges = make(map[string]corpus.Range)
		}
		f.Ranges[key] = rng
	}
	return f, nil
}

// parseBound reads one side of a range. An empty side is open.
func parseBound(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func ptr[T any](v T) *T { return &v }

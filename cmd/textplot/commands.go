package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/analysis"
)

func newFrequencyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frequency",
		Short: "Rank features by frequency",
		Long: `Rank features by their total frequency, optionally within groups.

Example: textplot frequency --corpus inaugural.jsonl --remove-stopwords -n 10 --groups Party`,
		Args: cobra.NoArgs,
	}
	p := addPipelineFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		svc, err := newService(opts)
		if err != nil {
			return err
		}
		pipe, err := p.pipeline()
		if err != nil {
			return err
		}
		resp, _, err := svc.Frequency(cmd.Context(), analysis.FrequencyRequest{Pipeline: pipe})
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), opts.format, resp, resp.Plot, frequencyTable(resp.Records))
	}
	return cmd
}

func newKeynessCmd(opts *rootOptions) *cobra.Command {
	var req analysis.KeynessRequest

	cmd := &cobra.Command{
		Use:   "keyness",
		Short: "Score features by their association with a target",
		Long: `Compare a target document or group against a reference and score every feature.

Without --reference the target is compared with all other rows combined.

Example: textplot keyness --corpus inaugural.jsonl --groups Party --target Republican --measure lr`,
		Args: cobra.NoArgs,
	}
	p := addPipelineFlags(cmd)
	cmd.Flags().StringVar(&req.Target, "target", "", "target document or group")
	cmd.Flags().StringVar(&req.Reference, "reference", "", "reference document or group")
	cmd.Flags().StringVar(&req.Measure, "measure", "chi2", "statistic: chi2|lr|exact|pmi")
	cmd.Flags().StringVar(&req.Correction, "correction", "", "small-sample correction: none|yates|williams")
	_ = cmd.MarkFlagRequired("target")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		svc, err := newService(opts)
		if err != nil {
			return err
		}
		if req.Pipeline, err = p.pipeline(); err != nil {
			return err
		}
		resp, _, err := svc.Keyness(cmd.Context(), req)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), opts.format, resp, resp.Plot, keynessTable(resp.KeynessResult))
	}
	return cmd
}

func newXrayCmd(opts *rootOptions) *cobra.Command {
	var req analysis.DispersionRequest

	cmd := &cobra.Command{
		Use:     "xray [pattern...]",
		Aliases: []string{"dispersion"},
		Short:   "Locate patterns across the corpus",
		Long: `Find every occurrence of the patterns and report where in each document it falls.

Patterns are case-insensitive globs; a quoted pattern with spaces matches a phrase.

Example: textplot xray --corpus inaugural.jsonl "america*" "united states" --scale relative`,
		Args: cobra.MinimumNArgs(1),
	}
	p := addPipelineFlags(cmd)
	cmd.Flags().IntVar(&req.Window, "window", 5, "context tokens on each side")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		svc, err := newService(opts)
		if err != nil {
			return err
		}
		if req.Pipeline, err = p.pipeline(); err != nil {
			return err
		}
		req.Patterns = args
		resp, _, err := svc.Dispersion(cmd.Context(), req)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), opts.format, resp, resp.Plot, hitsTable(resp.Hits))
	}
	return cmd
}

func newScaleCmd(opts *rootOptions) *cobra.Command {
	var (
		req  analysis.ScaleRequest
		refs map[string]string
		dir  []int
	)

	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Place documents on a single dimension",
		Long: `Fit a one-dimensional scaling model: wordscores, wordfish or ca.

Wordscores needs reference scores for some documents.

Example: textplot scale --corpus speeches.jsonl --model wordscores --ref 2009-Obama=-1 --ref 2001-Bush=1`,
		Args: cobra.NoArgs,
	}
	p := addPipelineFlags(cmd)
	cmd.Flags().StringVar(&req.Model, "model", "wordfish", "model: wordscores|wordfish|ca")
	cmd.Flags().StringToStringVar(&refs, "ref", nil, "reference score as name=score (wordscores)")
	cmd.Flags().StringVar(&req.Rescaling, "rescaling", "", "rescale virgin text scores: lbg|mv (wordscores)")
	cmd.Flags().Float64Var(&req.Smooth, "smooth", 0, "additive smoothing of counts (wordscores)")
	cmd.Flags().IntSliceVar(&dir, "dir", nil, "two documents i,j fixing the direction: θi < θj")
	cmd.Flags().IntVar(&req.MaxIter, "max-iter", 0, "iteration cap (wordfish)")
	cmd.Flags().StringVar(&req.Level, "level", "documents", "plot level: documents|features")
	cmd.Flags().StringSliceVar(&req.Highlight, "highlight", nil, "documents or features to highlight")
	cmd.Flags().StringVar(&req.GroupBy, "group-by", "", "document variable used to label points")
	cmd.Flags().Float64Var(&req.Confidence, "confidence", 0.95, "interval level")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		svc, err := newService(opts)
		if err != nil {
			return err
		}
		if req.Pipeline, err = p.pipeline(); err != nil {
			return err
		}
		if len(refs) > 0 {
			req.RefScores = make(map[string]float64, len(refs))
			for name, s := range refs {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return fmt.Errorf("--ref %s=%s: %w", name, s, err)
				}
				req.RefScores[name] = v
			}
		}
		switch len(dir) {
		case 0:
		case 2:
			req.Dir = [2]int{dir[0], dir[1]}
		default:
			return fmt.Errorf("--dir takes two document indices, got %d", len(dir))
		}

		resp, _, err := svc.Scale(cmd.Context(), req)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), opts.format, resp, resp.Plot, scaleTable(resp, req.Level))
	}
	return cmd
}

func newWordcloudCmd(opts *rootOptions) *cobra.Command {
	var req analysis.WordcloudRequest

	cmd := &cobra.Command{
		Use:   "wordcloud",
		Short: "Size the most frequent words for a word cloud",
		Long: `Compute word sizes for a word cloud. With --comparison and --groups each word
is assigned to the group that uses it most.

Example: textplot wordcloud --corpus inaugural.jsonl --remove-stopwords --max-words 50`,
		Args: cobra.NoArgs,
	}
	p := addPipelineFlags(cmd)
	cmd.Flags().IntVar(&req.MaxWords, "max-words", 100, "maximum number of words")
	cmd.Flags().Float64Var(&req.MinCount, "min-count", 1, "minimum frequency of a plotted word")
	cmd.Flags().Float64Var(&req.MinSize, "min-size", 0.5, "size of the least frequent word")
	cmd.Flags().Float64Var(&req.MaxSize, "max-size", 4, "size of the most frequent word")
	cmd.Flags().BoolVar(&req.Comparison, "comparison", false, "compare groups")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		svc, err := newService(opts)
		if err != nil {
			return err
		}
		if req.Pipeline, err = p.pipeline(); err != nil {
			return err
		}
		resp, _, err := svc.Wordcloud(cmd.Context(), req)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), opts.format, resp, resp.Plot, pointsTable(resp.Plot))
	}
	return cmd
}

func newDocsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List the documents of the corpus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(opts)
			if err != nil {
				return err
			}
			resp := svc.Corpus(cmd.Context())
			return emit(cmd.OutOrStdout(), opts.format, resp, nil, docsTable(resp.Documents))
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/logger"
)

type rootOptions struct {
	corpusPath string
	configPath string
	format     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "textplot",
		Short: "Frequency, keyness, dispersion and scaling statistics for a text corpus",
		Long: `Run the textplot analyses against a corpus file without starting the service.

The corpus is read from --corpus (.jsonl, .json, .csv, .xlsx or .txt). Pipeline
defaults come from --config and can be overridden per command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.corpusPath, "corpus", "", "corpus file (defaults to corpus.importPath of the config)")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "table", "output format: table|json|csv")

	rootCmd.AddCommand(
		newFrequencyCmd(opts),
		newKeynessCmd(opts),
		newXrayCmd(opts),
		newScaleCmd(opts),
		newWordcloudCmd(opts),
		newDocsCmd(opts),
	)
	return rootCmd
}

// newService loads the config and corpus named by opts into an in-memory
// analysis service.
func newService(opts *rootOptions) (*analysis.Service, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	switch opts.format {
	case "table", "json", "csv":
	default:
		return nil, fmt.Errorf("unknown output format %q (use table, json or csv)", opts.format)
	}

	path := opts.corpusPath
	if path == "" {
		path = cfg.Corpus.ImportPath
	}
	if path == "" {
		return nil, fmt.Errorf("no corpus given: pass --corpus or set corpus.importPath")
	}
	loaded, err := corpus.ReadFile(path)
	if err != nil {
		return nil, err
	}
	docs := corpus.NewCollection()
	docs.Add(loaded...)
	return analysis.NewService(docs, cfg.Pipeline, analysis.WithTracing(cfg.Tracing.Enabled)), nil
}

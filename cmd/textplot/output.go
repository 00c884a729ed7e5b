package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/kwic"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/plotdata"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/textstat"
)

// tableFunc writes one row per result to a tabwriter.
type tableFunc func(tw *tabwriter.Writer)

// emit writes resp as JSON, the plot as CSV, or the result as an aligned
// table.
func emit(w io.Writer, format string, resp any, plot *plotdata.Table, table tableFunc) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "csv":
		if plot == nil {
			return errors.New("csv output needs plot data, use --format table or json")
		}
		return plot.WriteCSV(w)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
}

func frequencyTable(records []textstat.FrequencyRecord) tableFunc {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "RANK\tFEATURE\tFREQUENCY\tDOCFREQ\tGROUP")
		for _, r := range records {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", r.Rank, r.Feature, num(r.Frequency), r.DocFreq, r.Group)
		}
	}
}

func keynessTable(res *textstat.KeynessResult) tableFunc {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "# %s vs %s (%s)\n", res.Target, res.Reference, res.Measure)
		fmt.Fprintln(tw, "FEATURE\tSTATISTIC\tP\tN_TARGET\tN_REFERENCE")
		for _, r := range res.Records {
			p := "-"
			if r.P != nil {
				p = strconv.FormatFloat(*r.P, 'g', 4, 64)
			}
			fmt.Fprintf(tw, "%s\t%.4f\t%s\t%s\t%s\n", r.Feature, r.Statistic, p, num(r.NTarget), num(r.NReference))
		}
	}
}

func hitsTable(hits []kwic.Hit) tableFunc {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "DOCUMENT\tPOSITION\tPRE\tKEYWORD\tPOST")
		for _, h := range hits {
			fmt.Fprintf(tw, "%s\t%d/%d\t%s\t%s\t%s\n", h.Docname, h.Position, h.NTokens, h.Pre, h.Keyword, h.Post)
		}
	}
}

func scaleTable(resp *analysis.ScaleResponse, level string) tableFunc {
	if level == string(plotdata.LevelFeatures) {
		return func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "FEATURE\tPOSITION\tWEIGHT")
			for _, f := range resp.Fit.Features {
				fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", f.Feature, f.Position, f.Weight)
			}
		}
	}
	return func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "# %s\n", resp.Fit.Model)
		fmt.Fprintln(tw, "DOCUMENT\tPOSITION\tSE")
		for _, d := range resp.Fit.Docs {
			se := "-"
			if d.SE != nil {
				se = fmt.Sprintf("%.4f", *d.SE)
			}
			fmt.Fprintf(tw, "%s\t%.4f\t%s\n", d.Name, d.Position, se)
		}
	}
}

func pointsTable(t *plotdata.Table) tableFunc {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "LABEL\tGROUP\tSIZE")
		for _, p := range t.Points {
			fmt.Fprintf(tw, "%s\t%s\t%.3f\n", p.Label, p.Group, p.Size)
		}
	}
}

func docsTable(docs []analysis.CorpusEntry) tableFunc {
	return func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "NAME\tTOKENS\tMETA")
		for _, d := range docs {
			meta := make([]string, 0, len(d.Meta))
			for k, v := range d.Meta {
				meta = append(meta, k+"="+v)
			}
			slices.Sort(meta)
			fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, d.NTokens, strings.Join(meta, " "))
		}
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

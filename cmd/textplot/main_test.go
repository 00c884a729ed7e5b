package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/analysis"
)

const speechesJSONL = `{"name": "1993-Clinton", "Year": 1993, "Party": "Democratic", "text": "We must renew America. Change is the law of life. America must change, and we must renew our economy."}
{"name": "2001-Bush", "Year": 2001, "Party": "Republican", "text": "Freedom and liberty are the promise of America. We will defend freedom, liberty and the nation."}
{"name": "2009-Obama", "Year": 2009, "Party": "Democratic", "text": "We must renew our economy and change the nation. America will change with hope and renew its jobs."}
`

func writeCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "speeches.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(speechesJSONL), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFrequencyJSON(t *testing.T) {
	out, err := execute(t, "frequency", "--corpus", writeCorpus(t), "-n", "2", "-f", "json")
	require.NoError(t, err)

	var resp analysis.FrequencyResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "must", resp.Records[0].Feature)
	assert.Equal(t, 4.0, resp.Records[0].Frequency)
}

func TestKeynessTable(t *testing.T) {
	out, err := execute(t, "keyness", "--corpus", writeCorpus(t), "--groups", "Party", "--target", "Republican")
	require.NoError(t, err)
	assert.Contains(t, out, "# Republican vs reference (chi2)")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[2], "freedom"), lines[2])
}

func TestKeynessRequiresTarget(t *testing.T) {
	_, err := execute(t, "keyness", "--corpus", writeCorpus(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")
}

func TestXrayCSV(t *testing.T) {
	out, err := execute(t, "xray", "america*", "--corpus", writeCorpus(t), "-f", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "label,group,facet,x,y,se,lower,upper,highlight,size", lines[0])
	assert.Len(t, lines, 5)
}

func TestScaleWordscores(t *testing.T) {
	out, err := execute(t, "scale", "--corpus", writeCorpus(t),
		"--model", "wordscores", "--ref", "1993-Clinton=-1", "--ref", "2001-Bush=1")
	require.NoError(t, err)
	assert.Contains(t, out, "# wordscores")
	assert.Contains(t, out, "2009-Obama")
}

func TestDocsRejectsCSV(t *testing.T) {
	_, err := execute(t, "docs", "--corpus", writeCorpus(t), "-f", "csv")
	assert.Error(t, err)

	out, err := execute(t, "docs", "--corpus", writeCorpus(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Party=Republican Year=2001")
}

func TestUnknownFormat(t *testing.T) {
	_, err := execute(t, "frequency", "--corpus", writeCorpus(t), "-f", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestPipelineFlagsOverrideOnlyWhatIsSet(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	p := addPipelineFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{
		"--keep-stopwords",
		"--where", "Party=Democratic",
		"--where", "Party=Republican",
		"--range", "Year=1990:",
		"-n", "3",
	}))

	pipe, err := p.pipeline()
	require.NoError(t, err)
	require.NotNil(t, pipe.RemoveStopwords)
	assert.False(t, *pipe.RemoveStopwords)
	require.NotNil(t, pipe.N)
	assert.Equal(t, 3, *pipe.N)
	assert.Nil(t, pipe.RemovePunct)
	assert.Nil(t, pipe.Groups)
	assert.Nil(t, pipe.MinTermFreq)
	assert.Equal(t, []string{"Democratic", "Republican"}, pipe.Filter.Equals["Party"])
	require.Contains(t, pipe.Filter.Ranges, "Year")
	assert.Equal(t, 1990.0, *pipe.Filter.Ranges["Year"].Min)
	assert.Nil(t, pipe.Filter.Ranges["Year"].Max)
}

func TestPipelineFlagsRejectMalformedFilters(t *testing.T) {
	for _, args := range [][]string{
		{"--where", "Party"},
		{"--range", "Year=1990"},
		{"--range", "Year=a:b"},
	} {
		cmd := &cobra.Command{Use: "test"}
		p := addPipelineFlags(cmd)
		require.NoError(t, cmd.ParseFlags(args))
		_, err := p.pipeline()
		assert.Error(t, err, args)
	}
}

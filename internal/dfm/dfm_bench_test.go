package dfm

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/tokenizer"
)

func benchCorpus(b *testing.B, numDocs int) *corpus.Corpus {
	b.Helper()
	words := strings.Fields("peace world freedom nation people hope change economy liberty justice duty faith")
	docs := make([]corpus.Document, numDocs)
	for i := range docs {
		var sb strings.Builder
		for j := 0; j < 300; j++ {
			sb.WriteString(words[(i*7+j*j)%len(words)])
			sb.WriteString(" the ")
		}
		party := "Democratic"
		if i%3 == 0 {
			party = "Republican"
		}
		docs[i] = corpus.NewDocument("doc-"+strconv.Itoa(i), sb.String(), map[string]string{"Party": party})
	}
	c, err := corpus.New(docs...)
	if err != nil {
		b.Fatal(err)
	}
	return c
}

func BenchmarkBuild(b *testing.B) {
	opts := BuildOptions{Tokens: tokenizer.Options{RemovePunct: true, Stopwords: tokenizer.English()}}
	for _, numDocs := range []int{10, 100, 1000} {
		c := benchCorpus(b, numDocs)
		b.Run(fmt.Sprintf("docs_%d", numDocs), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Build(c, opts); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkBuildGrouped(b *testing.B) {
	c := benchCorpus(b, 1000)
	opts := BuildOptions{Groups: "Party", Trim: TrimOptions{MinTermFreq: 2}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Build(c, opts); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWeight(b *testing.B) {
	m, err := Build(benchCorpus(b, 1000), BuildOptions{})
	if err != nil {
		b.Fatal(err)
	}
	for _, scheme := range []Scheme{SchemeProp, SchemeBoolean, SchemeLogCount} {
		b.Run(string(scheme), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := Weight(m, scheme, 100); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

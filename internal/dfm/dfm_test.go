package dfm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

func speeches(t testing.TB) *corpus.Corpus {
	t.Helper()
	c, err := corpus.New(
		corpus.NewDocument("1949-Truman", "The peace of the world. Peace and freedom.", map[string]string{"President": "Truman", "Party": "Democratic", "Year": "1949"}),
		corpus.NewDocument("1953-Eisenhower", "Freedom is the world's hope. Freedom!", map[string]string{"President": "Eisenhower", "Party": "Republican", "Year": "1953"}),
		corpus.NewDocument("1957-Eisenhower", "Peace, peace and freedom.", map[string]string{"President": "Eisenhower", "Party": "Republican", "Year": "1957"}),
	)
	require.NoError(t, err)
	return c
}

func TestBuildCountsInFirstSeenOrder(t *testing.T) {
	m, err := Build(speeches(t), BuildOptions{Tokens: tokenizer.Options{RemovePunct: true}})
	require.NoError(t, err)

	assert.Equal(t, []string{"1949-Truman", "1953-Eisenhower", "1957-Eisenhower"}, m.Docnames())
	assert.Equal(t, []string{"the", "peace", "of", "world", "and", "freedom", "is", "world's", "hope"}, m.Features())
	assert.Equal(t, 2.0, m.Value(0, m.FeatureIndex("peace")))
	assert.Equal(t, 2.0, m.Value(1, m.FeatureIndex("freedom")))
	assert.Equal(t, 0.0, m.Value(1, m.FeatureIndex("peace")))

	party, ok := m.Docvar(2, "Party")
	require.True(t, ok)
	assert.Equal(t, "Republican", party)
}

func TestBuildGroupsBeforeTrimming(t *testing.T) {
	m, err := Build(speeches(t), BuildOptions{
		Tokens: tokenizer.Options{RemovePunct: true, Stopwords: tokenizer.English()},
		Groups: "President",
		Trim:   TrimOptions{MinDocFreq: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Truman", "Eisenhower"}, m.Docnames())
	assert.Equal(t, []string{"peace", "freedom"}, m.Features())
	assert.Equal(t, []float64{2, 3}, m.Dense(1))

	party, ok := m.Docvar(1, "Party")
	require.True(t, ok)
	assert.Equal(t, "Republican", party)
	_, ok = m.Docvar(1, "Year")
	assert.False(t, ok)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(speeches(t), BuildOptions{Groups: "Speaker"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidGroup)

	_, err = Build(speeches(t), BuildOptions{Trim: TrimOptions{MinTermFreq: 100}})
	assert.ErrorIs(t, err, apperrors.ErrEmptyResult)

	empty, err := corpus.New()
	require.NoError(t, err)
	_, err = Build(empty, BuildOptions{})
	assert.ErrorIs(t, err, apperrors.ErrEmptyResult)

	punctOnly, err := corpus.New(corpus.NewDocument("a", "!!! ...", nil))
	require.NoError(t, err)
	_, err = Build(punctOnly, BuildOptions{Tokens: tokenizer.Options{RemovePunct: true}})
	assert.ErrorIs(t, err, apperrors.ErrEmptyResult)
}

func TestTrimDropsLowFrequencyColumns(t *testing.T) {
	m, err := FromCounts([]string{"d1"}, []string{"a", "b", "c"}, [][]float64{{5, 3, 0}}, nil)
	require.NoError(t, err)

	trimmed, err := Trim(m, TrimOptions{MinTermFreq: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, trimmed.Features())
	assert.Equal(t, []string{"a", "b", "c"}, m.Features())

	_, err = Trim(m, TrimOptions{MinTermFreq: 6})
	assert.ErrorIs(t, err, apperrors.ErrEmptyResult)

	capped, err := Trim(m, TrimOptions{MaxTermFreq: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, capped.Features())
}

func TestWeightPropRowsSumToOne(t *testing.T) {
	m, err := Build(speeches(t), BuildOptions{})
	require.NoError(t, err)

	w, err := Weight(m, SchemeProp, 0)
	require.NoError(t, err)
	for i, s := range w.RowSums() {
		assert.InDelta(t, 1.0, s, 1e-9, "row %d", i)
	}
	assert.Equal(t, m.Docnames(), w.Docnames())
	assert.Equal(t, m.Features(), w.Features())
	assert.Equal(t, SchemeProp, w.Scheme())

	per100, err := Weight(m, SchemeProp, 100)
	require.NoError(t, err)
	for _, s := range per100.RowSums() {
		assert.InDelta(t, 100.0, s, 1e-9)
	}
}

func TestWeightDoesNotMutateInput(t *testing.T) {
	m, err := FromCounts([]string{"d1", "d2"}, []string{"a", "b"}, [][]float64{{4, 1}, {1, 4}}, nil)
	require.NoError(t, err)
	_, err = Weight(m, SchemeProp, 100)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 1}, m.Dense(0))
	assert.Equal(t, SchemeCount, m.Scheme())
}

func TestWeightZeroRow(t *testing.T) {
	m, err := FromCounts([]string{"d1", "empty"}, []string{"a"}, [][]float64{{2}, {0}}, nil)
	require.NoError(t, err)

	_, err = Weight(m, SchemeProp, 0)
	assert.ErrorIs(t, err, apperrors.ErrDivisionByZero)

	counted, err := Weight(m, SchemeCount, 0)
	require.NoError(t, err)
	assert.Equal(t, m.ColSums(), counted.ColSums())
}

func TestWeightCountKeepsExistingScheme(t *testing.T) {
	m, err := FromCounts([]string{"d1", "d2"}, []string{"a", "b"}, [][]float64{{4, 1}, {1, 4}}, nil)
	require.NoError(t, err)
	prop, err := Weight(m, SchemeProp, 0)
	require.NoError(t, err)

	again, err := Weight(prop, SchemeCount, 0)
	require.NoError(t, err)
	assert.Equal(t, SchemeProp, again.Scheme())
	assert.InDeltaSlice(t, []float64{0.8, 0.2}, again.Dense(0), 1e-12)
}

func TestWeightOtherSchemes(t *testing.T) {
	m, err := FromCounts([]string{"d1"}, []string{"a", "b"}, [][]float64{{10, 1}}, nil)
	require.NoError(t, err)

	b, err := Weight(m, SchemeBoolean, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, b.Dense(0))

	l, err := Weight(m, SchemeLogCount, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 1}, l.Dense(0), 1e-12)

	_, err = Weight(m, Scheme("tfidf"), 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFromCountsValidation(t *testing.T) {
	_, err := FromCounts([]string{"a", "a"}, []string{"x"}, [][]float64{{1}, {1}}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = FromCounts([]string{"a"}, []string{"x"}, [][]float64{{-1}}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = FromCounts([]string{"a"}, []string{"x", "y"}, [][]float64{{1}}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTopFeaturesAndSelect(t *testing.T) {
	m, err := FromCounts([]string{"d1", "d2"}, []string{"american", "b", "americans", "c"},
		[][]float64{{1, 3, 2, 3}, {1, 0, 1, 0}}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "americans", "c"}, m.TopFeatures(3))
	assert.Equal(t, []int{2, 1, 2, 1}, m.DocFreq())

	kept, err := Select(m, []string{"american*"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"american", "americans"}, kept.Features())
	assert.Equal(t, []float64{1, 2}, kept.Dense(0))

	removed, err := Select(m, []string{"american*"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, removed.Features())

	_, err = Select(m, []string{"zzz"}, true)
	assert.ErrorIs(t, err, apperrors.ErrEmptyResult)

	sub, err := m.SubsetRows(func(i int) bool { return i == 1 })
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, sub.Docnames())
	assert.Equal(t, 1, m.RowIndex("d2"))
	assert.Equal(t, -1, m.RowIndex("d9"))
}

package textstat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/dfm"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

func twoGroups(t *testing.T) *dfm.Matrix {
	t.Helper()
	m, err := dfm.FromCounts([]string{"X", "Y"}, []string{"a", "b"}, [][]float64{{4, 1}, {1, 4}}, nil)
	require.NoError(t, err)
	return m
}

func inaugural(t *testing.T) *dfm.Matrix {
	t.Helper()
	m, err := dfm.FromCounts(
		[]string{"1949-Truman", "1953-Eisenhower", "1961-Kennedy", "1965-Johnson"},
		[]string{"world", "peace", "freedom", "nation", "new"},
		[][]float64{
			{12, 9, 4, 2, 0},
			{8, 6, 7, 3, 1},
			{8, 5, 2, 1, 6},
			{3, 1, 3, 9, 4},
		},
		[]map[string]string{
			{"Party": "Democratic"},
			{"Party": "Republican"},
			{"Party": "Democratic"},
			{"Party": "Democratic"},
		},
	)
	require.NoError(t, err)
	return m
}

func TestFrequencyTopOneBreaksTiesByColumnOrder(t *testing.T) {
	m, err := dfm.FromCounts([]string{"d"}, []string{"x", "y", "z"}, [][]float64{{1, 3, 3}}, nil)
	require.NoError(t, err)

	recs, err := Frequency(m, FrequencyOptions{N: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "y", recs[0].Feature)
	assert.Equal(t, 1, recs[0].Rank)
	assert.Equal(t, 3.0, recs[0].Frequency)
}

func TestFrequencyRanksAreContiguous(t *testing.T) {
	recs, err := Frequency(inaugural(t), FrequencyOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, r := range recs {
		assert.Equal(t, i+1, r.Rank)
	}
	assert.Equal(t, "world", recs[0].Feature)
	assert.Equal(t, 31.0, recs[0].Frequency)
	assert.Equal(t, 4, recs[0].DocFreq)
	assert.InDelta(t, 31.0/94.0, recs[0].RelFreq, 1e-12)
	assert.Equal(t, "new", recs[4].Feature)
	assert.Equal(t, 3, recs[4].DocFreq)
}

func TestFrequencyOfCountMatrixEqualsColumnSums(t *testing.T) {
	m := inaugural(t)
	counted, err := dfm.Weight(m, dfm.SchemeCount, 0)
	require.NoError(t, err)

	recs, err := Frequency(counted, FrequencyOptions{})
	require.NoError(t, err)
	sums := m.ColSums()
	for _, r := range recs {
		assert.Equal(t, sums[m.FeatureIndex(r.Feature)], r.Frequency, r.Feature)
	}
}

func TestFrequencyGrouped(t *testing.T) {
	recs, err := Frequency(inaugural(t), FrequencyOptions{Groups: "Party", N: 2})
	require.NoError(t, err)
	require.Len(t, recs, 4)

	assert.Equal(t, FrequencyRecord{Feature: "world", Frequency: 23, Rank: 1, DocFreq: 3, RelFreq: 23.0 / 69.0, Group: "Democratic"}, recs[0])
	assert.Equal(t, "peace", recs[1].Feature)
	assert.Equal(t, "Democratic", recs[1].Group)
	assert.Equal(t, "world", recs[2].Feature)
	assert.Equal(t, "Republican", recs[2].Group)
	assert.Equal(t, 1, recs[2].Rank)
	assert.Equal(t, "freedom", recs[3].Feature)
	assert.Equal(t, 2, recs[3].Rank)
}

func TestFrequencyErrors(t *testing.T) {
	_, err := Frequency(inaugural(t), FrequencyOptions{Groups: "President"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidGroup)

	zero, err := dfm.FromCounts([]string{"d"}, []string{"x"}, [][]float64{{0}}, nil)
	require.NoError(t, err)
	_, err = Frequency(zero, FrequencyOptions{})
	assert.ErrorIs(t, err, apperrors.ErrEmptyResult)
}

func TestKeynessTwoGroupScenario(t *testing.T) {
	res, err := Keyness(twoGroups(t), KeynessOptions{Target: "X"})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	a, b := res.Records[0], res.Records[1]
	assert.Equal(t, "a", a.Feature)
	assert.Greater(t, a.Statistic, 0.0)
	assert.Equal(t, DirectionTarget, a.Direction)
	assert.InDelta(t, 1.6, a.Statistic, 1e-12)
	require.NotNil(t, a.P)
	assert.InDelta(t, 0.2059, *a.P, 1e-3)

	assert.Equal(t, "b", b.Feature)
	assert.Less(t, b.Statistic, 0.0)
	assert.Equal(t, DirectionReference, b.Direction)
	assert.Equal(t, "reference", res.Reference)
	assert.Equal(t, MeasureChi2, res.Measure)
}

func TestKeynessSwapFlipsSign(t *testing.T) {
	m := inaugural(t)
	for _, measure := range []Measure{MeasureChi2, MeasureLR, MeasureExact} {
		for _, corr := range []Correction{CorrectionDefault, CorrectionNone} {
			fwd, err := Keyness(m, KeynessOptions{Target: "1949-Truman", Reference: "1965-Johnson", Measure: measure, Correction: corr})
			require.NoError(t, err)
			back, err := Keyness(m, KeynessOptions{Target: "1965-Johnson", Reference: "1949-Truman", Measure: measure, Correction: corr})
			require.NoError(t, err)

			byFeature := make(map[string]KeynessRecord)
			for _, r := range back.Records {
				byFeature[r.Feature] = r
			}
			require.Len(t, byFeature, len(fwd.Records))
			for _, r := range fwd.Records {
				other := byFeature[r.Feature]
				assert.InDelta(t, -r.Statistic, other.Statistic, 1e-9, "%s %s %s", measure, corr, r.Feature)
				if r.P != nil {
					assert.InDelta(t, *r.P, *other.P, 1e-9)
				}
			}
		}
	}
}

func TestKeynessOrderingAndExclusion(t *testing.T) {
	m, err := dfm.FromCounts([]string{"T", "R", "U"}, []string{"only-u", "x", "y", "z"},
		[][]float64{{0, 10, 2, 5}, {0, 2, 10, 5}, {7, 0, 0, 0}}, nil)
	require.NoError(t, err)

	res, err := Keyness(m, KeynessOptions{Target: "T", Reference: "R"})
	require.NoError(t, err)
	features := make([]string, len(res.Records))
	for i, r := range res.Records {
		features[i] = r.Feature
		if i > 0 {
			assert.GreaterOrEqual(t, math.Abs(res.Records[i-1].Statistic), math.Abs(r.Statistic))
		}
	}
	assert.Equal(t, []string{"x", "y", "z"}, features)
	assert.Equal(t, DirectionNone, res.Records[2].Direction)
	assert.Equal(t, "R", res.Reference)
}

func TestKeynessMeasures(t *testing.T) {
	m := twoGroups(t)

	exact, err := Keyness(m, KeynessOptions{Target: "X", Measure: MeasureExact})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(9), exact.Records[0].Statistic, 1e-12)
	require.NotNil(t, exact.Records[0].P)
	assert.InDelta(t, 52.0/252.0, *exact.Records[0].P, 1e-9)

	lr, err := Keyness(m, KeynessOptions{Target: "X", Measure: MeasureLR, Correction: CorrectionNone})
	require.NoError(t, err)
	want := 2 * (4*math.Log(4/2.5) + 1*math.Log(1/2.5) + 1*math.Log(1/2.5) + 4*math.Log(4/2.5))
	assert.InDelta(t, want, lr.Records[0].Statistic, 1e-9)

	williams, err := Keyness(m, KeynessOptions{Target: "X", Measure: MeasureLR})
	require.NoError(t, err)
	assert.Less(t, williams.Records[0].Statistic, lr.Records[0].Statistic)

	pmi, err := Keyness(m, KeynessOptions{Target: "X", Measure: MeasurePMI})
	require.NoError(t, err)
	byFeature := make(map[string]KeynessRecord, len(pmi.Records))
	for _, r := range pmi.Records {
		assert.Nil(t, r.P)
		byFeature[r.Feature] = r
	}
	require.Contains(t, byFeature, "a")
	require.Contains(t, byFeature, "b")
	assert.InDelta(t, math.Log(4.5/3), byFeature["a"].Statistic, 1e-12)
	assert.InDelta(t, math.Log(1.5/3), byFeature["b"].Statistic, 1e-12)
	assert.Equal(t, "b", pmi.Records[0].Feature)
}

func TestKeynessErrors(t *testing.T) {
	m := twoGroups(t)

	_, err := Keyness(m, KeynessOptions{Target: "Z"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidGroup)

	_, err = Keyness(m, KeynessOptions{Target: "X", Reference: "Q"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidGroup)

	_, err = Keyness(m, KeynessOptions{Target: "X", Reference: "X"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidGroup)

	_, err = Keyness(m, KeynessOptions{Target: "X", Measure: "t-test"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = Keyness(m, KeynessOptions{Target: "X", Correction: "bonferroni"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	prop, err := dfm.Weight(m, dfm.SchemeProp, 0)
	require.NoError(t, err)
	_, err = Keyness(prop, KeynessOptions{Target: "X"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	relabelled, err := dfm.Weight(prop, dfm.SchemeCount, 0)
	require.NoError(t, err)
	_, err = Keyness(relabelled, KeynessOptions{Target: "X"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	single, err := dfm.FromCounts([]string{"X"}, []string{"a"}, [][]float64{{1}}, nil)
	require.NoError(t, err)
	_, err = Keyness(single, KeynessOptions{Target: "X"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidGroup)
}

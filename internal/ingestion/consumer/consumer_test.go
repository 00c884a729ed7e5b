package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/metrics"
)

type recorder struct {
	marked      []string
	invalidated int
	err         error
	// failMarks makes that many MarkIndexed calls fail before err applies.
	failMarks int
}

func (r *recorder) MarkIndexed(_ context.Context, id string) error {
	r.marked = append(r.marked, id)
	if r.failMarks > 0 {
		r.failMarks--
		return errors.New("connection reset by peer")
	}
	return r.err
}

func (r *recorder) Invalidate(context.Context) error {
	r.invalidated++
	return r.err
}

func encode(t *testing.T, e ingestion.IngestEvent) []byte {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return b
}

func TestSinkAddsDocuments(t *testing.T) {
	rec := &recorder{}
	m := metrics.New(prometheus.NewRegistry())
	docs := corpus.NewCollection()
	sink := &Sink{Docs: docs, Store: rec, Cache: rec, Metrics: m, Source: "kafka"}

	event := ingestion.IngestEvent{
		DocumentID: "d1",
		Name:       "2009-Obama",
		Text:       "My fellow citizens",
		Meta:       map[string]string{"Party": "Democratic"},
		IngestedAt: time.Date(2009, 1, 20, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Handle(context.Background(), []byte("2009-Obama"), encode(t, event)))

	c := docs.Snapshot()
	require.Equal(t, 1, c.Len())
	d, ok := c.Lookup("2009-Obama")
	require.True(t, ok)
	assert.Equal(t, "d1", d.ID)
	party, _ := d.Var("Party")
	assert.Equal(t, "Democratic", party)

	assert.Equal(t, []string{"d1"}, rec.marked)
	assert.Equal(t, 1, rec.invalidated)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocsIngestedTotal.WithLabelValues("kafka")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CorpusDocuments))

	// A replayed event leaves the corpus and cache alone.
	require.NoError(t, sink.Handle(context.Background(), nil, encode(t, event)))
	assert.Equal(t, 1, docs.Len())
	assert.Equal(t, 1, rec.invalidated)
	assert.Equal(t, uint64(1), docs.Version())
}

func TestSinkSkipsBadEvents(t *testing.T) {
	sink := &Sink{Docs: corpus.NewCollection()}

	err := sink.Handle(context.Background(), nil, []byte("{not json"))
	assert.ErrorIs(t, err, kafka.ErrSkip)

	err = sink.Handle(context.Background(), nil, encode(t, ingestion.IngestEvent{DocumentID: "x", Name: "a"}))
	assert.ErrorIs(t, err, kafka.ErrSkip)
	assert.Zero(t, sink.Docs.Len())
}

func TestSinkToleratesStoreFailures(t *testing.T) {
	rec := &recorder{err: errors.New("db down")}
	sink := &Sink{Docs: corpus.NewCollection(), Store: rec, Cache: rec}
	err := sink.Handle(context.Background(), nil, encode(t, ingestion.IngestEvent{DocumentID: "x", Name: "a", Text: "b"}))
	require.NoError(t, err)
	assert.Equal(t, 1, sink.Docs.Len())
}

func TestSinkRetriesStatusUpdate(t *testing.T) {
	rec := &recorder{failMarks: 1}
	sink := &Sink{Docs: corpus.NewCollection(), Store: rec}
	err := sink.Handle(context.Background(), nil, encode(t, ingestion.IngestEvent{DocumentID: "d1", Name: "a", Text: "b"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d1"}, rec.marked)
}

func TestSinkDoesNotRetryUnknownDocument(t *testing.T) {
	rec := &recorder{err: apperrors.Newf(apperrors.ErrDocumentNotFound, 404, "document d1 not found")}
	sink := &Sink{Docs: corpus.NewCollection(), Store: rec}
	err := sink.Handle(context.Background(), nil, encode(t, ingestion.IngestEvent{DocumentID: "d1", Name: "a", Text: "b"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, rec.marked)
	assert.Equal(t, 1, sink.Docs.Len())
}

func TestLoopback(t *testing.T) {
	sink := &Sink{Docs: corpus.NewCollection(), Source: "http"}
	lb := Loopback{Handler: sink.Handle}
	err := lb.Publish(context.Background(),
		kafka.Event{Key: "a", Value: ingestion.IngestEvent{DocumentID: "1", Name: "a", Text: "first"}},
		kafka.Event{Key: "b", Value: ingestion.IngestEvent{DocumentID: "2", Name: "b", Text: "second"}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, sink.Docs.Snapshot().Names())

	err = lb.Publish(context.Background(), kafka.Event{Key: "c", Value: ingestion.IngestEvent{Name: "c"}})
	assert.ErrorIs(t, err, kafka.ErrSkip)
}

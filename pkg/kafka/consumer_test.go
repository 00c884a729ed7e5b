package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueReader serves msgs in order, then blocks until ctx ends.
type queueReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	fetchErrs []error
	committed []int64
	closed    bool
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *queueReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *queueReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func message(offset int64, key, eventType string) kafka.Message {
	m := kafka.Message{Offset: offset, Key: []byte(key), Value: []byte(`{}`)}
	if eventType != "" {
		m.Headers = []kafka.Header{{Key: HeaderType, Value: []byte(eventType)}}
	}
	return m
}

// drain runs c until every queued message has been committed.
func drain(t *testing.T, c *Consumer, r *queueReader, want int) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	require.Eventually(t, func() bool { return len(r.commits()) >= want }, 2*time.Second, 5*time.Millisecond)
	cancel()
	return <-done
}

func TestConsumerCommitsHandledAndSkipped(t *testing.T) {
	r := &queueReader{msgs: []kafka.Message{
		message(1, "1789-Washington", "document.ingest"),
		message(2, "bad", "document.ingest"),
		message(3, "1797-Adams", ""),
	}}
	var handled []string
	c := newConsumer(r, "documents.ingest", func(_ context.Context, key, _ []byte) error {
		handled = append(handled, string(key))
		if string(key) == "bad" {
			return fmt.Errorf("%w: no text", ErrSkip)
		}
		return nil
	})

	require.NoError(t, drain(t, c, r, 3))
	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	assert.Equal(t, []string{"1789-Washington", "bad", "1797-Adams"}, handled)
	assert.True(t, r.closed)
}

func TestConsumerFiltersEventTypes(t *testing.T) {
	r := &queueReader{msgs: []kafka.Message{
		message(1, "a", "document.delete"),
		message(2, "b", "document.ingest"),
	}}
	var handled []string
	c := newConsumer(r, "documents.ingest", func(_ context.Context, key, _ []byte) error {
		handled = append(handled, string(key))
		return nil
	}, AcceptTypes("document.ingest"))

	require.NoError(t, drain(t, c, r, 2))
	assert.Equal(t, []string{"b"}, handled)
	assert.Equal(t, []int64{1, 2}, r.commits())
}

func TestConsumerRecoversFromFetchErrors(t *testing.T) {
	r := &queueReader{
		fetchErrs: []error{errors.New("broker not available")},
		msgs:      []kafka.Message{message(7, "a", "")},
	}
	c := newConsumer(r, "documents.ingest", func(context.Context, []byte, []byte) error { return nil })
	c.fetchWait = time.Millisecond

	require.NoError(t, drain(t, c, r, 1))
	assert.Equal(t, []int64{7}, r.commits())
}

func TestConsumerRetriesFailingHandler(t *testing.T) {
	r := &queueReader{msgs: []kafka.Message{message(4, "a", "")}}
	attempts := 0
	c := newConsumer(r, "documents.ingest", func(context.Context, []byte, []byte) error {
		attempts++
		if attempts < 2 {
			return errors.New("corpus busy")
		}
		return nil
	})

	require.NoError(t, drain(t, c, r, 1))
	assert.Equal(t, 2, attempts)
}

func TestDecodeJSONSkipsGarbage(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}
	b, err := DecodeJSON[body]([]byte(`{"name":"1801-Jefferson"}`))
	require.NoError(t, err)
	assert.Equal(t, "1801-Jefferson", b.Name)

	_, err = DecodeJSON[body]([]byte(`{"name":`))
	assert.ErrorIs(t, err, ErrSkip)
}

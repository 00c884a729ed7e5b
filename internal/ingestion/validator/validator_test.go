package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion"
)

func TestValidateIngestRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    ingestion.IngestRequest
		fields []string
	}{
		{"valid", ingestion.IngestRequest{Name: "2009-Obama", Text: "My fellow citizens", Meta: map[string]string{"Party": "Democratic"}}, nil},
		{"missing name", ingestion.IngestRequest{Text: "x"}, []string{"name"}},
		{"padded name", ingestion.IngestRequest{Name: " a ", Text: "x"}, []string{"name"}},
		{"control char in name", ingestion.IngestRequest{Name: "a\tb", Text: "x"}, []string{"name"}},
		{"long name", ingestion.IngestRequest{Name: strings.Repeat("n", 257), Text: "x"}, []string{"name"}},
		{"blank text", ingestion.IngestRequest{Name: "a", Text: "  \n"}, []string{"text"}},
		{"blank meta key", ingestion.IngestRequest{Name: "a", Text: "x", Meta: map[string]string{" ": "v"}}, []string{"meta"}},
		{"long idempotency key", ingestion.IngestRequest{Name: "a", Text: "x", IdempotencyKey: strings.Repeat("k", 256)}, []string{"idempotency_key"}},
		{"everything wrong", ingestion.IngestRequest{}, []string{"name", "text"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIngestRequest(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestValidationErrorMessageIsSorted(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"text": "b", "name": "a"}}
	assert.Equal(t, "name: a; text: b", err.Error())
}

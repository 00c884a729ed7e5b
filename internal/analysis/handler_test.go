package analysis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func router(svc *Service) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc).Routes(r)
	return r
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerFrequency(t *testing.T) {
	h := router(newService())
	rec := post(t, h, "/api/v1/frequency", `{"n": 2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	var resp FrequencyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 2)
	assert.Equal(t, "must", resp.Records[0].Feature)
	require.NotNil(t, resp.Plot)
	assert.Len(t, resp.Plot.Points, 2)
}

func TestHandlerKeyness(t *testing.T) {
	h := router(newService())
	rec := post(t, h, "/api/v1/keyness", `{"target": "Republican", "groups": "Party", "measure": "lr", "n": 1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp KeynessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Republican", resp.Target)
	assert.Equal(t, "lr", string(resp.Measure))
	assert.NotEmpty(t, resp.Records)
	assert.LessOrEqual(t, len(resp.Plot.Points), 2)
}

func TestHandlerErrorStatuses(t *testing.T) {
	h := router(newService())

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed json", "/api/v1/frequency", `{"n":`, http.StatusBadRequest},
		{"empty body", "/api/v1/frequency", ``, http.StatusBadRequest},
		{"unknown field", "/api/v1/frequency", `{"limit": 3}`, http.StatusBadRequest},
		{"unknown group", "/api/v1/frequency", `{"groups": "President"}`, http.StatusBadRequest},
		{"empty after trim", "/api/v1/frequency", `{"min_termfreq": 1000}`, http.StatusUnprocessableEntity},
		{"unknown pattern", "/api/v1/dispersion", `{"patterns": ["tyranny"]}`, http.StatusNotFound},
		{"unknown model", "/api/v1/scale", `{"model": "lda"}`, http.StatusBadRequest},
		{"comparison without groups", "/api/v1/wordcloud", `{"comparison": true}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandlerCorpus(t *testing.T) {
	h := router(newService())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/corpus", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CorpusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Documents, 3)
}

func TestHandlerCacheDisabled(t *testing.T) {
	h := router(newService())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = post(t, h, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerCacheHit(t *testing.T) {
	cache := NewResultCache(newMemStore(), time.Minute, nil)
	h := router(newService(WithCache(cache)))

	first := post(t, h, "/api/v1/wordcloud", `{"max_words": 5}`)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := post(t, h, "/api/v1/wordcloud", `{"max_words": 5}`)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1.0, stats["hits"])
	assert.Equal(t, "closed", stats["breaker"])

	rec = post(t, h, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

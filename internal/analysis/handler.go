package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/logger"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "analysis-handler"),
	}
}

// Routes mounts the analysis API on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/frequency", serve(h, h.service.Frequency))
		r.Post("/keyness", serve(h, h.service.Keyness))
		r.Post("/dispersion", serve(h, h.service.Dispersion))
		r.Post("/scale", serve(h, h.service.Scale))
		r.Post("/wordcloud", serve(h, h.service.Wordcloud))
		r.Get("/corpus", h.Corpus)
		r.Get("/cache/stats", h.CacheStats)
		r.Post("/cache/invalidate", h.CacheInvalidate)
	})
}

// serve decodes a JSON request body, runs op and writes its response. The
// X-Cache header reports whether the response came from the cache.
func serve[Req, Resp any](h *Handler, op func(context.Context, Req) (*Resp, bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := decode(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		resp, hit, err := op(r.Context(), req)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if hit {
			w.Header().Set("X-Cache", "HIT")
		} else {
			w.Header().Set("X-Cache", "MISS")
		}
		h.writeJSON(w, http.StatusOK, resp)
	}
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("request body is empty")
		}
		return apperrors.InvalidInput("invalid JSON body: %v", err)
	}
	return nil
}

func (h *Handler) Corpus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Corpus(r.Context()))
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	if cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	h.writeJSON(w, http.StatusOK, cache.Stats(r.Context()))
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	cache := h.service.Cache()
	if cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	if err := cache.Invalidate(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError maps err to its HTTP status. Internal errors are logged and
// reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("analysis request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": msg})
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/logger"
)

// DocumentGetter loads a stored document. *corpus.Repository implements it.
type DocumentGetter interface {
	Get(ctx context.Context, id string) (corpus.Document, error)
}

type Handler struct {
	publisher *publisher.Publisher
	documents DocumentGetter
	logger    *slog.Logger
}

// New creates a Handler. documents may be nil when nothing is persisted.
func New(pub *publisher.Publisher, documents DocumentGetter) *Handler {
	return &Handler{
		publisher: pub,
		documents: documents,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/documents", h.Ingest)
	r.Get("/api/v1/documents/{id}", h.Get)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req ingestion.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.Ingest(ctx, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"name", req.Name,
			"error", err,
			"status_code", statusCode,
		)
		msg := "ingestion failed"
		if statusCode == http.StatusConflict {
			msg = err.Error()
		}
		h.writeError(w, statusCode, msg)
		return
	}
	log.Info("document accepted",
		"doc_id", resp.DocumentID,
		"name", resp.Name,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.documents == nil {
		h.writeError(w, http.StatusServiceUnavailable, "document storage is disabled")
		return
	}
	doc, err := h.documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			logger.FromContext(r.Context()).Error("loading document failed", "error", err)
			h.writeError(w, status, "loading document failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

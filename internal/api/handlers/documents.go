package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/remind/internal/api"
	"github.com/cloo-solutions/remind/internal/domain"
)

type DocumentIndexer interface {
	AddDocument(ctx context.Context, entry domain.CorpusEntry, metadata map[string]string) (string, int, error)
}

type DocumentHandler struct {
	svc DocumentIndexer
	now func() time.Time
}

func NewDocumentHandler(svc DocumentIndexer) *DocumentHandler {
	return &DocumentHandler{svc: svc, now: time.Now}
}

type AddDocumentRequest struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type DocumentResponse struct {
	ID     string `json:"id"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Chunks int    `json:"chunks"`
}

// Add indexes free text stamped with the current date and time.
func (h *DocumentHandler) Add(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		api.HandleError(w, domain.ErrIndexUnavailable)
		return
	}

	var req AddDocumentRequest
	if !api.Decode(w, r, &req, false) {
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		api.HandleError(w, domain.ErrEmptyDocument)
		return
	}

	now := h.now()
	entry := domain.CorpusEntry{
		Date: now.Format(domain.DateLayout),
		Time: now.Format(domain.TimeLayout),
		Text: text,
	}

	id, chunks, err := h.svc.AddDocument(r.Context(), entry, req.Metadata)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, DocumentResponse{
		ID:     id,
		Date:   entry.Date,
		Time:   entry.Time,
		Chunks: chunks,
	})
}

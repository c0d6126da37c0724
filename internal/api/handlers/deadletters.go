package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/remind/internal/api"
	"github.com/cloo-solutions/remind/internal/ledger"
	"github.com/cloo-solutions/remind/internal/pagination"
)

type DeadLetterLister interface {
	ListDeadLetters(ctx context.Context, cursor *pagination.Cursor, limit int) (*ledger.DeadLetterPage, error)
}

type DeadLetterHandler struct {
	store DeadLetterLister
}

func NewDeadLetterHandler(store DeadLetterLister) *DeadLetterHandler {
	return &DeadLetterHandler{store: store}
}

// List pages through captures whose extraction failed, newest first.
func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 100)
		}
	}

	var cursor *pagination.Cursor
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		decoded, err := pagination.DecodeCursor(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		cursor = decoded
	}

	page, err := h.store.ListDeadLetters(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, page)
}

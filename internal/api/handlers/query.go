package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cloo-solutions/remind/internal/api"
	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/cloo-solutions/remind/internal/service"
)

type RetrievalService interface {
	Ask(ctx context.Context, question string) (*service.Answer, error)
	Summarize(ctx context.Context, day time.Time) (*service.Answer, error)
}

// QueryHandler serves questions and day summaries. A nil service means no
// language model is configured.
type QueryHandler struct {
	svc RetrievalService
	now func() time.Time
}

func NewQueryHandler(svc RetrievalService) *QueryHandler {
	return &QueryHandler{svc: svc, now: time.Now}
}

type QueryRequest struct {
	Query string `json:"query"`
}

type SummaryRequest struct {
	Date string `json:"date"`
}

type SourceResponse struct {
	DocumentID string  `json:"document_id"`
	Date       string  `json:"date"`
	Time       string  `json:"time"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// AnswerResponse is written at the top level, without the data envelope,
// because existing chat front-ends read results[0] directly.
type AnswerResponse struct {
	Kind      string            `json:"kind"`
	Answer    string            `json:"answer"`
	Scope     string            `json:"scope,omitempty"`
	StartDate string            `json:"start_date,omitempty"`
	EndDate   string            `json:"end_date,omitempty"`
	Sources   []*SourceResponse `json:"sources"`
	Results   []string          `json:"results"`
}

func answerToResponse(a *service.Answer) *AnswerResponse {
	resp := &AnswerResponse{
		Kind:    string(a.Kind),
		Answer:  a.Answer,
		Scope:   string(a.Scope),
		Sources: make([]*SourceResponse, len(a.Sources)),
		Results: []string{a.Answer},
	}
	if !a.Range.IsZero() {
		resp.StartDate = a.Range.Start.Format(domain.DateLayout)
		resp.EndDate = a.Range.End.Format(domain.DateLayout)
	}
	for i, d := range a.Sources {
		resp.Sources[i] = &SourceResponse{
			DocumentID: d.DocumentID,
			Date:       d.Date,
			Time:       d.Time,
			Content:    d.Content,
			Score:      d.Score,
		}
	}
	return resp
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		api.HandleError(w, domain.ErrModelUnavailable)
		return
	}

	var req QueryRequest
	if !api.Decode(w, r, &req, false) {
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := h.svc.Ask(r.Context(), req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, answerToResponse(answer))
}

// Summary summarises one day; an empty date means today.
func (h *QueryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		api.HandleError(w, domain.ErrModelUnavailable)
		return
	}

	var req SummaryRequest
	if !api.Decode(w, r, &req, true) {
		return
	}

	day := h.now()
	if req.Date != "" {
		parsed, err := domain.ParseDate(req.Date)
		if err != nil {
			api.HandleError(w, domain.ErrInvalidDate)
			return
		}
		day = parsed
	}

	answer, err := h.svc.Summarize(r.Context(), day)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, answerToResponse(answer))
}

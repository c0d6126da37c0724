package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/cloo-solutions/remind/internal/telemetry"
)

// LanguageModel completes a prompt.
type LanguageModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const (
	classifySystem = "You route questions for a personal memory assistant that has a searchable record of " +
		"the text the user saw on their screen. Reply YES if the question can only be answered from that " +
		"record of the user's own activity. Reply NO if general knowledge is enough. Reply with one word."

	scopeSystem = "Decide which period of the user's screen history a question is about. Reply with exactly " +
		"one word from: TODAY, YESTERDAY, WEEK, MONTH, ALL. Use WEEK for this week, MONTH for this month, " +
		"and ALL when no period is implied."

	answerSystem = "You are a helpful assistant. Answer concisely."

	scopedSystem = "You answer questions about the user's own computer activity using only the screen " +
		"captures provided as context. Each capture starts with its date and time. If the context does " +
		"not contain the answer, say so."

	summarySystem = "Summarise what the user worked on during the day from the screen captures provided. " +
		"Group related activity and mention times where helpful."

	DefaultSearchLimit = 8
)

// AnswerKind tells the caller which path produced an answer.
type AnswerKind string

const (
	AnswerDirect        AnswerKind = "direct"
	AnswerScoped        AnswerKind = "scoped"
	AnswerNoInformation AnswerKind = "no_information"
)

// Answer is the result of a question or a day summary.
type Answer struct {
	Kind    AnswerKind                 `json:"kind"`
	Answer  string                     `json:"answer"`
	Scope   domain.Scope               `json:"scope,omitempty"`
	Range   domain.DateRange           `json:"-"`
	Sources []domain.RetrievedDocument `json:"sources,omitempty"`
}

// RetrievalGate decides whether a question needs the personal corpus and over
// which dates, then answers from the filtered documents only.
type RetrievalGate struct {
	llm      LanguageModel
	embedder EmbeddingClient
	index    ChunkIndex
	limit    int
	now      func() time.Time
}

func NewRetrievalGate(llm LanguageModel, embedder EmbeddingClient, index ChunkIndex, limit int) *RetrievalGate {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return &RetrievalGate{llm: llm, embedder: embedder, index: index, limit: limit, now: time.Now}
}

// NeedsPersonalCorpus asks the model whether the question is about the user's own activity.
func (g *RetrievalGate) NeedsPersonalCorpus(ctx context.Context, question string) (bool, error) {
	reply, err := g.llm.Complete(ctx, classifySystem, question)
	if err != nil {
		return false, fmt.Errorf("failed to classify question: %w", err)
	}
	return isAffirmative(reply), nil
}

func isAffirmative(reply string) bool {
	word := strings.ToUpper(strings.TrimSpace(reply))
	word = strings.TrimLeft(word, "\"'*` ")
	return strings.HasPrefix(word, "YES")
}

// ResolveScope maps the question onto a scope and a concrete range relative to now.
// Unrecognised replies resolve to ALL, which applies no date filter.
func (g *RetrievalGate) ResolveScope(ctx context.Context, question string) (domain.Scope, domain.DateRange, error) {
	reply, err := g.llm.Complete(ctx, scopeSystem, question)
	if err != nil {
		return "", domain.DateRange{}, fmt.Errorf("failed to resolve scope: %w", err)
	}
	scope := domain.ParseScope(reply)
	return scope, domain.ResolveRange(scope, g.now()), nil
}

// Retrieve returns the nearest documents whose date falls inside rng.
func (g *RetrievalGate) Retrieve(ctx context.Context, query string, rng domain.DateRange) ([]domain.RetrievedDocument, error) {
	if g.index == nil {
		return nil, domain.ErrIndexUnavailable
	}
	embedding, err := g.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	docs, err := g.index.SearchByEmbedding(ctx, embedding, rng, g.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return FilterByRange(docs, rng), nil
}

// FilterByRange keeps documents whose date lies in rng, inclusive. When rng is
// active, documents without a parseable date are dropped.
func FilterByRange(docs []domain.RetrievedDocument, rng domain.DateRange) []domain.RetrievedDocument {
	if rng.IsZero() {
		return docs
	}
	out := make([]domain.RetrievedDocument, 0, len(docs))
	for _, d := range docs {
		day, err := domain.ParseDate(d.Date)
		if err != nil {
			continue
		}
		if rng.Contains(day) {
			out = append(out, d)
		}
	}
	return out
}

// Ask answers a question. General questions go straight to the model; personal
// ones are answered only from documents in the resolved range, and an empty
// result yields a no-information answer instead of an unscoped one.
func (g *RetrievalGate) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	ctx, span := telemetry.StartSpan(ctx, "ask")
	defer span.Finish()

	personal, err := g.NeedsPersonalCorpus(ctx, question)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if !personal {
		reply, err := g.llm.Complete(ctx, answerSystem, question)
		if err != nil {
			span.SetError(err)
			return nil, fmt.Errorf("failed to answer: %w", err)
		}
		span.SetTag("kind", string(AnswerDirect))
		return &Answer{Kind: AnswerDirect, Answer: reply}, nil
	}

	scope, rng, err := g.ResolveScope(ctx, question)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	span.SetTag("scope", string(scope))

	docs, err := g.Retrieve(ctx, question, rng)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(docs) == 0 {
		log.Printf("%sask: no documents for %s (%s)", telemetry.LogPrefix(ctx), scope, rng)
		return noInformation(scope, rng), nil
	}

	reply, err := g.llm.Complete(ctx, scopedSystem, buildPrompt(docs, "Question: "+question))
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to answer: %w", err)
	}
	return &Answer{Kind: AnswerScoped, Answer: reply, Scope: scope, Range: rng, Sources: docs}, nil
}

// Summarize describes one day's activity from that day's documents only.
func (g *RetrievalGate) Summarize(ctx context.Context, day time.Time) (*Answer, error) {
	ctx, span := telemetry.StartSpan(ctx, "summary")
	defer span.Finish()

	rng := domain.SingleDay(day)
	docs, err := g.Retrieve(ctx, "Date: "+day.Format(domain.DateLayout), rng)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if len(docs) == 0 {
		log.Printf("%ssummary: no documents for %s", telemetry.LogPrefix(ctx), rng)
		return noInformation("", rng), nil
	}

	reply, err := g.llm.Complete(ctx, summarySystem, buildPrompt(docs, "Summarise "+rng.String()+"."))
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to summarise: %w", err)
	}
	return &Answer{Kind: AnswerScoped, Answer: reply, Range: rng, Sources: docs}, nil
}

func noInformation(scope domain.Scope, rng domain.DateRange) *Answer {
	return &Answer{
		Kind:   AnswerNoInformation,
		Answer: fmt.Sprintf("I have no information for %s.", rng),
		Scope:  scope,
		Range:  rng,
	}
}

func buildPrompt(docs []domain.RetrievedDocument, tail string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, d := range docs {
		b.WriteString(d.Content)
		b.WriteString("\n\n")
	}
	b.WriteString(tail)
	return b.String()
}

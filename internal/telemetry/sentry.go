// Package telemetry reports pipeline cycles and request traces to Sentry.
// Every function is a no-op until Init is called with a DSN.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

const serviceName = "remindd"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// unsampledOps are root operations never traced: health checks and capture
// ticks, which fire every couple of seconds and carry no useful trace.
var unsampledOps = map[string]bool{
	"http.server GET /health": true,
	"pipeline.capture":        true,
}

// Init initializes Sentry with tracing enabled and returns a flush function.
// If DSN is empty, returns a no-op shutdown function.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler:    tracesSampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// tracesSampler drops unsampledOps and health checks, follows the parent
// decision for child spans, and applies rate to everything else.
func tracesSampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		span := ctx.Span
		if span.Name == "GET /health" || unsampledOps[span.Op] {
			return 0
		}
		if span.ParentSpanID != (sentry.SpanID{}) {
			if span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// Span wraps sentry.Span; the zero value is usable.
type Span struct {
	inner *sentry.Span
}

// Finish ends the span.
func (s *Span) Finish() {
	if s != nil && s.inner != nil {
		s.inner.Finish()
	}
}

// SetTag attaches a searchable tag, e.g. the resolved scope of a query.
func (s *Span) SetTag(key, value string) {
	if s != nil && s.inner != nil {
		s.inner.SetTag(key, value)
	}
}

// SetData attaches a value such as the number of records in a cycle.
func (s *Span) SetData(key string, value any) {
	if s != nil && s.inner != nil {
		s.inner.SetData(key, value)
	}
}

// SetError marks the span as errored and captures the exception.
func (s *Span) SetError(err error) {
	if s == nil || s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	CaptureError(s.inner.Context(), err)
}

// StartSpan starts a child span when ctx carries one, else a new transaction
// with op "pipeline.<name>". The span is tagged with the request id, if any.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span := &Span{inner: parent.StartChild(name)}
		span.tagRequest(ctx)
		return span.inner.Context(), span
	}
	return StartTransaction(ctx, name, "pipeline."+name)
}

// StartTransaction creates a root span; used for HTTP requests and background cycles.
func StartTransaction(ctx context.Context, name string, op string) (context.Context, *Span) {
	options := []sentry.SpanOption{sentry.WithTransactionName(name)}
	if op != "" {
		options = append(options, sentry.WithOpName(op))
	}
	span := &Span{inner: sentry.StartSpan(ctx, op, options...)}
	span.tagRequest(ctx)
	return span.inner.Context(), span
}

func (s *Span) tagRequest(ctx context.Context) {
	if id := RequestID(ctx); id != "" {
		s.SetTag("request_id", id)
	}
}

// CaptureError captures an error to Sentry with the current context.
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
}

// AddBreadcrumb records a pipeline step on the current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
	} else {
		sentry.AddBreadcrumb(breadcrumb)
	}
}

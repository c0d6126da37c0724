package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoDSN(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	assert.NotPanics(t, shutdown)
}

func TestSpan_WithoutSentry(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "consolidate")
	require.NotNil(t, ctx)

	assert.NotPanics(t, func() {
		span.SetTag("scope", "TODAY")
		span.SetData("records", 3)
		span.SetError(errors.New("boom"))
		span.Finish()
		CaptureError(ctx, errors.New("boom"))
		CaptureError(ctx, nil)
		AddBreadcrumb(ctx, "ingest", "recorded capture")
	})
}

func TestSpan_NilSafe(t *testing.T) {
	var span *Span
	assert.NotPanics(t, func() {
		span.SetTag("k", "v")
		span.Finish()
	})
}

func TestTracesSampler(t *testing.T) {
	sample := tracesSampler(0.25)

	root := func(name, op string) sentry.SamplingContext {
		return sentry.SamplingContext{Span: &sentry.Span{Name: name, Op: op}}
	}

	assert.Equal(t, 0.0, sample(root("GET /health", "http.server")))
	assert.Equal(t, 0.0, sample(root("capture", "pipeline.capture")))
	assert.Equal(t, 0.25, sample(root("consolidate", "pipeline.consolidate")))

	child := &sentry.Span{Name: "embed", Op: "pipeline.embed", ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledTrue}
	assert.Equal(t, 1.0, sample(sentry.SamplingContext{Span: child}))

	child.Sampled = sentry.SampledFalse
	assert.Equal(t, 0.0, sample(sentry.SamplingContext{Span: child}))
}

func TestStartSpan_TagsRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")

	ctx, root := StartSpan(ctx, "ask")
	defer root.Finish()
	assert.Equal(t, "req-42", root.inner.Tags["request_id"])

	_, child := StartSpan(ctx, "retrieve")
	defer child.Finish()
	assert.Equal(t, "req-42", child.inner.Tags["request_id"])

	_, plain := StartSpan(context.Background(), "consolidate")
	defer plain.Finish()
	assert.NotContains(t, plain.inner.Tags, "request_id")
}

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, LogPrefix(ctx))
	assert.Equal(t, ctx, WithRequestID(ctx, ""))

	ctx = WithRequestID(ctx, "abc")
	assert.Equal(t, "abc", RequestID(ctx))
	assert.Equal(t, "[req abc] ", LogPrefix(ctx))
}

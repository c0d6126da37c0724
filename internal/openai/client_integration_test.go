//go:build integration

package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_GenerateEmbedding_RealAPI(t *testing.T) {
	client, err := NewClientFromEnv()
	if err != nil {
		t.Skip("REMIND_OPENAI_API_KEY not set, skipping integration test")
	}

	embedding, err := client.GenerateEmbedding(context.Background(), "Quarterly report draft open in the editor.")

	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestIntegration_Complete_RealAPI(t *testing.T) {
	client, err := NewClientFromEnv()
	if err != nil {
		t.Skip("REMIND_OPENAI_API_KEY not set, skipping integration test")
	}

	reply, err := client.Complete(context.Background(), "Answer with one word.", "Say YES.")

	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}

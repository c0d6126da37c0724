package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Short(t *testing.T) {
	chunks := chunkText("  hello world  ", ChunkConfig{MaxChars: 100, MinChars: 10})
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, chunkText("   ", ChunkConfig{MaxChars: 100}))
}

func TestChunkText_SplitsOnWhitespaceWithOverlap(t *testing.T) {
	text := strings.Repeat("word ", 100)
	chunks := chunkText(text, ChunkConfig{MaxChars: 60, MinChars: 20, Overlap: 10})

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 60)
		assert.False(t, strings.HasPrefix(c, " "))
	}
}

func TestChunkText_CoversWholeText(t *testing.T) {
	text := strings.Repeat("x", 1000)
	chunks := chunkText(text, ChunkConfig{MaxChars: 100})
	assert.Len(t, chunks, 10)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunker_FallbackWindows(t *testing.T) {
	c := &Chunker{tokens: 10, overlap: 2}

	assert.Equal(t, []string{"short"}, c.Split("short"))
	assert.Nil(t, c.Split(""))

	long := strings.Repeat("abc ", 50)
	chunks := c.Split(long)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 40)
	}
}

func TestNewChunker_LoadsEmbeddedEncoding(t *testing.T) {
	c := NewChunker(20, 5)
	require.NotNil(t, c.enc, "cl100k_base ranks should load without network access")

	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasPrefix(chunks[0], "the quick brown fox"))
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(c.enc.Encode(chunk, nil, nil)), 20)
	}
}

func TestNewChunker_Defaults(t *testing.T) {
	c := NewChunker(0, -1)
	assert.Equal(t, DefaultChunkTokens, c.tokens)
	assert.Equal(t, DefaultChunkOverlap, c.overlap)
}

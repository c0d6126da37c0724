package service

import (
	"log"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const (
	DefaultChunkTokens  = 500
	DefaultChunkOverlap = 100
	chunkEncoding       = "cl100k_base"
	// charsPerToken approximates token windows when no encoder is available.
	charsPerToken = 4
)

// The BPE ranks ship embedded in the binary, so building a chunker never
// reaches the network.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// ChunkConfig controls the character-window fallback chunker.
type ChunkConfig struct {
	MaxChars int
	MinChars int
	Overlap  int
}

// Chunker splits entry text into overlapping token windows. When the BPE ranks
// cannot be loaded it falls back to character windows of the same approximate size.
type Chunker struct {
	tokens  int
	overlap int
	enc     *tiktoken.Tiktoken
}

func NewChunker(tokens, overlap int) *Chunker {
	if tokens <= 0 {
		tokens = DefaultChunkTokens
	}
	if overlap < 0 || overlap >= tokens {
		overlap = min(DefaultChunkOverlap, tokens/5)
	}
	c := &Chunker{tokens: tokens, overlap: overlap}

	enc, err := tiktoken.GetEncoding(chunkEncoding)
	if err != nil {
		log.Printf("chunker: %s unavailable, using character windows: %v", chunkEncoding, err)
		return c
	}
	c.enc = enc
	return c
}

// Split returns the chunks of text in order. Blank text yields no chunks.
func (c *Chunker) Split(text string) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if c.enc == nil {
		return chunkText(clean, c.charConfig())
	}

	ids := c.enc.Encode(clean, nil, nil)
	if len(ids) <= c.tokens {
		return []string{clean}
	}

	step := c.tokens - c.overlap
	chunks := make([]string, 0, len(ids)/step+1)
	for start := 0; start < len(ids); start += step {
		end := min(start+c.tokens, len(ids))
		piece := strings.TrimSpace(strings.ToValidUTF8(c.enc.Decode(ids[start:end]), ""))
		if piece != "" {
			chunks = append(chunks, piece)
		}
		if end == len(ids) {
			break
		}
	}
	return chunks
}

func (c *Chunker) charConfig() ChunkConfig {
	maxChars := c.tokens * charsPerToken
	return ChunkConfig{
		MaxChars: maxChars,
		MinChars: maxChars / 3,
		Overlap:  c.overlap * charsPerToken,
	}
}

// chunkText cuts runes into windows of at most MaxChars, preferring a whitespace
// boundary after MinChars, with Overlap runes shared between neighbours.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		end := min(start+cfg.MaxChars, len(runes))
		if end < len(runes) {
			minCut := start + cfg.MinChars
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= len(runes) {
			break
		}

		next := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			next = end - cfg.Overlap
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

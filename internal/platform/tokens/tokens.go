package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// DefaultMaterialTokens bounds material text embedded in an adaptation prompt.
const DefaultMaterialTokens = 6000

// Limiter counts and truncates text with the GPT-4 encoding, which is a close
// enough approximation for every supported backend. Without a codec it falls
// back to four characters per token.
type Limiter struct {
	codec     tokenizer.Codec
	maxTokens int
}

func NewLimiter(maxTokens int) (*Limiter, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaterialTokens
	}
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return &Limiter{maxTokens: maxTokens}, fmt.Errorf("tokenizer codec: %w", err)
	}
	return &Limiter{codec: codec, maxTokens: maxTokens}, nil
}

func (l *Limiter) MaxTokens() int { return l.maxTokens }

func (l *Limiter) Count(text string) int {
	if l.codec == nil {
		return len(text) / 4
	}
	n, err := l.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// Truncate keeps the first maxTokens tokens and reports whether anything was cut.
func (l *Limiter) Truncate(text string) (string, bool) {
	if l.codec == nil {
		maxChars := l.maxTokens * 4
		r := []rune(text)
		if len(r) <= maxChars {
			return text, false
		}
		return string(r[:maxChars]), true
	}
	ids, _, err := l.codec.Encode(text)
	if err != nil || len(ids) <= l.maxTokens {
		return text, false
	}
	out, err := l.codec.Decode(ids[:l.maxTokens])
	if err != nil {
		return text, false
	}
	return out, true
}

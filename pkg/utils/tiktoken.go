// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"fmt"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts and trims text in model tokens. Local and hosted
// models tokenize differently; GPT-4 encoding is used as the approximation
// for all of them.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter creates a new token counter.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TruncateToTokenLimit returns the longest token-aligned prefix of text
// that fits within limit tokens. Text already within the limit is returned
// unchanged.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if tc == nil || tc.codec == nil {
		return truncateBytes(text, limit*4)
	}

	ids, _, err := tc.codec.Encode(text)
	if err != nil || len(ids) <= limit {
		return text
	}

	truncated, err := tc.codec.Decode(ids[:limit])
	if err != nil {
		return truncateBytes(text, limit*4)
	}
	return truncated
}

// truncateBytes cuts text to at most n bytes without splitting a rune.
func truncateBytes(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	counter, err := NewTokenCounter()
	require.NoError(t, err)

	tests := []struct {
		text      string
		minTokens int
		maxTokens int
	}{
		{"", 0, 0},
		{"Hello", 1, 2},
		{"Hello world", 2, 3},
		{strings.Repeat("word ", 100), 90, 110},
	}

	for _, tt := range tests {
		tokens := counter.CountTokens(tt.text)
		assert.GreaterOrEqual(t, tokens, tt.minTokens, tt.text)
		assert.LessOrEqual(t, tokens, tt.maxTokens, tt.text)
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	counter, err := NewTokenCounter()
	require.NoError(t, err)

	short := "The arrows overlap."
	assert.Equal(t, short, counter.TruncateToTokenLimit(short, 100))

	long := strings.Repeat("participant spacing is too tight ", 200)
	truncated := counter.TruncateToTokenLimit(long, 50)
	assert.LessOrEqual(t, counter.CountTokens(truncated), 50)
	assert.True(t, strings.HasPrefix(long, truncated))

	assert.Empty(t, counter.TruncateToTokenLimit(long, 0))
}

func TestNilTokenCounterEstimates(t *testing.T) {
	var counter *TokenCounter
	assert.Equal(t, 2, counter.CountTokens("12345678"))
	assert.Equal(t, "1234", counter.TruncateToTokenLimit("12345678", 1))
}

func TestNilTokenCounterKeepsRunesWhole(t *testing.T) {
	var counter *TokenCounter
	// "à" is two bytes; a four-byte cut would split the second one.
	out := counter.TruncateToTokenLimit("aàà", 1)
	assert.Equal(t, "aà", out)
	assert.True(t, utf8.ValidString(out))

	assert.Equal(t, "", counter.TruncateToTokenLimit("日本語", 0))
	assert.Equal(t, "日", counter.TruncateToTokenLimit("日本語", 1))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "rules.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":2}`), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))
	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Dir(path)))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "API_Gateway", SanitizeIdentifier("API Gateway"))
	assert.Equal(t, "order_service", SanitizeIdentifier("order-service"))
	assert.Equal(t, "A", SanitizeIdentifier("A"))
	assert.Equal(t, "_", SanitizeIdentifier("  "))
	assert.True(t, IsSimpleIdentifier("Billing_1"))
	assert.False(t, IsSimpleIdentifier("Billing Service"))
	assert.False(t, IsSimpleIdentifier(""))
}

func TestScalarConversions(t *testing.T) {
	n, ok := AsInt(float64(10))
	assert.True(t, ok)
	assert.Equal(t, 10, n)
	_, ok = AsInt(2.5)
	assert.False(t, ok)
	n, ok = AsInt(" 7 ")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	assert.True(t, Truthy(true))
	assert.True(t, Truthy("yes"))
	assert.False(t, Truthy("false"))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy(nil))
}

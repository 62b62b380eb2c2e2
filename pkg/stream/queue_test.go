package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeStartID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "0-0"},
		{"zero shorthand", "0", "0-0"},
		{"valid full id", "1700000000000-3", "1700000000000-3"},
		{"valid ms only", "1700000000000", "1700000000000"},
		{"now marker", "$", "$"},
		{"garbage", "not-an-id", "0-0"},
		{"whitespace", "   ", "0-0"},
		{"sql injection attempt", "'; DROP TABLE x;--", "0-0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeStartID(tt.input))
		})
	}
}

func TestExtractPayload(t *testing.T) {
	data, ok := extractPayload(map[string]any{"data": "hello"})
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), data)

	data, ok = extractPayload(map[string]any{"data": []byte("bytes")})
	assert.True(t, ok)
	assert.Equal(t, []byte("bytes"), data)

	_, ok = extractPayload(map[string]any{"other": "x"})
	assert.False(t, ok)

	_, ok = extractPayload(map[string]any{"data": 42})
	assert.False(t, ok)
}

func TestStreamNames(t *testing.T) {
	assert.Equal(t, "task:input:abc", InputStream("abc"))
	assert.Equal(t, "task:output:abc", OutputStream("abc"))
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name     string
		mode     CompareMode
		expected string
		got      string
		want     bool
	}{
		{"identical", CompareLines, "15\n", "15\n", true},
		{"missing final newline", CompareLines, "15\n", "15", true},
		{"trailing spaces", CompareLines, "1 2 3\n", "1 2 3   \n", true},
		{"crlf", CompareLines, "a\nb\n", "a\r\nb\r\n", true},
		{"trailing blank lines", CompareLines, "a\n", "a\n\n\n", true},
		{"leading space matters", CompareLines, "a\n", " a\n", false},
		{"inner blank line matters", CompareLines, "a\nb\n", "a\n\nb\n", false},
		{"different value", CompareLines, "6\n", "7\n", false},
		{"strict newline", CompareStrict, "15\n", "15", false},
		{"strict equal", CompareStrict, "15\n", "15\n", true},
		{"tokens reflow", CompareTokens, "1 2\n3\n", "1\n2 3", true},
		{"tokens differ", CompareTokens, "1 2 3", "1 2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.mode, tt.expected, tt.got))
		})
	}
}

func TestFirstDifference(t *testing.T) {
	line, exp, act, ok := FirstDifference(CompareLines, "1\n2\n3\n", "1\n2\n4\n")
	assert.True(t, ok)
	assert.Equal(t, 3, line)
	assert.Equal(t, "3", exp)
	assert.Equal(t, "4", act)

	line, exp, act, ok = FirstDifference(CompareLines, "1\n2\n", "1\n")
	assert.True(t, ok)
	assert.Equal(t, 2, line)
	assert.Equal(t, "2", exp)
	assert.Equal(t, "<EOF>", act)

	_, _, _, ok = FirstDifference(CompareTokens, "1 2", "1\n2\n")
	assert.False(t, ok)
}

func TestParseCompareMode(t *testing.T) {
	m, err := ParseCompareMode("")
	assert.NoError(t, err)
	assert.Equal(t, CompareLines, m)

	m, err = ParseCompareMode("STRICT")
	assert.NoError(t, err)
	assert.Equal(t, CompareStrict, m)

	_, err = ParseCompareMode("fuzzy")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 3))
	assert.Equal(t, "ab...", truncate("abc", 2))
	assert.Equal(t, "ąč...", truncate("ąčę", 2))
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(nil))
	assert.Equal(t, 1, countLines([]byte("5")))
	assert.Equal(t, 2, countLines([]byte("5\n1 2 3 4 5\n")))
}

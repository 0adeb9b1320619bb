package chunk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestSplitDegenerateInput(t *testing.T) {
	t.Parallel()

	for _, content := range []string{"", "   ", "\n\t \r\n"} {
		assert.Empty(t, Split(content, 10), "content %q", content)
	}
}

func TestSplitSizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		wordCount  int
		maxWords   int
		wantChunks int
		wantLast   int
	}{
		{name: "single short chunk", wordCount: 5, maxWords: 10, wantChunks: 1, wantLast: 5},
		{name: "exact multiple", wordCount: 30, maxWords: 10, wantChunks: 3, wantLast: 10},
		{name: "remainder", wordCount: 25, maxWords: 10, wantChunks: 3, wantLast: 5},
		{name: "one word per chunk", wordCount: 4, maxWords: 1, wantChunks: 4, wantLast: 1},
		{name: "default limit", wordCount: 1700, maxWords: 0, wantChunks: 3, wantLast: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			chunks := Split(words(tt.wordCount), tt.maxWords)
			require.Len(t, chunks, tt.wantChunks)

			limit := tt.maxWords
			if limit <= 0 {
				limit = DefaultMaxWords
			}
			for _, c := range chunks {
				assert.LessOrEqual(t, c.WordCount, limit)
			}
			assert.Equal(t, tt.wantLast, chunks[len(chunks)-1].WordCount)
		})
	}
}

func TestSplitCoverage(t *testing.T) {
	t.Parallel()

	content := "  The quick\tbrown fox\n\njumps over   the lazy dog.\r\nIt was   not amused.  "
	chunks := Split(content, 3)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].StartWord)
	assert.Equal(t, WordCount(content), chunks[len(chunks)-1].EndWord)

	joined := make([]string, len(chunks))
	for i, c := range chunks {
		assert.Equal(t, i, c.Index, "indices are contiguous from zero")
		assert.Equal(t, c.EndWord-c.StartWord, c.WordCount)
		if i > 0 {
			assert.Equal(t, chunks[i-1].EndWord, c.StartWord, "chunks are contiguous and non-overlapping")
		}
		joined[i] = c.Content
	}

	assert.Equal(t, strings.Join(strings.Fields(content), " "), strings.Join(joined, " "))
}

func TestSplitDeterministic(t *testing.T) {
	t.Parallel()

	content := words(2345)
	assert.Equal(t, Split(content, 800), Split(content, 800))
}

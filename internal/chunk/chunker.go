// Package chunk splits source text into bounded word-count segments.
package chunk

import (
	"strings"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// DefaultMaxWords is the chunk size used when callers pass a non-positive
// limit.
const DefaultMaxWords = 800

// Split breaks content into chunks of at most maxWords words. Words are the
// non-empty tokens between whitespace runs; each chunk's Content is its words
// joined by single spaces. Empty or whitespace-only content yields no chunks.
func Split(content string, maxWords int) []domain.Chunk {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]domain.Chunk, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunks = append(chunks, domain.Chunk{
			Index:     len(chunks),
			Content:   strings.Join(words[start:end], " "),
			WordCount: end - start,
			StartWord: start,
			EndWord:   end,
		})
	}
	return chunks
}

// WordCount returns the number of words Split would see in content.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

package domain

// Chunk is a contiguous word range of a job's source content.
// [StartWord, EndWord) is half-open over the whitespace-split words.
type Chunk struct {
	Index     int    `json:"index"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	StartWord int    `json:"start_word"`
	EndWord   int    `json:"end_word"`
}

// ChunkResult is the outcome of generating notes for one chunk.
// When Err is non-nil, Content is empty.
type ChunkResult struct {
	ChunkIndex int
	Content    string
	Err        error
	Attempts   int
}

// Failed reports whether the chunk produced no usable content.
func (r ChunkResult) Failed() bool {
	return r.Err != nil
}

// FailedChunkRecord identifies a portion of the source that was not
// processed.
type FailedChunkRecord struct {
	Index     int    `json:"index"`
	Reason    string `json:"reason"`
	Attempts  int    `json:"attempts"`
	StartWord int    `json:"start_word"`
	EndWord   int    `json:"end_word"`
}

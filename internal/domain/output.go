package domain

// JobOutput is the result of a successful or partially successful job.
type JobOutput struct {
	Notes          string              `json:"notes"`
	Summary        string              `json:"summary"`
	Quiz           Quiz                `json:"quiz"`
	PartialSuccess bool                `json:"partial_success"`
	FailedChunks   []FailedChunkRecord `json:"failed_chunks,omitempty"`
	Warnings       []string            `json:"warnings,omitempty"`
	ChunkCount     int                 `json:"chunk_count"`
	WordCount      int                 `json:"word_count"`
}

package task

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/generation"
)

// Pipeline stages recorded in a failed job's error details.
const (
	StageDecode    = "decode"
	StageExtract   = "extract"
	StageChunk     = "chunk"
	StageAggregate = "aggregate"
	StageQuiz      = "quiz"
	StageSummary   = "summary"
	StageWorker    = "worker"
)

// StageError attributes a job failure to a pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered panic from job processing.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job processing panicked: %v", e.Value)
}

// errorDetails builds the structured diagnostics stored with a failed job.
func errorDetails(err error) *domain.ErrorDetails {
	d := &domain.ErrorDetails{Stage: StageWorker}

	var stageErr *StageError
	if errors.As(err, &stageErr) {
		d.Stage = stageErr.Stage
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		d.Panic = true
	}

	var svcErr *generation.ServiceError
	if errors.As(err, &svcErr) {
		d.Kind = string(svcErr.Kind)
	}

	var allFailed *generation.AllChunksFailedError
	if errors.As(err, &allFailed) {
		d.FailedChunks = allFailed.FailedChunks
		if d.Kind == "" && len(allFailed.FailedChunks) > 0 {
			d.Kind = "allChunksFailed"
		}
	}
	return d
}

// Package domain contains the core entities of the content-processing
// pipeline: jobs and their typed inputs, chunks, quizzes and job output.
// It is independent of any storage, transport or generation provider.
package domain

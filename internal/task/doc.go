// Package task runs queued jobs in the background.
//
// A Pool polls the queue and hands each claimed job to a Processor on its
// own goroutine, bounded by a fixed number of capacity tokens. JobProcessor
// is the content pipeline, and Reaper recovers jobs whose worker died.
package task

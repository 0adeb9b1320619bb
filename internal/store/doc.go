// Package store defines the persistence contract for processing jobs.
// The interface abstracts the underlying storage mechanism so the queue
// service and workers stay independent of a specific database; the
// memory and postgres packages provide the implementations.
package store

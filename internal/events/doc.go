// Package events carries job change notifications from the queue to
// whoever is watching a user's jobs.
//
// The queue publishes a JobEvent after every successful transition. A
// Broker delivers events to in-process subscribers keyed by user ID, and
// FanOut forwards to several publishers at once so a database notifier can
// relay events between processes.
package events

// Package service contains the application use cases that sit between the
// HTTP layer and the job queue.
//
// JobService applies the ownership rules for a user's jobs: a user can only
// see, cancel, retry or locate jobs they submitted. It translates disallowed
// queue transitions into sentinel errors the API layer maps to status codes.
//
// The auth subpackage issues and validates the bearer tokens that identify
// the caller.
package service

// Package api handles incoming HTTP requests for the job API: request
// decoding and validation, ownership-checked job operations, rendered notes
// and the per-user event stream. Handlers translate service errors into
// status codes and never expose internal error text.
package api

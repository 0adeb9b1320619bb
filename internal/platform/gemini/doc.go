// Package gemini provides an implementation of the generation.Client
// interface backed by Google's Gemini API.
//
// This package is an infrastructure adapter: it translates a
// generation.Request into a GenerateContent call and maps every failure into
// a classified *generation.ServiceError. It performs no retries; retry and
// timeout policy belong to the callers in the generation package.
package gemini

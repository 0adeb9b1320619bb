// Package postgres implements the job store on PostgreSQL through the pgx
// database/sql driver. It also owns the embedded schema migrations and the
// LISTEN/NOTIFY bridge that relays job events between processes.
package postgres

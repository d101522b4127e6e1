// Package postgres provides the PostgreSQL backend for the quota counter.
// It owns the connection setup, the embedded goose migrations for its single
// table, and the mapping of driver errors onto the domain error taxonomy.
package postgres

// Package testutils provides helpers shared by package tests: a slog handler
// that records entries for assertions and HTTP response helpers.
package testutils

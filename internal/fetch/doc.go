// Package fetch retrieves the complete record set exposed by a caller-supplied
// HTTP endpoint. It validates the endpoint URL before any network traffic,
// walks the endpoint's pages until they are exhausted, and sniffs each
// response for the common envelope shapes (bare array, "data" array, "list"
// array, single object).
package fetch

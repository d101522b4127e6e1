// Package api exposes the task pipeline over HTTP: REST endpoints for
// submission, inspection, quota and artifact reveal, and a WebSocket endpoint
// that streams task events to subscribers. It translates HTTP concerns into
// calls on the task registry and maps domain errors to status codes.
package api

// Package events fans task state changes out to subscribers.
//
// The primary components are:
// - Event: a task snapshot tagged with a Kind (task-update, task-completed, error)
// - Subscriber: anything that can receive events, such as a client connection
// - Bus: the in-memory publisher that delivers each event to every subscriber
//
// Delivery is best-effort and live only. A subscriber that joins late sees no
// earlier events, and a failing or panicking subscriber never affects the
// publisher or the other subscribers.
package events

// Package domain contains the core entities of the report pipeline: tasks and
// their lifecycle states, the immutable submission request, raw source records
// and the error taxonomy shared by every pipeline stage. It has no knowledge of
// transport, storage or rendering.
package domain

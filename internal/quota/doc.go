// Package quota enforces the local artifact budget: a daily count of
// written artifacts that survives restarts, and a per-artifact byte cap.
//
// The counter is owned by a Ledger. Admission and commit run under the
// ledger's mutex, and Reserve holds an in-memory slot between the two so
// concurrent tasks cannot push the persisted count past the limit.
package quota

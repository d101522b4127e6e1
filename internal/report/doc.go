// Package report turns one day's records into a tabular artifact and stores
// it under the process-owned data root.
//
// The first object record's keys define the column order. Values missing from
// a record, or null, become empty cells; nested objects and arrays are written
// as compact JSON. Rendering is deterministic for identical input.
package report

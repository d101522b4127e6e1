// Package task owns the lifecycle of report tasks: the registry that holds
// every task's state, the pipeline that takes a task from submission to a
// terminal state, and the bounded worker pool that runs pipelines in the
// background.
package task

// Package engine ties the workflow resolver and scheduler together. It runs the
// phases of a workflow in order, dispatches runnable actors in concurrent
// batches, halts on inhibitors where a phase policy asks for it, and persists
// a snapshot after every step.
package engine

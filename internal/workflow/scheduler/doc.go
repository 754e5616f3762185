// Package scheduler turns resolver snapshots into runnable batches that respect
// dependency order plus runtime constraints such as parallelism limits and
// actors disabled for a run.
package scheduler

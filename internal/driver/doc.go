// Package driver runs lookup workloads across a fixed pool of workers.
//
// A run partitions the workload into contiguous slices, one per worker. Each
// worker runs on its own locked OS thread with a private index copy, private
// file handles, a private page pool and its own counters, and pushes every
// query through refine, fetch and resolve. The driver joins all workers
// before merging their counters; nothing mutable is shared while they run.
// The first worker error cancels the others and fails the run.
package driver

// Package dispatcher drains the shared job queue with a fixed-width worker
// pool.
//
// Each round claims as many pending jobs as there are free workers and runs
// them concurrently through the analysis orchestrator. A finished job is
// written back as done or failed immediately. When nothing is claimable but
// other processes still hold running jobs, the dispatcher polls until they
// finish. Run returns once the queue has no pending or running jobs left.
//
// Every job is its own failure domain: errors and panics mark only that job
// failed, and the loop keeps serving the rest of the queue.
package dispatcher

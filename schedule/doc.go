// Package schedule serializes access to the reasoning backend. All backend
// calls in the process flow through one Scheduler which dispatches exactly
// one call at a time, highest priority first and FIFO within equal priority.
//
// The scheduler absorbs rate-limit signals from the backend into a cooldown
// window and expires requests that wait too long. It never retries: a failed
// request is rejected back to its caller, which falls back to a safe default
// and tries again on a later tick.
package schedule

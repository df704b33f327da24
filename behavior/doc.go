// Package behavior implements the per-agent action state machine. A Machine
// executes one action at a time, driven by an external Tick, and reports
// completion through callbacks rather than blocking.
//
// Actions chain through their declared continuation lists: when an action
// settles, the continuations for that outcome are prepended to the pending
// queue. Starting a new action cancels the current one silently and drops
// queued continuations.
package behavior

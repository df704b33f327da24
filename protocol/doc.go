// Package protocol defines the fixed message vocabulary agents use to
// coordinate task state and a Router that maintains per-task contexts and
// fans messages out to registered handlers.
//
// The Router is a log-and-continue bus, not guaranteed delivery: a message
// referencing an unknown task is still broadcast, and handler errors never
// abort the fan-out.
package protocol

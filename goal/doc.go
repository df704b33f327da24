// Package goal implements the per-agent escalation controller. It drives
// tick cadence from goal priority, evaluates progress on a fixed cadence,
// detects diminishing returns over a rolling score window, and decides when
// stalling justifies paying for deeper reasoning. Escalation spend is
// bounded per difficulty tier; an exhausted budget upgrades the tier, grants
// a one-time runway, or abandons the goal.
package goal

// Package agent implements the per-agent task protocol: decomposing an
// incoming task through the reasoning backend, self-critiquing the plan,
// delegating sub-tasks to other agents, executing owned sub-tasks on the
// behavior machine, replanning on failure within a bounded budget, and
// distilling lessons into memory when the task settles.
package agent

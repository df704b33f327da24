// Package core provides the foundational domain types and collaborator
// interfaces used by Gridmind. It defines the core abstractions for:
//
//   - Actions (closed set of composable movement / communication behaviors)
//   - Conditions (closed set of mechanically checkable world predicates)
//   - Sub-tasks and goals (units of decomposed and escalated work)
//   - Pluggable collaborators: reasoning backend, world query, pathfinder
//     and memory store
//   - The shared error taxonomy for backend, queue and planning failures
//
// The package intentionally keeps implementation concerns (scheduling,
// behavior execution, protocol routing) out of scope, exposing small types
// and interfaces so hosts can supply custom backends and world models.
package core

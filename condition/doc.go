// Package condition evaluates core.Condition predicates against a read-only
// world view and an explicit episode flag store. Evaluation is pure: the
// evaluator never mutates world state and never calls the reasoning backend.
// Describe renders any condition as deterministic human-readable text.
package condition

// Package memory provides memory store implementations for agent lessons and
// observations. The in-memory store is volatile and process local; production
// hosts supply an embedding-backed implementation of core.MemoryStore.
package memory

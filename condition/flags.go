package condition

import "sync"

// Flags is an explicit key set backing core.FlagSet conditions. It replaces a
// hidden process-wide singleton so tests and hosts can isolate instances; the
// host resets it at episode start via ClearAll. Safe for concurrent use.
type Flags struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

// NewFlags constructs an empty flag store.
func NewFlags() *Flags {
	return &Flags{set: make(map[string]struct{})}
}

// Set marks the flag as present.
func (f *Flags) Set(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[key] = struct{}{}
}

// Clear removes the flag if present.
func (f *Flags) Clear(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.set, key)
}

// ClearAll empties the store. Called at episode start.
func (f *Flags) ClearAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = make(map[string]struct{})
}

// Has reports whether the flag is present.
func (f *Flags) Has(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.set[key]
	return ok
}

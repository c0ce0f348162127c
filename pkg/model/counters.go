package model

import (
	"sort"
	"sync"
)

// CounterSource exposes named integer counters for merging into a task's
// counter map.
type CounterSource interface {
	CounterNames() []string
	Counter(name string) int64
}

// CounterSet is a thread-safe CounterSource steps use to instrument their
// work (records read, entries merged, bytes written, ...).
type CounterSet struct {
	mu sync.Mutex
	m  map[string]int64
}

// NewCounterSet creates an empty counter set.
func NewCounterSet() *CounterSet {
	return &CounterSet{m: make(map[string]int64)}
}

// Increment adds delta to the named counter.
func (c *CounterSet) Increment(name string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[name] += delta
}

// Set assigns the named counter.
func (c *CounterSet) Set(name string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[name] = value
}

// CounterNames returns the counter names, sorted for deterministic output.
func (c *CounterSet) CounterNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.m))
	for name := range c.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Counter returns the named counter value, zero when absent.
func (c *CounterSet) Counter(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[name]
}

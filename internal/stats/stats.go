/**
 * Stats Accumulator.
 *
 * Counts events by category and by plugin, and periodically flushes a
 * snapshot to the log sink, resetting the counters. Maps to spec.md §4.7;
 * the counters map is the only writer-shared structure on the hot path,
 * so a short mutex-held lookup finds (or lazily creates) each counter
 * and the increment itself is an atomic add, generalizing the
 * teacher's atomic.Uint64 counters in capture/engine.go to an open set
 * of string keys.
 *
 * Author: raventrace
 */

package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/raventrace/pdnsd/internal/logging"
)

// Fixed prefix key order for the flush line, per spec.md §4.7.
var prefixOrder = []string{"packet", "invalid", "udp", "port53", "dns", "question", "answer"}

// Thread-safe counter set, keyed by category string.
type Accumulator struct {
	mu       sync.Mutex
	counters map[string]*atomic.Int64
}

// Creates an empty accumulator.
func New() *Accumulator {
	return &Accumulator{counters: make(map[string]*atomic.Int64)}
}

// Atomically increments the named counter, creating it lazily at 0.
func (a *Accumulator) Increment(key string) {
	a.IncrementBy(key, 1)
}

// Increments the named counter by n (n may be negative only for tests).
func (a *Accumulator) IncrementBy(key string, n int64) {
	a.mu.Lock()
	c, ok := a.counters[key]
	if !ok {
		c = &atomic.Int64{}
		a.counters[key] = c
	}
	a.mu.Unlock()
	c.Add(n)
}

// Returns the current value of a counter without resetting it.
func (a *Accumulator) Get(key string) int64 {
	a.mu.Lock()
	c, ok := a.counters[key]
	a.mu.Unlock()
	if !ok {
		return 0
	}
	return c.Load()
}

// Atomically snapshots every counter's value and resets it to zero.
// The snapshot only contains keys whose value was nonzero; keys left
// untouched since the previous flush are omitted.
func (a *Accumulator) snapshotAndReset() map[string]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := make(map[string]int64, len(a.counters))
	for k, c := range a.counters {
		v := c.Swap(0)
		if v != 0 {
			snap[k] = v
		}
	}
	return snap
}

// Snapshots and resets the counters, then emits a single debug log line
// of the form "STATS: k1=v1, k2=v2, ...": fixed prefix keys in order
// first, then plugin::* keys lexicographically. Keys absent from the
// snapshot are omitted entirely.
func (a *Accumulator) Flush(sink logging.Sink) {
	snap := a.snapshotAndReset()
	if len(snap) == 0 {
		sink.Log(logging.Debug, "STATS: (none)")
		return
	}

	var parts []string
	seen := make(map[string]bool, len(snap))

	for _, k := range prefixOrder {
		if v, ok := snap[k]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", k, v))
			seen[k] = true
		}
	}

	var pluginKeys []string
	for k := range snap {
		if seen[k] {
			continue
		}
		if strings.HasPrefix(k, "plugin::") {
			pluginKeys = append(pluginKeys, k)
		}
	}
	sort.Strings(pluginKeys)
	for _, k := range pluginKeys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, snap[k]))
	}

	// Any remaining, non-prefix, non-plugin key is still emitted (not
	// named in §4.7 but dropping unknown categories silently would
	// violate "reset is total").
	var other []string
	for k := range snap {
		if seen[k] || strings.HasPrefix(k, "plugin::") {
			continue
		}
		other = append(other, k)
	}
	sort.Strings(other)
	for _, k := range other {
		parts = append(parts, fmt.Sprintf("%s=%d", k, snap[k]))
	}

	sink.Log(logging.Debug, "STATS: "+strings.Join(parts, ", "))
}

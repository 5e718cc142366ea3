package pktlogger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/raventrace/pdnsd/internal/plugin"
	"github.com/raventrace/pdnsd/internal/store"
)

func TestParseKeepFor(t *testing.T) {
	cases := map[string]time.Duration{
		"30 days":   30 * 24 * time.Hour,
		"1 day":     24 * time.Hour,
		"12 hours":  12 * time.Hour,
		"5 minutes": 5 * time.Minute,
		"garbage":   30 * 24 * time.Hour, // unparsable falls back to the default
	}
	for input, want := range cases {
		if got := parseKeepFor(input); got != want {
			t.Errorf("parseKeepFor(%q) = %v, want %v", input, got, want)
		}
	}
}

func newTestLogger(t *testing.T, opts map[string]any) *Logger {
	t.Helper()
	if opts == nil {
		opts = map[string]any{}
	}
	if _, ok := opts["path"]; !ok {
		opts["path"] = filepath.Join(t.TempDir(), "dns-events.log")
	}
	inst, err := New(opts, nil, nil)
	if err != nil {
		t.Fatalf("construct logger: %v", err)
	}
	return inst.(*Logger)
}

func TestProcessAppendsHistory(t *testing.T) {
	l := newTestLogger(t, nil)
	defer l.Shutdown()

	l.Process(plugin.Event{QR: false, Server: &store.Endpoint{IP: "10.0.0.1"}, Client: &store.Endpoint{IP: "10.0.0.5"}})
	l.Process(plugin.Event{QR: true, Server: &store.Endpoint{IP: "10.0.0.1"}, Client: &store.Endpoint{IP: "10.0.0.5"}})

	l.mu.Lock()
	n := len(l.history)
	l.mu.Unlock()
	if n != 2 {
		t.Fatalf("expected 2 history entries, got %d", n)
	}
}

func TestPrunesEntriesOlderThanKeepFor(t *testing.T) {
	l := newTestLogger(t, map[string]any{"keep_for": "1 hour"})
	defer l.Shutdown()

	l.mu.Lock()
	l.history = []entry{
		{at: time.Now().Add(-2 * time.Hour), line: "stale\n"},
		{at: time.Now(), line: "fresh\n"},
	}
	l.mu.Unlock()

	l.prune()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.history) != 1 || l.history[0].line != "fresh\n" {
		t.Fatalf("expected only the fresh entry to survive pruning, got %+v", l.history)
	}
}

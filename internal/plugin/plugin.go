/**
 * Plugin API.
 *
 * Defines the four-operation capability every analyzer plugin presents,
 * per spec.md §9's static-registration redesign note: each plugin
 * package registers a constructor under its symbolic name from an
 * init(), generalizing the teacher's cli.Menu.AddOption registration
 * idiom (internal/cli/menu.go) into a package-level registry instead of
 * reflection-based namespace scanning.
 *
 * Author: raventrace
 */

package plugin

import (
	"sort"

	"github.com/google/gopacket/layers"
	"github.com/raventrace/pdnsd/internal/endpoint"
	"github.com/raventrace/pdnsd/internal/logging"
	"github.com/raventrace/pdnsd/internal/store"
)

// One observed DNS event, as delivered to a plugin's Process.
type Event struct {
	DNS    *layers.DNS
	QR     bool
	Roles  endpoint.Roles
	Server *store.Endpoint
	Client *store.Endpoint
}

// The capability every analyzer plugin must implement.
type Plugin interface {
	// Process handles one delivered event. It runs on the plugin's own
	// goroutine; it may not block the dispatcher (spec.md §4.5) and any
	// panic is recovered by the binding, not by the plugin itself.
	Process(ev Event)
	// Shutdown releases resources; called once, after the inbox drains
	// or the drain grace period expires, whichever comes first.
	Shutdown()
}

// Builds a Plugin instance from its configuration options and the
// shared collaborators (store, log sink). Returning an error aborts
// spawn for this plugin only (spec.md §4.5 step 4).
type Constructor func(opts map[string]any, st store.Store, log logging.Sink) (Plugin, error)

var registry = map[string]Constructor{}

// Registers a plugin constructor under name. Intended to be called
// from a plugin package's init(). Panics on duplicate registration,
// since that can only happen from a programming error at link time,
// never from user input.
func Register(name string, ctor Constructor) {
	if _, exists := registry[name]; exists {
		panic("plugin: duplicate registration for " + name)
	}
	registry[name] = ctor
}

// Returns every plugin name that registered itself, in stable
// (lexicographic) order.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Constructor, bool) {
	ctor, ok := registry[name]
	return ctor, ok
}

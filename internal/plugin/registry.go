/**
 * Plugin Registry.
 *
 * Discovers registered plugins at startup, filters by per-plugin
 * configuration, spawns each inside a failure boundary, and holds the
 * dispatch table. Implements spec.md §4.5 exactly: the registry is
 * immutable after startup, no hot-reload.
 *
 * Author: raventrace
 */

package plugin

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/raventrace/pdnsd/internal/config"
	"github.com/raventrace/pdnsd/internal/logging"
	"github.com/raventrace/pdnsd/internal/store"
)

func zf(key, value string) zap.Field { return zap.String(key, value) }

// A live, loaded plugin: symbolic name, instance, and effective config.
type Binding struct {
	Name     string
	Instance Plugin
	Options  map[string]any
	inbox    chan Event
	done     chan struct{}
}

// Holds the dispatch table assembled at Discover time. Read-only for
// the life of the supervisor; never mutated after Discover returns.
type Registry struct {
	bindings []*Binding
	log      logging.Sink
}

// Default bound-inbox size; spec.md §9 mandates a bounded inbox with a
// drop-newest policy to keep a slow plugin from exhausting memory.
const inboxSize = 256

// Enumerates every registered plugin, filters and spawns per
// spec.md §4.5, and returns the resulting registry. Discovery never
// fails the pipeline: a plugin that is absent from config, disabled,
// or whose spawn fails is skipped with a log line and processing
// continues.
func Discover(cfg *config.Config, st store.Store, log logging.Sink) *Registry {
	r := &Registry{log: log}

	for _, name := range Registered() {
		pc, ok := cfg.Plugins[name]
		if !ok {
			log.Log(logging.Notice, "plugin skipped: no configuration", zf("plugin", name))
			continue
		}
		if pc.Enable != 1 {
			log.Log(logging.Notice, "plugin skipped: not enabled", zf("plugin", name))
			continue
		}
		ctor, ok := lookup(name)
		if !ok {
			// Registered() only returns names present in registry, so
			// this branch is unreachable in practice; kept as a guard.
			continue
		}

		binding, err := spawn(name, ctor, effectiveOptions(name, pc.Options, cfg), st, log)
		if err != nil {
			log.Log(logging.Warning, "plugin spawn failed", zf("plugin", name), zf("error", err.Error()))
			continue
		}
		r.bindings = append(r.bindings, binding)
	}

	names := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		names = append(names, b.Name)
	}
	log.Log(logging.Notice, "plugins loaded", zf("names", fmt.Sprintf("%v", names)))

	return r
}

// Bridges top-level config fields into a plugin's options for the
// plugins that are driven by config outside the per-plugin Options
// block. Per-plugin Options always win over the top-level default, so
// a config file can still override city_db/asn_db per instance.
func effectiveOptions(name string, opts map[string]any, cfg *config.Config) map[string]any {
	if name != "server::geoip" {
		return opts
	}

	merged := make(map[string]any, len(opts)+2)
	if cfg.GeoIPCityDB != "" {
		merged["city_db"] = cfg.GeoIPCityDB
	}
	if cfg.GeoIPASNDB != "" {
		merged["asn_db"] = cfg.GeoIPASNDB
	}
	for k, v := range opts {
		merged[k] = v
	}
	return merged
}

// Spawns one plugin inside a failure boundary: any panic during
// construction is converted into an error, matching the "no exception
// may cross the dispatcher boundary" rule from spec.md §9.
func spawn(name string, ctor Constructor, opts map[string]any, st store.Store, log logging.Sink) (b *Binding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during spawn: %v", r)
		}
	}()

	inst, cerr := ctor(opts, st, log)
	if cerr != nil {
		return nil, cerr
	}

	binding := &Binding{
		Name:     name,
		Instance: inst,
		Options:  opts,
		inbox:    make(chan Event, inboxSize),
		done:     make(chan struct{}),
	}
	go binding.run(log)
	return binding, nil
}

// Delivers inbox items to Process in arrival order, recovering from
// any panic so one plugin's runtime failure never unloads it (spec.md
// §7: "isolate in plugin context, log warning; do not unload").
func (b *Binding) run(log logging.Sink) {
	defer close(b.done)
	for ev := range b.inbox {
		b.deliver(ev, log)
	}
}

func (b *Binding) deliver(ev Event, log logging.Sink) {
	defer func() {
		if r := recover(); r != nil {
			log.Log(logging.Warning, "plugin process panicked", zf("plugin", b.Name), zf("error", fmt.Sprintf("%v", r)))
		}
	}()
	b.Instance.Process(ev)
}

// Returns the live bindings in stable order.
func (r *Registry) Bindings() []*Binding {
	return r.bindings
}

// Signals every binding's inbox closed and waits up to grace for each
// plugin's goroutine to drain, per spec.md §5's shutdown sequence.
// Plugin.Shutdown is called regardless of whether drain completed in
// time.
func (r *Registry) Close(grace func() <-chan struct{}) {
	for _, b := range r.bindings {
		close(b.inbox)
	}
	for _, b := range r.bindings {
		select {
		case <-b.done:
		case <-grace():
			r.log.Log(logging.Warning, "plugin inbox drain timed out; dropping remainder", zf("plugin", b.Name))
		}
		b.Instance.Shutdown()
	}
}

/**
 * Authorized Server Plugin.
 *
 * Flags DNS answers coming from a server IP not on a configured
 * allow-list, registering as "server::authorized" per spec.md §6's
 * default plugin set. New code: the teacher has no notion of a
 * DNS-server allow-list, but the shape (maintain a known-good set,
 * flag anything outside it) mirrors internal/analyzer/rogue.go's
 * allow/deny-by-set approach to flagging unexpected access points,
 * narrowed here to exact-IP membership instead of SSID heuristics.
 *
 * Author: raventrace
 */

package authorized

import (
	"sync"

	"go.uber.org/zap"

	"github.com/raventrace/pdnsd/internal/logging"
	"github.com/raventrace/pdnsd/internal/plugin"
	"github.com/raventrace/pdnsd/internal/store"
)

func init() {
	plugin.Register("server::authorized", New)
}

type Monitor struct {
	log     logging.Sink
	allowed map[string]struct{}

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(opts map[string]any, _ store.Store, log logging.Sink) (plugin.Plugin, error) {
	allowed := map[string]struct{}{}
	if raw, ok := opts["allowed"]; ok {
		if list, ok := raw.([]any); ok {
			for _, v := range list {
				if s, ok := v.(string); ok {
					allowed[s] = struct{}{}
				}
			}
		}
	}
	return &Monitor{
		log:     log,
		allowed: allowed,
		seen:    make(map[string]struct{}),
	}, nil
}

func (m *Monitor) Process(ev plugin.Event) {
	if !ev.QR {
		return // only responses carry a server's answer to flag
	}
	if len(m.allowed) == 0 {
		return // no allow-list configured: nothing to enforce
	}
	if _, ok := m.allowed[ev.Server.IP]; ok {
		return
	}

	m.mu.Lock()
	_, already := m.seen[ev.Server.IP]
	m.seen[ev.Server.IP] = struct{}{}
	m.mu.Unlock()

	if already {
		return // don't re-log the same unauthorized server every event
	}
	m.log.Log(logging.Warning, "unauthorized DNS server observed",
		zap.String("server_ip", ev.Server.IP))
}

func (m *Monitor) Shutdown() {}

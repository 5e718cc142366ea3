/**
 * Dispatcher.
 *
 * Fans each parsed DNS event out to every live plugin binding, per
 * spec.md §4.6. Posting is fire-and-forget: a full inbox drops the
 * event for that plugin and increments a per-plugin dropped counter
 * (spec.md's reference back-pressure policy, "drop-newest with a
 * counter").
 *
 * Author: raventrace
 */

package plugin

import (
	"github.com/raventrace/pdnsd/internal/stats"
)

// Posts ev to every binding in r, incrementing dns/question/answer and
// plugin::<name> (or plugin::<name>::dropped on a full inbox) on acc.
// Iteration order is the registry's stable order; no ordering is
// guaranteed across plugins, but within one binding this call's
// sends race only with earlier calls, never later ones, preserving
// per-plugin arrival order.
func Dispatch(r *Registry, ev Event, acc *stats.Accumulator) {
	acc.Increment("dns")
	if ev.QR {
		acc.Increment("answer")
	} else {
		acc.Increment("question")
	}

	for _, b := range r.bindings {
		select {
		case b.inbox <- ev:
			acc.Increment("plugin::" + b.Name)
		default:
			acc.Increment("plugin::" + b.Name + "::dropped")
		}
	}
}

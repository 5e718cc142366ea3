package dnsstats

import (
	"net"
	"testing"

	"github.com/google/gopacket/layers"

	"github.com/raventrace/pdnsd/internal/endpoint"
	"github.com/raventrace/pdnsd/internal/plugin"
)

func newTracker(t *testing.T, which role, opts map[string]any) *Tracker {
	t.Helper()
	inst, err := newFor(which)(opts, nil, nil)
	if err != nil {
		t.Fatalf("construct tracker: %v", err)
	}
	return inst.(*Tracker)
}

func TestProcessTracksByServerRole(t *testing.T) {
	tr := newTracker(t, roleServer, nil)
	roles := endpoint.Roles{
		ServerIP: net.ParseIP("10.0.0.1"),
		ClientIP: net.ParseIP("10.0.0.5"),
	}
	ev := plugin.Event{
		Roles: roles,
		DNS: &layers.DNS{
			Questions: []layers.DNSQuestion{
				{Name: []byte("example.com"), Type: layers.DNSTypeA},
			},
		},
	}

	tr.Process(ev)
	tr.Process(ev)

	p := tr.Profile("10.0.0.1")
	if p == nil {
		t.Fatal("expected a profile for the server IP")
	}
	if p.QueryCount != 2 {
		t.Fatalf("expected QueryCount=2, got %d", p.QueryCount)
	}
	if p.TypicalNames["example.com"] != 2 {
		t.Fatalf("expected example.com counted twice, got %d", p.TypicalNames["example.com"])
	}
	if p.TypicalTypes["A"] != 2 {
		t.Fatalf("expected A counted twice, got %d", p.TypicalTypes["A"])
	}

	if got := tr.Profile("10.0.0.5"); got != nil {
		t.Fatalf("server-keyed tracker should not learn the client's profile, got %+v", got)
	}
}

func TestProcessTracksByClientRole(t *testing.T) {
	tr := newTracker(t, roleClient, nil)
	roles := endpoint.Roles{
		ServerIP: net.ParseIP("10.0.0.1"),
		ClientIP: net.ParseIP("10.0.0.5"),
	}

	tr.Process(plugin.Event{Roles: roles})

	if p := tr.Profile("10.0.0.5"); p == nil || p.QueryCount != 1 {
		t.Fatalf("expected client profile with QueryCount=1, got %+v", p)
	}
}

func TestRRDFlagEnablesRingTracking(t *testing.T) {
	tr := newTracker(t, roleServer, map[string]any{"rrd": 1})
	roles := endpoint.Roles{ServerIP: net.ParseIP("10.0.0.1"), ClientIP: net.ParseIP("10.0.0.5")}

	for i := 0; i < 3; i++ {
		tr.Process(plugin.Event{Roles: roles})
	}

	p := tr.Profile("10.0.0.1")
	total := 0
	for _, v := range p.Ring {
		total += v
	}
	if total != 3 {
		t.Fatalf("expected 3 ring hits total, got %d across %v", total, p.Ring)
	}
}

func TestWithoutRRDRingStaysEmpty(t *testing.T) {
	tr := newTracker(t, roleServer, nil)
	roles := endpoint.Roles{ServerIP: net.ParseIP("10.0.0.1"), ClientIP: net.ParseIP("10.0.0.5")}

	tr.Process(plugin.Event{Roles: roles})

	p := tr.Profile("10.0.0.1")
	for _, v := range p.Ring {
		if v != 0 {
			t.Fatalf("expected untouched ring without rrd:1, got %v", p.Ring)
		}
	}
}

func TestProfileSnapshotIsIndependentOfLiveState(t *testing.T) {
	tr := newTracker(t, roleServer, nil)
	roles := endpoint.Roles{ServerIP: net.ParseIP("10.0.0.1"), ClientIP: net.ParseIP("10.0.0.5")}

	tr.Process(plugin.Event{Roles: roles})
	snap := tr.Profile("10.0.0.1")

	tr.Process(plugin.Event{Roles: roles})

	if snap.QueryCount != 1 {
		t.Fatalf("expected snapshot to be frozen at 1, got %d", snap.QueryCount)
	}
}

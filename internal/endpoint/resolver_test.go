package endpoint

import (
	"net"
	"testing"

	"github.com/raventrace/pdnsd/internal/decode"
	"github.com/raventrace/pdnsd/internal/dnsmsg"
)

func TestRolesForAnswer(t *testing.T) {
	seg := &decode.Segment{
		SrcIP: net.ParseIP("10.0.0.1"), SrcPort: 53,
		DstIP: net.ParseIP("10.0.0.5"), DstPort: 54321,
	}
	msg := &dnsmsg.Message{QR: true}

	roles := RolesFor(seg, msg)
	if roles.ServerIP.String() != "10.0.0.1" || roles.ClientIP.String() != "10.0.0.5" {
		t.Fatalf("answer roles wrong: %+v", roles)
	}
}

func TestRolesForQuestion(t *testing.T) {
	seg := &decode.Segment{
		SrcIP: net.ParseIP("10.0.0.5"), SrcPort: 54321,
		DstIP: net.ParseIP("10.0.0.1"), DstPort: 53,
	}
	msg := &dnsmsg.Message{QR: false}

	roles := RolesFor(seg, msg)
	if roles.ServerIP.String() != "10.0.0.1" || roles.ClientIP.String() != "10.0.0.5" {
		t.Fatalf("question roles wrong: %+v", roles)
	}
}

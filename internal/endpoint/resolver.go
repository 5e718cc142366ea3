/**
 * Endpoint Resolver.
 *
 * Normalizes a transport 4-tuple into (server, client) roles using the
 * DNS QR bit, then finds-or-creates the backing rows for each, per
 * spec.md §4.4.
 *
 * Author: raventrace
 */

package endpoint

import (
	"context"
	"net"

	"github.com/raventrace/pdnsd/internal/decode"
	"github.com/raventrace/pdnsd/internal/dnsmsg"
	"github.com/raventrace/pdnsd/internal/store"
)

// Derived (server, client) roles for one DNS event.
type Roles struct {
	ServerIP   net.IP
	ServerPort uint16
	ClientIP   net.IP
	ClientPort uint16
}

// Computes roles from the segment and message per the QR rule:
// QR=1 (answer) -> server=src, client=dst; QR=0 (question) -> server=dst, client=src.
func RolesFor(seg *decode.Segment, msg *dnsmsg.Message) Roles {
	if msg.QR {
		return Roles{
			ServerIP: seg.SrcIP, ServerPort: seg.SrcPort,
			ClientIP: seg.DstIP, ClientPort: seg.DstPort,
		}
	}
	return Roles{
		ServerIP: seg.DstIP, ServerPort: seg.DstPort,
		ClientIP: seg.SrcIP, ClientPort: seg.SrcPort,
	}
}

// Resolves roles into persisted server/client rows, find-or-creating
// each against the backing store. Ports are not persisted (spec.md
// §4.4): only the IPs key the rows.
func Resolve(ctx context.Context, servers, clients store.EndpointSet, roles Roles) (server, client *store.Endpoint, err error) {
	server, err = servers.FindOrCreate(ctx, roles.ServerIP.String())
	if err != nil {
		return nil, nil, err
	}
	client, err = clients.FindOrCreate(ctx, roles.ClientIP.String())
	if err != nil {
		return nil, nil, err
	}
	return server, client, nil
}

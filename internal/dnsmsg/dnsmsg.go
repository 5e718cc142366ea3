/**
 * DNS Parser.
 *
 * Decodes a transport payload as a DNS message or rejects it, per
 * spec.md §4.3. Grounded on internal/parser/dns.go's use of
 * github.com/google/gopacket/layers.DNS; unlike the teacher (which
 * parsed DNS only after a full packet decode), this operates directly
 * on the transport payload bytes so it can be driven by either a UDP
 * datagram or a length-prefixed TCP segment (spec.md's S3).
 *
 * Author: raventrace
 */

package dnsmsg

import (
	"encoding/binary"
	"errors"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ErrReject is returned for any payload that does not decode as DNS.
// The core never inspects its contents beyond the reject/accept split.
var ErrReject = errors.New("dnsmsg: not a well-formed DNS message")

// The parsed DNS message. Opaque to the core beyond QR; Raw carries
// the decoded layer verbatim for plugins.
type Message struct {
	QR  bool
	Raw *layers.DNS
}

// Decodes payload as a UDP-carried DNS message.
func Parse(payload []byte) (*Message, error) {
	dns := &layers.DNS{}
	if err := dns.DecodeFromBytes(payload, gopacket.NilDecodeFeedback); err != nil {
		return nil, ErrReject
	}
	return &Message{QR: dns.QR, Raw: dns}, nil
}

// Decodes payload as a TCP-carried DNS message: a 2-byte big-endian
// length prefix followed by exactly that many bytes of DNS message
// (RFC 1035 §4.2.2). Each segment is parsed standalone; no
// reassembly across TCP segments is attempted (spec.md §1 non-goal).
func ParseTCP(payload []byte) (*Message, error) {
	if len(payload) < 2 {
		return nil, ErrReject
	}
	n := binary.BigEndian.Uint16(payload[:2])
	if int(n) > len(payload)-2 {
		return nil, ErrReject
	}
	return Parse(payload[2 : 2+int(n)])
}

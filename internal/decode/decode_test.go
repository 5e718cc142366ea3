package decode

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

func buildUDPPacket(t *testing.T) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP("10.0.0.5").To4(),
		DstIP:    net.ParseIP("10.0.0.1").To4(),
	}
	udp := &layers.UDP{SrcPort: 54321, DstPort: 53}
	udp.SetNetworkLayerForChecksum(ip)
	payload := gopacket.Payload([]byte("hello"))

	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, payload); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeUDP(t *testing.T) {
	data := buildUDPPacket(t)
	seg, err := Decode(layers.LinkTypeEthernet, data)
	if err != nil {
		t.Fatalf("unexpected reject: %v", err)
	}
	if seg.Protocol != UDP {
		t.Fatalf("expected UDP, got %v", seg.Protocol)
	}
	if seg.SrcIP.String() != "10.0.0.5" || seg.DstIP.String() != "10.0.0.1" {
		t.Fatalf("unexpected 4-tuple: %s -> %s", seg.SrcIP, seg.DstIP)
	}
	if seg.SrcPort != 54321 || seg.DstPort != 53 {
		t.Fatalf("unexpected ports: %d -> %d", seg.SrcPort, seg.DstPort)
	}
	if string(seg.Payload) != "hello" {
		t.Fatalf("unexpected payload: %q", seg.Payload)
	}
}

func TestDecodeICMPRejected(t *testing.T) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.ParseIP("10.0.0.5").To4(),
		DstIP:    net.ParseIP("10.0.0.1").To4(),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}

	if err := gopacket.SerializeLayers(buf, opts, eth, ip, icmp); err != nil {
		t.Fatal(err)
	}

	_, err := Decode(layers.LinkTypeEthernet, buf.Bytes())
	if err == nil {
		t.Fatal("expected reject for ICMP")
	}
	rej, ok := err.(*RejectError)
	if !ok || rej.Reason != RejectUnsupportedL4 {
		t.Fatalf("expected unsupported-L4 reject, got %v", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(layers.LinkTypeEthernet, []byte{0x00, 0x01, 0x02})
	if err == nil {
		t.Fatal("expected reject for truncated buffer")
	}
}

// A malformed IPv4 header (IHL=0, below the minimum of 5 32-bit words)
// must come back as a clean reject, never a crash: gopacket's default
// decode recovery converts an internal decoder panic into an
// ErrorLayer, which Decode treats the same as any other malformed
// frame (spec.md §7: no single event may terminate the pipeline).
func TestDecodeMalformedIPHeaderRejectsWithoutPanicking(t *testing.T) {
	data := make([]byte, 14+20)
	// Ethernet: arbitrary MACs, EtherType IPv4.
	data[12], data[13] = 0x08, 0x00
	// IPv4: version 4, IHL 0 (invalid; minimum header is 5 words).
	data[14] = 0x40

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Decode must not panic on a malformed header, got: %v", r)
		}
	}()

	_, err := Decode(layers.LinkTypeEthernet, data)
	if err == nil {
		t.Fatal("expected reject for a malformed IPv4 header")
	}
}

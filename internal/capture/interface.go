/**
 * Interface Enumeration.
 *
 * Lists capture-capable network devices, adapted from the teacher's
 * internal/capture/interface.go (ListInterfaces/FindInterface), trimmed
 * of the CLI-facing formatting helpers (PrintInterfaces, the tabular
 * display) that belonged to the out-of-scope interactive front end.
 * FindInterface is called from Open (source.go) to validate the
 * configured device before touching pcap, matching the teacher's
 * NewEngine validation step (internal/capture/engine.go).
 *
 * Author: raventrace
 */

package capture

import (
	"fmt"

	"github.com/google/gopacket/pcap"
)

// A capture-capable device as reported by the OS/pcap.
type Interface struct {
	Name        string
	Description string
	Addresses   []string
}

// Queries the OS for all devices pcap can open.
func ListInterfaces() ([]Interface, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("capture: find devices: %w", err)
	}

	out := make([]Interface, 0, len(devices))
	for _, d := range devices {
		iface := Interface{Name: d.Name, Description: d.Description}
		for _, addr := range d.Addresses {
			if addr.IP != nil {
				iface.Addresses = append(iface.Addresses, addr.IP.String())
			}
		}
		out = append(out, iface)
	}
	return out, nil
}

// Validates that name is an openable capture device.
func FindInterface(name string) (*Interface, error) {
	ifaces, err := ListInterfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Name == name {
			return &iface, nil
		}
	}
	return nil, fmt.Errorf("capture: interface %q not found", name)
}

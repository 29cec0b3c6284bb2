package crypto

import (
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
)

// FingerprintFunc returns a string describing the current device. It only
// needs to be stable across sessions; it is not required to be secret.
type FingerprintFunc func() (string, error)

// SystemFingerprint combines machine id, hostname, OS, architecture and
// the primary MAC address. Sources that are not available on the platform
// are skipped.
func SystemFingerprint() (string, error) {
	var parts []string

	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if id, err := os.ReadFile(path); err == nil {
			if s := strings.TrimSpace(string(id)); s != "" {
				parts = append(parts, s)
				break
			}
		}
	}

	if hostname, err := os.Hostname(); err == nil {
		parts = append(parts, hostname)
	}

	parts = append(parts, runtime.GOOS, runtime.GOARCH)

	if mac := primaryMAC(); mac != "" {
		parts = append(parts, mac)
	}

	return strings.Join(parts, "|"), nil
}

// primaryMAC returns the hardware address of the first non-loopback
// interface by name. Interface state is ignored so the result does not flip
// when a link goes down.
func primaryMAC() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	sort.Slice(interfaces, func(i, j int) bool { return interfaces[i].Name < interfaces[j].Name })
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr.String()
	}

	return ""
}

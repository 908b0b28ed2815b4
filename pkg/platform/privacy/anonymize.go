// Package privacy provides utilities for handling personally identifiable
// information (PII) before it reaches operator-facing displays.
package privacy

import (
	"fmt"
	"net"
)

// AnonymizeIP truncates an IP address to remove the host-identifying portion.
// Session views show the anonymized form unless the operator explicitly
// requests full addresses.
//
// IPv4 addresses are masked to their /24 network ("192.168.1.47" ->
// "192.168.1.0"). IPv6 addresses keep only the /48 prefix, rendered as
// three fixed-width groups ("2001:0db8:85a3::").
//
// Returns "invalid" for unparseable addresses and "unknown" for empty
// strings.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}

	// To16 is non-nil for anything ParseIP accepted.
	p := parsed.To16()
	return fmt.Sprintf("%04x:%04x:%04x::",
		uint16(p[0])<<8|uint16(p[1]),
		uint16(p[2])<<8|uint16(p[3]),
		uint16(p[4])<<8|uint16(p[5]))
}

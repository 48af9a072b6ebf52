// Package privacy truncates caller addresses before they reach logs.
package privacy

import (
	"net/netip"
	"strings"
)

const ipIdentifierPrefix = "ip:"

// AnonymizeIP masks an address to its network: /24 for IPv4 and /48 for
// IPv6. Empty input yields "unknown" and unparseable input "invalid".
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.WithZone("").Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

// AnonymizeIdentifier masks the address inside an "ip:<addr>" identifier.
// User identifiers are returned unchanged.
func AnonymizeIdentifier(identifier string) string {
	ip, ok := strings.CutPrefix(identifier, ipIdentifierPrefix)
	if !ok {
		return identifier
	}
	return ipIdentifierPrefix + AnonymizeIP(ip)
}

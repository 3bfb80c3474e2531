package relay

import (
	"net"
	"strconv"
	"strings"
)

// StripBrackets removes exactly one matching pair of square brackets
// around an IPv6 literal ("[::1]" -> "::1"). Anything else is passed
// through unchanged; the bracket syntax only exists so a port can be
// appended after an IPv6 address.
func StripBrackets(host string) string {
	if len(host) >= 2 && host[0] == '[' && host[len(host)-1] == ']' {
		return host[1 : len(host)-1]
	}
	return host
}

// NetworkFor selects the TCP network family for a host the same way
// the address is written: IPv6 literals contain colons, IPv4 literals
// and hostnames do not. The host must already be bracket-stripped.
func NetworkFor(host string) string {
	if strings.Contains(host, ":") {
		return "tcp6"
	}
	return "tcp4"
}

// JoinEndpoint composes a dial/listen address from a bracket-stripped
// host and a port. IPv6 literals get re-bracketed by JoinHostPort.
func JoinEndpoint(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

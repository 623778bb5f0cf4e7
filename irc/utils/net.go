// Copyright (c) 2012-2014 Jeremy Latt
// released under the MIT license

package utils

import (
	"net"
	"strings"
)

// AddrToIP returns the IP address for a net.Addr; nil for non-IP addrs
// (e.g., unix domain sockets).
func AddrToIP(addr net.Addr) net.IP {
	switch ad := addr.(type) {
	case *net.TCPAddr:
		return ad.IP.To16()
	case *net.UDPAddr:
		return ad.IP.To16()
	default:
		return nil
	}
}

// IPString returns a simple IP string from the given net.Addr.
func IPString(addr net.Addr) string {
	addrStr := addr.String()
	ipaddr, _, err := net.SplitHostPort(addrStr)
	// AddrToIP() can't handle the errors from unix domain sockets
	if err != nil {
		return addrStr
	}
	return ipaddr
}

// LooksLikeHostname checks whether the given name is plausibly a hostname
// (dot-separated labels of letters, digits, and hyphens).
func LooksLikeHostname(name string) bool {
	if len(name) == 0 || len(name) > 253 {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		for i := 0; i < len(label); i++ {
			chr := label[i]
			switch {
			case 'a' <= chr && chr <= 'z', 'A' <= chr && chr <= 'Z':
			case '0' <= chr && chr <= '9':
			case chr == '-' && i != 0 && i != len(label)-1:
			default:
				return false
			}
		}
	}
	return true
}

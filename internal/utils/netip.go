package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// proxyHeaders are read in order when the origin sits behind a trusted
// proxy or tunnel.
var proxyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// ClientAddr resolves the caller's address. With trustProxy the proxy
// headers win over RemoteAddr; for X-Forwarded-For only the left-most
// entry counts.
func ClientAddr(r *http.Request, trustProxy bool) (netip.Addr, bool) {
	if trustProxy {
		for _, h := range proxyHeaders {
			v := r.Header.Get(h)
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = v[:i]
			}
			if a, ok := parseAddr(v); ok {
				return a, true
			}
		}
	}
	return parseAddr(r.RemoteAddr)
}

// ClientIP is ClientAddr as a string, or RemoteAddr when it does not parse.
func ClientIP(r *http.Request, trustProxy bool) string {
	if a, ok := ClientAddr(r, trustProxy); ok {
		return a.String()
	}
	return r.RemoteAddr
}

// parseAddr accepts "ip", "ip:port" and "[v6]:port".
func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

// PrefixSet matches addresses against a list of CIDRs and single IPs.
type PrefixSet struct {
	prefixes []netip.Prefix
}

// ParsePrefixSet builds a set from entries like "10.0.0.0/8" or "::1".
// Entries that are neither are returned in rejected.
func ParsePrefixSet(entries []string) (set PrefixSet, rejected []string) {
	for _, raw := range entries {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			set.prefixes = append(set.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			a = a.Unmap()
			set.prefixes = append(set.prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		rejected = append(rejected, s)
	}
	return set, rejected
}

func (s PrefixSet) Len() int { return len(s.prefixes) }

func (s PrefixSet) Contains(a netip.Addr) bool {
	if !a.IsValid() {
		return false
	}
	a = a.Unmap()
	for _, p := range s.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

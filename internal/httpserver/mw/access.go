package mw

import (
	"net"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/stash/internal/logger"
	"github.com/MrSnakeDoc/stash/internal/utils"
)

func passthrough(next http.Handler) http.Handler { return next }

// AllowCIDRs restricts a route group to callers inside allowed (CIDRs or
// single IPs). An empty list lets everyone through. trustProxy resolves the
// caller from proxy headers, for origins reachable only through a tunnel.
func AllowCIDRs(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	set, rejected := utils.ParsePrefixSet(allowed)
	for _, bad := range rejected {
		log.Warn("ignoring invalid allowed CIDR", logger.String("entry", bad))
	}
	if set.Len() == 0 {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := utils.ClientAddr(r, trustProxy)
			if !ok || !set.Contains(addr) {
				log.Debug("caller outside allowed CIDRs",
					logger.String("remote_ip", utils.ClientIP(r, trustProxy)),
					logger.String("path", r.URL.Path))
				reject(w, http.StatusForbidden, "forbidden", "Not available from this network.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnforceHost serves only requests whose Host is in hosts. Patterns may be
// exact ("stash.example.com") or a wildcard ("*.example.com", subdomains
// only). Ports and case are ignored. An empty list lets everyone through.
func EnforceHost(hosts []string, log logger.Logger) func(http.Handler) http.Handler {
	patterns := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = hostOnly(strings.TrimSpace(h)); h != "" {
			patterns = append(patterns, h)
		}
	}
	if len(patterns) == 0 {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := hostOnly(r.Host)
			for _, p := range patterns {
				if hostMatches(host, p) {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Debug("unknown host rejected", logger.String("host", r.Host))
			reject(w, http.StatusForbidden, "forbidden", "Unknown host.")
		})
	}
}

func hostOnly(h string) string {
	if name, _, err := net.SplitHostPort(h); err == nil {
		h = name
	}
	return strings.ToLower(strings.TrimSuffix(h, "."))
}

func hostMatches(host, pattern string) bool {
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return len(host) > len(suffix) && strings.HasSuffix(host, suffix)
	}
	return host == pattern
}

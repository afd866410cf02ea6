package domain

import (
	"errors"
	"net"
	"net/url"
	"path"
	"strings"
)

// Validation error kinds, reported as-is to API clients.
const (
	KindMissingField = "missing-field"
	KindInvalidURL   = "invalid-url"
)

// ValidationError is returned for malformed user input.
type ValidationError struct {
	Kind    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Kind + " (" + e.Field + "): " + e.Message
	}
	return e.Kind + ": " + e.Message
}

// IsValidation reports whether err is a *ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// NormalizeURL returns the canonical form of raw used for every duplicate
// comparison. Scheme and host are lower-cased, a default port is dropped,
// an empty path becomes "/", dot segments are resolved, query parameters
// are sorted by key, an empty "?" and the fragment are removed.
// NormalizeURL(NormalizeURL(x)) == NormalizeURL(x).
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Kind: KindMissingField, Field: "url", Message: "URL is required"}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return "", &ValidationError{Kind: KindInvalidURL, Field: "url", Message: "Invalid URL format"}
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = normalizeHost(u.Scheme, u.Host)

	switch {
	case u.Path == "":
		u.Path = "/"
		u.RawPath = ""
	case hasDotSegment(u.Path):
		cleaned := path.Clean(u.Path)
		if strings.HasSuffix(u.Path, "/") || strings.HasSuffix(u.Path, "/.") || strings.HasSuffix(u.Path, "/..") {
			if cleaned != "/" {
				cleaned += "/"
			}
		}
		u.Path = cleaned
		u.RawPath = ""
	}

	u.ForceQuery = false
	if u.RawQuery != "" {
		if values, err := url.ParseQuery(u.RawQuery); err == nil {
			u.RawQuery = values.Encode()
		}
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

// ValidateURL reports whether raw can be normalized.
func ValidateURL(raw string) error {
	_, err := NormalizeURL(raw)
	return err
}

func normalizeHost(scheme, host string) string {
	host = strings.ToLower(host)
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	if port == "" || defaultPorts[scheme] == port {
		if strings.Contains(h, ":") {
			return "[" + h + "]"
		}
		return h
	}
	return host
}

func hasDotSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

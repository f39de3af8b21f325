package httputil

import (
	"net"
	"net/http"
	"strings"
)

// Proxy headers consulted behind a trusted reverse proxy, in
// precedence order.
const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
)

// ClientIP returns the originating client address for a request. With
// trustProxy set, forwarded headers take precedence over the
// connection's RemoteAddr. A header value that does not parse as a
// literal IP is ignored, so a spoofed header cannot feed arbitrary
// text into log fields or stream limiter keys.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := forwardedFor(r.Header.Get(headerForwardedFor)); ip != "" {
			return ip
		}
		if ip := parseIP(r.Header.Get(headerRealIP)); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr without a port (direct test requests).
		return r.RemoteAddr
	}
	return host
}

// forwardedFor extracts the leftmost entry of an X-Forwarded-For
// chain, the address of the original client.
func forwardedFor(chain string) string {
	first, _, _ := strings.Cut(chain, ",")
	return parseIP(first)
}

// parseIP returns the trimmed value when it is a literal IPv4 or IPv6
// address, otherwise "".
func parseIP(s string) string {
	s = strings.TrimSpace(s)
	if net.ParseIP(s) == nil {
		return ""
	}
	return s
}

package clientip

import (
	"net"
	"net/http"
	"strings"
)

// GetIP resolves the originating client address of a request. Proxy
// headers are checked in descending trust order before falling back to
// the TCP peer address:
//
//  1. CF-Connecting-IP (CDN edge)
//  2. X-Forwarded-For (first valid entry)
//  3. X-Real-IP (reverse proxy)
//  4. RemoteAddr
//
// The return is a normalized IP string, or empty when nothing in the
// request parses as an address.
func GetIP(r *http.Request) string {
	if ip := parseIP(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	// X-Forwarded-For accumulates one entry per hop; the first valid one
	// is the original client.
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		for _, part := range strings.Split(forwarded, ",") {
			if ip := parseIP(part); ip != "" {
				return ip
			}
		}
	}

	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// parseIP validates and normalizes an address, returning empty for
// anything net.ParseIP rejects.
func parseIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ip := net.ParseIP(raw)
	if ip == nil {
		return ""
	}
	return ip.String()
}

// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package netshare

import (
	"net"
	"net/http"
	"strings"
)

// forwardedParam reads one parameter of an RFC 7239 Forwarded header.
func forwardedParam(req *http.Request, name string) string {
	forwarded := req.Header.Get("Forwarded")
	if forwarded == "" {
		return ""
	}

	// "Forwarded: for=192.0.2.60;proto=http;host=example.com"
	for _, part := range strings.Split(forwarded, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, name+"=") {
			return strings.Trim(strings.TrimPrefix(part, name+"="), "\"")
		}
	}

	return ""
}

// isPrivateIP checks if an IP address is loopback or in a private range.
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// GetClientAddrTrusted extracts client IP address from request.
// Proxy headers are honoured when trustProxy is set or the peer is private.
func GetClientAddrTrusted(req *http.Request, trustProxy bool) net.IP {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return nil
	}
	remoteIP := net.ParseIP(host)

	if !trustProxy && !isPrivateIP(remoteIP) {
		return remoteIP
	}

	if forVal := forwardedParam(req, "for"); forVal != "" {
		// Remove port if present (e.g., "192.0.2.60:47011" or "[2001:db8::1]:47011")
		if strings.Contains(forVal, "]:") {
			forVal = strings.Split(strings.TrimPrefix(forVal, "["), "]:")[0]
		} else if strings.Count(forVal, ":") == 1 {
			forVal = strings.Split(forVal, ":")[0]
		}
		if ip := net.ParseIP(forVal); ip != nil {
			return ip
		}
	}

	if xReal := req.Header.Get("X-Real-IP"); xReal != "" {
		if ip := net.ParseIP(strings.TrimSpace(xReal)); ip != nil {
			return ip
		}
	}

	if xFor := req.Header.Get("X-Forwarded-For"); xFor != "" {
		if ip := net.ParseIP(strings.TrimSpace(strings.Split(xFor, ",")[0])); ip != nil {
			return ip
		}
	}

	return remoteIP
}

// GetClientAddr extracts client IP address using direct connection only
// unless the peer itself is a private address.
func GetClientAddr(req *http.Request) net.IP {
	return GetClientAddrTrusted(req, false)
}

package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// RemoteAddr identifies a request by the host part of its peer address.
func RemoteAddr(r *http.Request) (string, error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if net.ParseIP(host) == nil {
		return "", fmt.Errorf("invalid remote address %q", r.RemoteAddr)
	}
	return host, nil
}

// ProxyAwareIP resolves the client address through a set of trusted proxies.
type ProxyAwareIP struct {
	trusted []*net.IPNet
}

// NewProxyAwareIP parses proxies given as IPs or CIDRs.
func NewProxyAwareIP(proxies []string) (*ProxyAwareIP, error) {
	p := &ProxyAwareIP{}
	for _, raw := range proxies {
		if !strings.Contains(raw, "/") {
			if ip := net.ParseIP(raw); ip != nil && ip.To4() != nil {
				raw += "/32"
			} else {
				raw += "/128"
			}
		}
		_, network, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", raw, err)
		}
		p.trusted = append(p.trusted, network)
	}
	return p, nil
}

func (p *ProxyAwareIP) isTrusted(ip net.IP) bool {
	for _, n := range p.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Identity returns the client IP. Forwarding headers are honored only when
// the direct peer is a trusted proxy: CF-Connecting-IP first, then the
// right-most untrusted X-Forwarded-For entry.
func (p *ProxyAwareIP) Identity(r *http.Request) (string, error) {
	peer, err := RemoteAddr(r)
	if err != nil {
		return "", err
	}
	if !p.isTrusted(net.ParseIP(peer)) {
		return peer, nil
	}

	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); net.ParseIP(cf) != nil {
		return cf, nil
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				break
			}
			if !p.isTrusted(ip) {
				return ip.String(), nil
			}
		}
	}
	return peer, nil
}

// SessionOrIP prefers the visitor session id from sessionID and falls back to ip.
func SessionOrIP(sessionID func(*http.Request) string, ip IdentityFunc) IdentityFunc {
	return func(r *http.Request) (string, error) {
		if id := sessionID(r); id != "" {
			return "session:" + id, nil
		}
		addr, err := ip(r)
		if err != nil {
			return "", err
		}
		return "ip:" + addr, nil
	}
}

package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/parley-dev/parley/pkg/session"
)

// clientInfo captures the client descriptor for a new session.
func (s *Server) clientInfo(r *http.Request, transport string) session.Info {
	return session.Info{
		UserAgent: r.UserAgent(),
		Language:  r.Header.Get("Accept-Language"),
		Origin:    r.Header.Get("Origin"),
		Host:      r.Host,
		Path:      r.URL.Path,
		IP:        s.clientIP(r),
		Protocol:  transport,
		Backend:   "parley",
	}
}

// clientIP extracts the client address, honoring X-Forwarded-For only
// when TrustProxyHeaders is set.
func (s *Server) clientIP(r *http.Request) string {
	if s.config.TrustProxyHeaders {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.IndexByte(xff, ','); i >= 0 {
				xff = xff[:i]
			}
			return strings.TrimSpace(xff)
		}
		if rip := r.Header.Get("X-Real-IP"); rip != "" {
			return strings.TrimSpace(rip)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

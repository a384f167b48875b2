package middleware

import (
	"net"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
)

// ClientIP stores the host part of r.RemoteAddr with goGuard.WithClientIP.
// Proxy headers are not trusted; put a proxy-aware middleware in front when
// needed.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(goGuard.WithClientIP(r.Context(), ip)))
	})
}

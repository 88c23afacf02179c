package web

import (
	"net"
	"net/http"

	"github.com/JonMunkholm/tablelink/internal/audit"
	"github.com/go-chi/chi/v5/middleware"
)

// requestMetadata stores the request id, client IP and user agent for audit
// entries. It runs after TrustedRealIP so RemoteAddr is the client.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := audit.WithMetadata(r.Context(), audit.Metadata{
			RequestID: middleware.GetReqID(r.Context()),
			IPAddress: ip,
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

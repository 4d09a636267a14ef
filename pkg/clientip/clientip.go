package clientip

import (
	"net"
	"net/http"
	"strings"
)

// FromRequest returns the best-effort originating IP for a request: the first
// entry of X-Forwarded-For when present, otherwise the direct peer address.
func FromRequest(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

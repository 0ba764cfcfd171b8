// Package middleware provides HTTP middleware for the API router.
package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/beanhop/backend/internal/httputil"
)

const (
	corsAllowMethods   = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsDefaultHeaders = "Content-Type, Authorization, X-Trace-ID"
	corsMaxAge         = "600"
)

// CORSMiddleware answers browser preflights and tags responses for allowed
// origins. The matching origin is echoed back, never "*".
type CORSMiddleware struct {
	allowAll   bool
	origins    map[string]struct{}
	subdomains []string
}

// NewCORSMiddleware accepts "*", exact origins such as
// "https://app.beanhop.ca", and subdomain patterns such as "*.beanhop.ca".
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	m := &CORSMiddleware{origins: make(map[string]struct{}, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case o == "*":
			m.allowAll = true
		case strings.HasPrefix(o, "*."):
			m.subdomains = append(m.subdomains, strings.ToLower(o[1:]))
		case o != "":
			m.origins[strings.ToLower(o)] = struct{}{}
		}
	}
	return m
}

// Handler returns the CORS middleware handler.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Add("Vary", "Origin")
		allowed := m.Allowed(origin)

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !allowed {
				httputil.WriteError(w, http.StatusForbidden, "Disallowed CORS origin")
				return
			}
			m.preflight(w, r, origin)
			return
		}

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Expose-Headers", "X-Trace-ID")
		}
		next.ServeHTTP(w, r)
	})
}

func (m *CORSMiddleware) preflight(w http.ResponseWriter, r *http.Request, origin string) {
	h := w.Header()
	h.Add("Vary", "Access-Control-Request-Headers")
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		h.Set("Access-Control-Allow-Headers", requested)
	} else {
		h.Set("Access-Control-Allow-Headers", corsDefaultHeaders)
	}
	h.Set("Access-Control-Max-Age", corsMaxAge)
	w.WriteHeader(http.StatusNoContent)
}

// Allowed reports whether origin may call the API.
func (m *CORSMiddleware) Allowed(origin string) bool {
	if m.allowAll {
		return true
	}
	origin = strings.ToLower(origin)
	if _, ok := m.origins[origin]; ok {
		return true
	}
	if len(m.subdomains) == 0 {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := u.Hostname()
	for _, suffix := range m.subdomains {
		// suffix keeps its leading dot, so "evilbeanhop.ca" never matches ".beanhop.ca"
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

package server

import (
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/tuniway/tuniway-web/internal/config"
)

// FrameSecurityMiddleware prevents embedding on other sites.
func FrameSecurityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'self'")
		next.ServeHTTP(w, r)
	})
}

// NoStoreMiddleware keeps session-dependent views out of shared caches.
func NoStoreMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// SameOriginMiddleware rejects state-changing requests sent by a page outside
// the allowed origins. The front's own origin is always allowed. Requests
// with neither Origin nor Referer come from non-browser clients and pass.
func SameOriginMiddleware(allowed config.AllowedOrigins) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				if ref := r.Header.Get("Referer"); ref != "" {
					origin = originOf(ref)
				}
			}
			if origin == "" || origin == selfOrigin(r) || allowed.IsAllowedOrigin(origin) {
				next.ServeHTTP(w, r)
				return
			}

			log.Warn().Str("origin", origin).Str("method", r.Method).Str("path", r.URL.Path).Msg("cross-origin request rejected")
			writeJSONError(w, http.StatusForbidden, "cross-origin request rejected")
		})
	}
}

// originOf returns scheme://host of raw, or "null" when raw has neither.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "null"
	}
	return u.Scheme + "://" + u.Host
}

func selfOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

package server

import (
	"net/http"
	"regexp"

	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

var devOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://127.0.0.1:5173",
	"http://127.0.0.1:3000",
}

// Tunnel services used to expose a dev machine.
var tunnelOriginPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https://.*\.trycloudflare\.com$`),
	regexp.MustCompile(`^https://.*\.ngrok-free\.app$`),
	regexp.MustCompile(`^https://.*\.ngrok\.io$`),
	regexp.MustCompile(`^https://.*\.loca\.lt$`),
}

type originPolicy struct {
	allowed    map[string]struct{}
	production bool
}

func newOriginPolicy(productionOrigin string, production bool) originPolicy {
	allowed := make(map[string]struct{}, len(devOrigins)+1)
	for _, origin := range devOrigins {
		allowed[origin] = struct{}{}
	}
	if productionOrigin != "" {
		allowed[productionOrigin] = struct{}{}
	}
	return originPolicy{allowed: allowed, production: production}
}

func (p originPolicy) allows(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := p.allowed[origin]; ok {
		return true
	}
	for _, pattern := range tunnelOriginPatterns {
		if pattern.MatchString(origin) {
			return true
		}
	}
	if !p.production {
		log.Debug().Str("origin", origin).Msg("allowing unregistered origin outside production")
		return true
	}
	return false
}

// CORS answers preflight requests and sets CORS headers for allowed
// origins. Outside production any origin is allowed. A preflight from a
// refused origin gets 403; other requests from it proceed without CORS
// headers.
func CORS(productionOrigin string, production bool) func(http.Handler) http.Handler {
	policy := newOriginPolicy(productionOrigin, production)
	handler := cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return policy.allows(origin)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return func(next http.Handler) http.Handler {
		allowed := handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if preflight && !policy.allows(origin) {
				log.Warn().Str("origin", origin).Msg("cors preflight rejected")
				w.WriteHeader(http.StatusForbidden)
				return
			}
			allowed.ServeHTTP(w, r)
		})
	}
}

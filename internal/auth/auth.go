// Package auth guards the dashboard API with a shared bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
	// PublicReads leaves GET and HEAD requests open so only mutations
	// (satellite CRUD, demo control, zone reset) need the token.
	PublicReads bool
}

// streamPath may carry the token in the query string; EventSource cannot
// set request headers.
const streamPath = "/api/stream"

// requiresToken decides whether r must present the token. Only /api/ is
// guarded, and /api/health stays open for load balancers.
func (c Config) requiresToken(r *http.Request) bool {
	if !c.Enabled || !strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api/health" {
		return false
	}
	if c.PublicReads {
		return r.Method != http.MethodGet && r.Method != http.MethodHead
	}
	return true
}

func (c Config) authorized(r *http.Request) bool {
	var presented string
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return false
		}
		presented = token
	} else if r.URL.Path == streamPath {
		presented = r.URL.Query().Get("access_token")
	}
	return presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(c.Token)) == 1
}

// Middleware enforces the bearer token on guarded requests.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.requiresToken(r) && !cfg.authorized(r) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="satdash"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

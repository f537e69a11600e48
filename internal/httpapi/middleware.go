package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/meetinglens/transcriptd/internal/auth"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/ratelimit"
)

// authMiddleware enforces cfg.Token when one is configured. An empty
// token means the API has no authentication configured (local/trusted
// deployment) and every request passes through.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := auth.ExtractToken(r, s.cfg.AllowQueryToken)
		if !auth.AuthorizeToken(token, s.cfg.Token) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		principal := auth.NewPrincipal(token, "", nil)
		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware checks the request against the shared Limiter
// under the given mode ("control" or "playback"), §11's rate-limit
// wiring for the httpapi package.
func (s *Server) rateLimitMiddleware(mode string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ratelimit.GetClientIP(r)
			if !s.limiter.Allow(clientIP, mode) {
				log.WithComponentFromContext(r.Context(), "httpapi").Warn().
					Str("event", "ratelimit.rejected").Str("mode", mode).Str("client_ip", clientIP).Msg("rate limit exceeded")
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.L().Error().Err(err).Msg("httpapi: encode response failed")
	}
}

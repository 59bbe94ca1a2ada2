package httpapi

import (
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// WrapWithAuth guards mutating requests with bearer-token checks and a
// global rate limit. Reads pass through untouched. An empty token list
// disables the token check; a non-positive limit disables throttling.
func WrapWithAuth(next http.Handler, tokens []string, limit rate.Limit, burst int) http.Handler {
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t != "" {
			tokenSet[t] = struct{}{}
		}
	}

	var limiter *rate.Limiter
	if limit > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(limit, burst)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !mutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		if limiter != nil && !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		if len(tokenSet) > 0 {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if _, ok := tokenSet[strings.TrimSpace(token)]; !ok {
				http.Error(w, "missing or invalid token", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

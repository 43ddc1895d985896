package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/procuredocs/procuredocs/internal/platform/httpx"
	"github.com/procuredocs/procuredocs/internal/shared"
)

// Middleware authenticates bearer tokens and stores the account in context.
// A nil verifier passes requests through untouched.
func Middleware(verifier *Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !verifier.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, err := verifier.Verify(bearerToken(r))
			if err != nil {
				if logger != nil {
					logger.Debug("reject request", slog.String("path", r.URL.Path), slog.Any("error", err))
				}
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithAccount(r.Context(), accountID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

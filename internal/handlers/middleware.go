package handlers

import (
	"log/slog"
	"net/http"

	"github.com/petcare/apiserver/internal/auth"
	"github.com/petcare/apiserver/internal/errs"
	"github.com/petcare/apiserver/internal/observability/metrics"
	"github.com/petcare/apiserver/types"
)

// AuthMiddleware resolves the bearer token of a request into a Principal.
type AuthMiddleware struct {
	authenticator *auth.Authenticator
	logger        *slog.Logger
}

func NewAuthMiddleware(authenticator *auth.Authenticator, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{authenticator: authenticator, logger: logger}
}

// RequireAuth rejects requests without a live account behind their token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			code := errs.CodeOf(err)
			metrics.AuthAttemptsTotal.WithLabelValues(code).Inc()
			m.logger.WarnContext(r.Context(), "authentication failed",
				"code", code,
				"path", r.URL.Path,
			)
			writeError(w, r, err)
			return
		}
		metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

// OptionalAuth attaches a principal when the token is valid and otherwise
// serves the request anonymously.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := m.authenticator.OptionalAuthenticate(r.Context(), r.Header.Get("Authorization"))
		if ok {
			r = r.WithContext(auth.WithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := principalFrom(r)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if err := auth.RequireRole(principal, roles...); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalFrom(r *http.Request) (auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return auth.Principal{}, auth.ErrNotAuthenticated
	}
	return principal, nil
}

func passthrough(next http.Handler) http.Handler {
	return next
}

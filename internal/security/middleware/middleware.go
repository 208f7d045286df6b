package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/leavedesk/internal/domain"
	"github.com/aryan0dhankhar/leavedesk/internal/security"
	"github.com/aryan0dhankhar/leavedesk/internal/security/auth"
)

type PrincipalContextKey struct{}

// Authenticator turns a bearer token into a caller identity
type Authenticator interface {
	Authenticate(token string) (domain.Principal, error)
}

var _ Authenticator = (*auth.TokenManager)(nil)

// Gate guards routes by role
type Gate struct {
	auth Authenticator
	log  *slog.Logger
}

func NewGate(a Authenticator, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{auth: a, log: log}
}

// Require admits callers holding a valid token whose role is in roles.
// An empty role set admits any authenticated caller.
func (g *Gate) Require(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.ExtractToken(r.Header.Get("Authorization"))
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Unauthenticated")
				return
			}

			p, err := g.auth.Authenticate(token)
			if err != nil {
				g.log.Debug("rejected token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteError(w, http.StatusUnauthorized, "Unauthenticated")
				return
			}

			if len(roles) > 0 && !hasRole(roles, p.Role) {
				g.log.Warn("role not permitted",
					slog.String("path", r.URL.Path),
					slog.Int64("user_id", p.UserID),
					slog.String("role", p.Role.String()),
				)
				WriteError(w, http.StatusForbidden, "Forbidden")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequirePermission admits callers whose role grants perm
func (g *Gate) RequirePermission(perm security.Permission) func(http.Handler) http.Handler {
	return g.Require(security.RolesWith(perm)...)
}

func hasRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey{}, p)
}

// PrincipalFromContext returns the caller placed in ctx by the gate
func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey{}).(domain.Principal)
	return p, ok
}

// WriteError writes {"error": message} with the given status
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

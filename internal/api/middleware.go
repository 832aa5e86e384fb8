package api

import (
	"context"
	"net/http"
	"strings"

	"cloud-server/internal/auth"
)

type contextKey string

const identityContextKey = contextKey("identity")

// AuthMiddleware verifies the bearer token and places the derived
// identity (user ID plus the guild/role gate result) in the context.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := auth.VerifyJWT(headerParts[1], s.config.JWT.Secret)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		identity := claims.Identity(s.config.Guild.GuildID, s.config.Guild.AllowedRoles)
		ctx := context.WithValue(r.Context(), identityContextKey, identity)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireMember rejects callers who failed the community gate: valid
// token but missing guild membership or an allowed role.
func (s *Server) RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentityFromContext(r.Context())
		if !identity.Authorized {
			http.Error(w, "Cloud access requires community membership", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin gates the admin surface on the configured admin roles.
func (s *Server) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentityFromContext(r.Context())
		if !identity.Authorized || !identity.HasAnyRole(s.config.Guild.AdminRoles) {
			http.Error(w, "Admin role required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetIdentityFromContext(ctx context.Context) auth.Identity {
	if identity, ok := ctx.Value(identityContextKey).(auth.Identity); ok {
		return identity
	}
	return auth.Identity{}
}

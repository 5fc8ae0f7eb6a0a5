package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"taskboard-backend/pkg/models"
	"taskboard-backend/pkg/utils"
)

// ContextKey 用于在context中存储用户信息的键
type ContextKey string

const (
	ActorContextKey ContextKey = "actor"

	// TokenCookieName is the cookie the session token travels in.
	TokenCookieName = "token"
)

// TokenValidator verifies a session token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.TokenClaims, error)
}

// tokenFromRequest reads a Bearer header first and falls back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if tokenString := strings.TrimPrefix(authHeader, "Bearer "); tokenString != authHeader {
			return strings.TrimSpace(tokenString)
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

// AuthMiddleware resolves the actor descriptor carried by the JWT.
func AuthMiddleware(tokens TokenValidator, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFromRequest(r)
			if tokenString == "" {
				utils.WriteError(w, utils.CodeUnauthorized, "Unauthorized: no token provided", "")
				return
			}

			claims, err := tokens.ValidateToken(tokenString)
			if err != nil {
				log.WithError(err).WithField("path", r.URL.Path).Debug("token rejected")
				utils.WriteError(w, utils.CodeUnauthorized, "Unauthorized: invalid token", "")
				return
			}

			noteActor(r, claims.UserID)
			ctx := WithActor(r.Context(), claims.Actor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithActor stores the acting identity in ctx.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}

// GetActorFromContext 从context中获取用户信息
func GetActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(models.Actor)
	return actor, ok && actor.ID != ""
}

package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dkoller/taskhub/internal/auth"
	"github.com/dkoller/taskhub/internal/config"
	"github.com/dkoller/taskhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Small interfaces so tests can fake them easily.

type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
	HashToken(raw string) string
}

type UserLoader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type TokenLister interface {
	Exists(ctx context.Context, userID, tokenHash string) (bool, error)
}

type AuthMiddleware struct {
	jwt    TokenVerifier
	users  UserLoader
	tokens TokenLister
}

func NewAuthMiddleware(jwt TokenVerifier, users UserLoader, tokens TokenLister) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users, tokens: tokens}
}

// RequireAuth gates every protected route. A token is accepted only when
// the signature verifies, the user still exists AND the token is still a
// member of that user's token list; logout revokes by removing the list
// entry, so a verified-but-revoked token fails here.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyToken(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		cctx, cancel := config.WithTimeout(2 * time.Second)
		defer cancel()

		u, err := m.users.GetByID(cctx, claims.UserID)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		active, err := m.tokens.Exists(cctx, u.ID, m.jwt.HashToken(raw))
		if err != nil || !active {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// Stash identity and the raw token; logout needs to know which
		// token to remove.
		SetUser(c, u)
		SetToken(c, raw)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
	})
}

// Helpers so handlers don't need to know the magic keys. The setters
// are also how handler tests stand in for RequireAuth.

func SetUser(c *gin.Context, u user.User) {
	c.Set(ctxUserKey, u)
}

func SetToken(c *gin.Context, raw string) {
	c.Set(ctxTokenKey, raw)
}


func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func TokenFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxTokenKey)
	if !ok {
		return "", false
	}
	raw, ok := v.(string)
	return raw, ok
}

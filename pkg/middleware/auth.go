package middleware

import (
	"strings"

	"resumable-chat/backend/pkg/errors"
	"resumable-chat/backend/pkg/jwt"
	"resumable-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// User types carried in session tokens.
const (
	UserTypeGuest   = "guest"
	UserTypeRegular = "regular"
)

// AuthUser is the authenticated caller of a request.
type AuthUser struct {
	ID            string
	Email         string
	EmailVerified bool
	Type          string
}

// CurrentUser returns the caller set by JWTAuthMiddleware or OptionalAuth.
func CurrentUser(c *gin.Context) (*AuthUser, bool) {
	v, ok := c.Get("claims")
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.JWTClaims)
	if !ok || claims.UserID == "" {
		return nil, false
	}
	return &AuthUser{
		ID:            claims.UserID,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Type:          claims.Type,
	}, true
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
		return h
	}
	// browsers cannot set headers on EventSource or WebSocket upgrades
	return c.Query("access_token")
}

func setClaims(c *gin.Context, claims *jwt.JWTClaims) {
	c.Set("claims", claims)
	c.Set("userID", claims.UserID)
	c.Set("userType", claims.Type)
}

// JWTAuthMiddleware rejects requests without a valid session token.
func JWTAuthMiddleware(jwtService *jwt.Service, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			_ = c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Warn("invalid session token", "error", err.Error(), "path", c.Request.URL.Path)
			_ = c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth records the caller when a valid token is present and lets
// the handler decide what an anonymous request means.
func OptionalAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := jwtService.ValidateToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// RequireUserType allows only callers of one of the given user types.
func RequireUserType(types ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			_ = c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
			c.Abort()
			return
		}
		for _, t := range types {
			if user.Type == t {
				c.Next()
				return
			}
		}
		_ = c.Error(errors.NewForbiddenError("INSUFFICIENT_ROLE", "Your account type does not allow this operation"))
		c.Abort()
	}
}
